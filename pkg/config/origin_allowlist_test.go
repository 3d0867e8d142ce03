package config

import "testing"

func TestOriginAllowlistSection_Defaults(t *testing.T) {
	s := NewOriginAllowlistSection()

	cases := map[string]bool{
		"chrome-extension://abcdefgh": true,
		"moz-extension://abcdefgh":    true,
		"http://localhost:5173":       true,
		"http://127.0.0.1:4000":       true,
		"https://evil.example.com":    false,
		"":                            false,
	}

	for origin, want := range cases {
		if got := s.IsOriginAllowed(origin); got != want {
			t.Errorf("IsOriginAllowed(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestOriginAllowlistSection_AddRemovePattern(t *testing.T) {
	s := NewOriginAllowlistSection()

	if err := s.AddPattern("https://*.internal.example.com"); err != nil {
		t.Fatalf("AddPattern failed: %v", err)
	}

	if !s.IsOriginAllowed("https://ide.internal.example.com") {
		t.Error("expected new pattern to match")
	}

	if err := s.AddPattern("https://*.internal.example.com"); err == nil {
		t.Error("expected error adding duplicate pattern")
	}

	patterns := s.GetPatterns()
	idx := -1
	for i, p := range patterns {
		if p == "https://*.internal.example.com" {
			idx = i
		}
	}
	if idx < 0 {
		t.Fatal("pattern not found after add")
	}

	if err := s.RemovePattern(idx); err != nil {
		t.Fatalf("RemovePattern failed: %v", err)
	}

	if s.IsOriginAllowed("https://ide.internal.example.com") {
		t.Error("expected removed pattern to no longer match")
	}
}

func TestOriginAllowlistSection_SetDataValidate(t *testing.T) {
	s := NewOriginAllowlistSection()

	err := s.SetData(map[string]interface{}{
		"patterns": []interface{}{"https://*.example.com"},
	})
	if err != nil {
		t.Fatalf("SetData failed: %v", err)
	}

	if err := s.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	data := s.Data()
	patterns, ok := data["patterns"].([]interface{})
	if !ok || len(patterns) != 1 {
		t.Fatalf("unexpected Data() output: %#v", data)
	}
}

func TestOriginAllowlistSection_Reset(t *testing.T) {
	s := NewOriginAllowlistSection()
	s.AddPattern("https://*.example.com")
	s.Reset()

	if s.IsOriginAllowed("https://x.example.com") {
		t.Error("expected added pattern to be gone after Reset")
	}
	if !s.IsOriginAllowed("http://localhost:3000") {
		t.Error("expected default pattern to be restored after Reset")
	}
}
