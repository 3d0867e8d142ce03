package collaborator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New("", ""); err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNew_DefaultModel(t *testing.T) {
	c, err := New("test-key", "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.Model() != DefaultModel {
		t.Errorf("got model %q, want %q", c.Model(), DefaultModel)
	}
}

func TestWithModel(t *testing.T) {
	c, err := New("test-key", "", WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.Model() != "gpt-4o" {
		t.Errorf("got model %q, want gpt-4o", c.Model())
	}
}

func TestDeliver_ForwardsContentAndReturnsReply(t *testing.T) {
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{
				{
					"index": 0,
					"message": map[string]interface{}{
						"role":    "assistant",
						"content": "acknowledged",
					},
					"finish_reason": "stop",
				},
			},
		})
	}))
	defer srv.Close()

	c, err := New("test-key", srv.URL)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	reply, err := c.Deliver(context.Background(), "payload from the extension")
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if reply != "acknowledged" {
		t.Errorf("got reply %q, want %q", reply, "acknowledged")
	}

	messages, ok := gotBody["messages"].([]interface{})
	if !ok || len(messages) != 1 {
		t.Fatalf("unexpected request body: %#v", gotBody)
	}
}

func TestDeliver_PropagatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New("test-key", srv.URL)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := c.Deliver(context.Background(), "hello"); err == nil {
		t.Error("expected error from failing downstream server")
	}
}
