package hostlog

import (
	"os"
	"strings"
	"testing"
)

func TestNew_WritesToFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	l, err := New("inst-123", "heartbeat")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer l.Close()

	if l.LogPath() == "" {
		t.Fatal("expected a non-empty log path")
	}

	l.Infof("hello %s", "world")
	l.Close()

	data, err := os.ReadFile(l.LogPath())
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	if !strings.Contains(string(data), "hello world") {
		t.Errorf("log file missing expected content: %s", data)
	}
	if !strings.Contains(string(data), "[heartbeat]") {
		t.Errorf("log file missing component tag: %s", data)
	}
}

func TestNew_SharedFileAcrossComponents(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	a, err := New("inst-456", "registry")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer a.Close()

	b, err := New("inst-456", "httpsurface")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer b.Close()

	if a.LogPath() != b.LogPath() {
		t.Errorf("expected same log path for same instance id, got %s and %s", a.LogPath(), b.LogPath())
	}
}
