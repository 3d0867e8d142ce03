package probe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ctxbridge/ctxbridge/pkg/fabric/wire"
)

func TestHealth_DecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wire.HealthResponse{Healthy: true, InstanceID: "abc"})
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	health, err := Health(context.Background(), addr, time.Second)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.InstanceID != "abc" {
		t.Errorf("got instance id %q, want abc", health.InstanceID)
	}
}

func TestHealth_ErrorsOnUnreachable(t *testing.T) {
	_, err := Health(context.Background(), "127.0.0.1:1", 100*time.Millisecond)
	if err == nil {
		t.Error("expected error probing an unreachable address")
	}
}

func TestHealth_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	if _, err := Health(context.Background(), addr, time.Second); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestInstances_DecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wire.InstancesResponse{Instances: []wire.InstanceRecord{{ID: "a"}, {ID: "b"}}})
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	instances, err := Instances(context.Background(), addr, time.Second)
	if err != nil {
		t.Fatalf("Instances failed: %v", err)
	}
	if len(instances.Instances) != 2 {
		t.Errorf("got %d instances, want 2", len(instances.Instances))
	}
}

func TestSend_PostsContentAndDecodesResponse(t *testing.T) {
	var gotPath string
	var gotBody wire.SendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(wire.SendResponse{Success: true})
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	resp, status, err := Send(context.Background(), addr, "inst-1", "hello", time.Second)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("got status %d, want 200", status)
	}
	if !resp.Success {
		t.Error("expected success=true")
	}
	if gotPath != "/instance/inst-1/send" {
		t.Errorf("got path %q, want /instance/inst-1/send", gotPath)
	}
	if gotBody.Content != "hello" {
		t.Errorf("got content %q, want hello", gotBody.Content)
	}
}
