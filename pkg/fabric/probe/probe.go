// Package probe implements the short-timeout loopback HTTP checks the
// Discovery Client (spec.md §4.F) and the HTTP Surface's strict /instances
// mode both need: "is anything listening here, and does it claim to be the
// instance I think it is."
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ctxbridge/ctxbridge/pkg/fabric/wire"
)

// DefaultScanTimeout is the per-port timeout used when scanning a range of
// loopback ports looking for any responder.
const DefaultScanTimeout = 500 * time.Millisecond

// DefaultVerifyTimeout is the timeout used when confirming a specific
// record's own /health before trusting it.
const DefaultVerifyTimeout = 2 * time.Second

// Health fetches and decodes GET /health from addr ("127.0.0.1:PORT"),
// failing if it doesn't respond within timeout.
func Health(ctx context.Context, addr string, timeout time.Duration) (*wire.HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("probe: build health request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("probe: unexpected status %d from %s", resp.StatusCode, addr)
	}

	var health wire.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("probe: decode health response: %w", err)
	}

	return &health, nil
}

// Instances fetches and decodes GET /instances from addr.
func Instances(ctx context.Context, addr string, timeout time.Duration) (*wire.InstancesResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/instances", nil)
	if err != nil {
		return nil, fmt.Errorf("probe: build instances request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("probe: unexpected status %d from %s", resp.StatusCode, addr)
	}

	var instances wire.InstancesResponse
	if err := json.NewDecoder(resp.Body).Decode(&instances); err != nil {
		return nil, fmt.Errorf("probe: decode instances response: %w", err)
	}

	return &instances, nil
}

// Send POSTs content to addr's own /instance/{id}/send. The caller must
// have already verified addr is id's own port — probe never forwards.
func Send(ctx context.Context, addr, id, content string, timeout time.Duration) (*wire.SendResponse, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(wire.SendRequest{Content: content})
	if err != nil {
		return nil, 0, fmt.Errorf("probe: encode send request: %w", err)
	}

	url := fmt.Sprintf("http://%s/instance/%s/send", addr, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("probe: build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var sendResp wire.SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sendResp); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("probe: decode send response: %w", err)
	}

	return &sendResp, resp.StatusCode, nil
}
