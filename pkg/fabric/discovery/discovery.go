// Package discovery implements the remote (browser-extension) side of the
// fabric: given a nominal endpoint, produce the set of verified-live
// instances and dispatch a payload to one of them by id (spec.md §4.F).
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ctxbridge/ctxbridge/pkg/fabric/probe"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/wire"
)

const loopbackHost = "127.0.0.1"

// Instance is a verified-live fabric instance as seen by the Discovery
// Client: it has already been probed on its own port and confirmed to
// report the id the registry claims for it.
type Instance struct {
	ID            string
	Name          string
	WorkspacePath string
	Port          int
	PID           int
	LastHeartbeat int64
}

// Client locates and dispatches to specific fabric instances without
// trusting the registry blindly: every record is re-verified against its
// own port before being returned or targeted.
type Client struct {
	portRangeBase  int
	portRangeWidth int
	scanTimeout    time.Duration
	verifyTimeout  time.Duration
}

// New creates a Client configured with the fabric's reserved port range,
// used only as the fallback scan range when the nominal endpoint doesn't
// respond.
func New(portRangeBase, portRangeWidth int) *Client {
	return &Client{
		portRangeBase:  portRangeBase,
		portRangeWidth: portRangeWidth,
		scanTimeout:    probe.DefaultScanTimeout,
		verifyTimeout:  probe.DefaultVerifyTimeout,
	}
}

// Discover implements spec.md §4.F's procedure: try the nominal endpoint's
// /instances first; if that fails, scan the reserved port range in
// parallel for any responder and use that instead; then verify every
// candidate record by probing its own port.
func (c *Client) Discover(ctx context.Context, nominalPort int) ([]Instance, error) {
	records, err := c.fetchInstances(ctx, nominalPort)
	if err != nil {
		records, err = c.fetchInstancesViaScan(ctx)
		if err != nil {
			return nil, err
		}
	}

	return c.verifyAll(ctx, records), nil
}

func (c *Client) fetchInstances(ctx context.Context, port int) ([]wire.InstanceRecord, error) {
	addr := addrFor(port)
	resp, err := probe.Instances(ctx, addr, c.verifyTimeout)
	if err != nil {
		return nil, err
	}
	return resp.Instances, nil
}

// fetchInstancesViaScan probes /health across the whole reserved range in
// parallel, uses the first responder's own port to fetch /instances.
func (c *Client) fetchInstancesViaScan(ctx context.Context) ([]wire.InstanceRecord, error) {
	responderPort, err := c.scanForResponder(ctx)
	if err != nil {
		return nil, err
	}
	return c.fetchInstances(ctx, responderPort)
}

func (c *Client) scanForResponder(ctx context.Context) (int, error) {
	type result struct {
		port int
		ok   bool
	}

	results := make(chan result, c.portRangeWidth)
	var wg sync.WaitGroup

	for i := 0; i < c.portRangeWidth; i++ {
		port := c.portRangeBase + i
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			_, err := probe.Health(ctx, addrFor(port), c.scanTimeout)
			results <- result{port: port, ok: err == nil}
		}(port)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		if r.ok {
			return r.port, nil
		}
	}

	return 0, fmt.Errorf("discovery: no responder found in port range %d-%d", c.portRangeBase, c.portRangeBase+c.portRangeWidth-1)
}

// verifyAll probes every record's own port in parallel and keeps only
// those that respond and report their own claimed id.
func (c *Client) verifyAll(ctx context.Context, records []wire.InstanceRecord) []Instance {
	var mu sync.Mutex
	var verified []Instance
	var wg sync.WaitGroup

	for _, rec := range records {
		wg.Add(1)
		go func(rec wire.InstanceRecord) {
			defer wg.Done()

			health, err := probe.Health(ctx, addrFor(rec.Port), c.verifyTimeout)
			if err != nil || health.InstanceID != rec.ID {
				return
			}

			mu.Lock()
			verified = append(verified, Instance{
				ID:            rec.ID,
				Name:          rec.Name,
				WorkspacePath: rec.WorkspacePath,
				Port:          rec.Port,
				PID:           rec.PID,
				LastHeartbeat: rec.LastHeartbeat,
			})
			mu.Unlock()
		}(rec)
	}

	wg.Wait()

	sort.Slice(verified, func(i, j int) bool { return verified[i].ID < verified[j].ID })
	return verified
}

// Dispatch sends content to instance id at its own port. The caller must
// have obtained port from a verified Instance (e.g. via Discover) — dispatch
// always targets the instance's own port directly, never the nominal
// endpoint used for discovery, since an instance never forwards on behalf
// of another.
func (c *Client) Dispatch(ctx context.Context, target Instance, content string) error {
	resp, status, err := probe.Send(ctx, addrFor(target.Port), target.ID, content, c.verifyTimeout)
	if err != nil {
		return fmt.Errorf("discovery: dispatch to %s: %w", target.ID, err)
	}

	if !resp.Success {
		return fmt.Errorf("discovery: dispatch to %s failed (status %d): %s", target.ID, status, resp.Error)
	}

	return nil
}

func addrFor(port int) string {
	return loopbackHost + ":" + strconv.Itoa(port)
}
