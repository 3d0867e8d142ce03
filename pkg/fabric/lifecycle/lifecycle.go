// Package lifecycle coordinates the startup and shutdown sequencing of one
// fabric instance's components (spec.md §4.G): Identity, Port Binder, HTTP
// Surface, Registry Store, and Heartbeat Loop.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/ctxbridge/ctxbridge/pkg/fabric/heartbeat"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/httpsurface"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/identity"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/portbind"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/registry"
	"github.com/ctxbridge/ctxbridge/pkg/hostlog"
)

// Config holds everything Start needs to bring up one fabric instance.
type Config struct {
	Name           string
	WorkspacePath  string
	PreferredPort  int
	PortRangeBase  int
	PortRangeWidth int
	HeartbeatInterval time.Duration
	MaxBodyBytes   int64
	AllowedOrigin  func(origin string) bool
	Send           httpsurface.SendFunc
	Store          *registry.Store
}

// Status mirrors spec.md §6's status() embedding point.
type Status struct {
	Listening  bool
	Port       int
	PID        int
	InstanceID string
	Uptime     time.Duration
}

// Instance is one running fabric instance: the live handles to its Identity,
// HTTP Surface, and Heartbeat Loop, plus what's needed to shut them all down
// in order.
type Instance struct {
	ident     *identity.Identity
	store     *registry.Store
	surface   *httpsurface.Surface
	heartbeat *heartbeat.Loop
	logger    *hostlog.Logger
	startedAt time.Time

	heartbeatCtx    context.Context
	heartbeatCancel context.CancelFunc
}

// Start runs spec.md §4.G's startup sequence: build Identity, bind a port,
// bring the HTTP Surface to Listening, insert the registry record, start
// the Heartbeat Loop. Any failure before the Heartbeat Loop starts is
// returned to the caller as a fatal startup error; nothing partially
// started is left registered.
func Start(cfg Config) (*Instance, error) {
	logger, err := hostlog.New(tempBootID(), "lifecycle")
	if err != nil {
		logger.Warnf("lifecycle logger falling back to stderr: %v", err)
	}

	ident, err := identity.New(cfg.Name, cfg.WorkspacePath)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: build identity: %w", err)
	}

	// Re-open the logger now that the real instance id exists, so this
	// instance's entire log history lives under one file.
	logger.Close()
	logger, err = hostlog.New(ident.ID(), "lifecycle")
	if err != nil {
		logger.Warnf("lifecycle logger falling back to stderr: %v", err)
	}

	ln, actualPort, err := portbind.Bind(cfg.PreferredPort, cfg.PortRangeBase, cfg.PortRangeWidth)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: bind port: %w", err)
	}
	ident.SetPort(actualPort)

	surfaceLogger, err := hostlog.New(ident.ID(), "httpsurface")
	if err != nil {
		surfaceLogger.Warnf("httpsurface logger falling back to stderr: %v", err)
	}
	surface := httpsurface.New(ident, cfg.Store, cfg.AllowedOrigin, cfg.MaxBodyBytes, cfg.Send, surfaceLogger)
	surface.Start(ln)

	now := time.Now().UnixMilli()
	if err := cfg.Store.Modify(func(records []registry.Record) []registry.Record {
		return append(records, registry.Record{
			ID:            ident.ID(),
			Name:          ident.Name(),
			WorkspacePath: ident.WorkspacePath(),
			Port:          ident.Port(),
			PID:           ident.PID(),
			LastHeartbeat: now,
		})
	}); err != nil {
		surface.Drain(context.Background())
		ln.Close()
		return nil, fmt.Errorf("lifecycle: register instance: %w", err)
	}

	heartbeatLogger, err := hostlog.New(ident.ID(), "heartbeat")
	if err != nil {
		heartbeatLogger.Warnf("heartbeat logger falling back to stderr: %v", err)
	}
	loop := heartbeat.New(ident, cfg.Store, cfg.HeartbeatInterval, heartbeatLogger)

	hbCtx, hbCancel := context.WithCancel(context.Background())
	loop.Start(hbCtx)

	return &Instance{
		ident:           ident,
		store:           cfg.Store,
		surface:         surface,
		heartbeat:       loop,
		logger:          logger,
		startedAt:       time.Now(),
		heartbeatCtx:    hbCtx,
		heartbeatCancel: hbCancel,
	}, nil
}

// Stop runs spec.md §4.G's shutdown sequence: cancel the Heartbeat Loop,
// remove this instance's registry record (best-effort — a failure here is
// logged, not propagated, since the stale threshold is the safety net),
// then drain and stop the HTTP Surface.
func (inst *Instance) Stop(ctx context.Context) error {
	inst.heartbeat.Stop()
	inst.heartbeatCancel()

	if err := inst.store.Modify(func(records []registry.Record) []registry.Record {
		out := make([]registry.Record, 0, len(records))
		for _, r := range records {
			if r.ID != inst.ident.ID() {
				out = append(out, r)
			}
		}
		return out
	}); err != nil {
		inst.logger.Warnf("failed to unregister on shutdown (stale threshold will reclaim this record): %v", err)
	}

	return inst.surface.Drain(ctx)
}

// Pause suspends the downstream collaborator reachable through this
// instance's HTTP Surface, without affecting registry visibility.
func (inst *Instance) Pause() { inst.surface.Pause() }

// Resume re-enables the downstream collaborator.
func (inst *Instance) Resume() { inst.surface.Resume() }

// Status reports spec.md §6's status() shape.
func (inst *Instance) Status() Status {
	return Status{
		Listening:  inst.surface.State() == httpsurface.StateListening,
		Port:       inst.ident.Port(),
		PID:        inst.ident.PID(),
		InstanceID: inst.ident.ID(),
		Uptime:     time.Since(inst.startedAt),
	}
}

// ID returns this instance's identity id.
func (inst *Instance) ID() string { return inst.ident.ID() }

// Port returns the bound loopback port.
func (inst *Instance) Port() int { return inst.ident.Port() }

// tempBootID names the logger used for the brief window before Identity
// exists. It's never reused once the real instance id is known.
func tempBootID() string {
	return "boot-" + fmt.Sprint(time.Now().UnixNano())
}
