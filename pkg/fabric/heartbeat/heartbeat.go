// Package heartbeat implements the periodic refresh that keeps one fabric
// instance's registry record from being pruned as stale.
package heartbeat

import (
	"context"
	"time"

	"github.com/ctxbridge/ctxbridge/pkg/fabric/identity"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/registry"
	"github.com/ctxbridge/ctxbridge/pkg/hostlog"
)

// Loop periodically refreshes an instance's registry record so other
// processes and clients treat it as alive. It is a single cancellable
// logical task.
type Loop struct {
	ident    *identity.Identity
	store    *registry.Store
	interval time.Duration
	logger   *hostlog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Loop that will refresh ident's record in store every
// interval, once Start is called.
func New(ident *identity.Identity, store *registry.Store, interval time.Duration, logger *hostlog.Logger) *Loop {
	return &Loop{
		ident:    ident,
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Start ticks immediately and then every interval until ctx is cancelled
// or Stop is called. Start returns once the first tick has completed, so
// unless that tick failed (failures are logged, not returned) the registry
// reflects this instance by the time Start returns.
func (l *Loop) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	l.tick()

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.tick()
			}
		}
	}()
}

// Stop cancels the loop and waits for its goroutine to exit.
func (l *Loop) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
}

// tick runs one refresh: find this instance's record and bump its
// lastHeartbeat and port, reinserting a full record if another process
// purged it as apparently stale. Failures are logged and swallowed — the
// next tick retries.
func (l *Loop) tick() {
	now := time.Now().UnixMilli()

	err := l.store.Modify(func(records []registry.Record) []registry.Record {
		for i := range records {
			if records[i].ID == l.ident.ID() {
				records[i].LastHeartbeat = now
				records[i].Port = l.ident.Port()
				return records
			}
		}

		return append(records, registry.Record{
			ID:            l.ident.ID(),
			Name:          l.ident.Name(),
			WorkspacePath: l.ident.WorkspacePath(),
			Port:          l.ident.Port(),
			PID:           l.ident.PID(),
			LastHeartbeat: now,
		})
	})

	if err != nil && l.logger != nil {
		l.logger.Warnf("heartbeat tick failed, will retry next interval: %v", err)
	}
}
