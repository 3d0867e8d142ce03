// Package httpsurface implements the fabric's per-instance HTTP endpoint
// (spec.md §4.E): three routes served on the bound loopback port under a
// strict origin policy.
package httpsurface

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"

	"github.com/ctxbridge/ctxbridge/pkg/fabric/fabriperr"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/identity"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/probe"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/registry"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/wire"
	"github.com/ctxbridge/ctxbridge/pkg/hostlog"
	"github.com/ctxbridge/ctxbridge/pkg/workspaceid"
)

// Version is advertised in /health responses.
const Version = "0.1.0"

// State is a position in the HTTP Surface's Starting -> Listening ->
// Draining -> Stopped lifecycle (spec.md §4.E).
type State int32

const (
	StateStarting State = iota
	StateListening
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SendFunc realizes the host-provided send callback (spec.md §6): invoked
// with delivered content, reporting success or failure. An error wrapping
// fabriperr.ErrDownstreamUnavailable produces a 503; any other error
// produces a 500.
type SendFunc func(ctx context.Context, content string) error

// strictVerifyTimeout bounds each per-record /health probe done to answer
// GET /instances?strict=1.
const strictVerifyTimeout = 500 * time.Millisecond

// Surface serves the fabric's three HTTP routes on a single bound loopback
// listener.
type Surface struct {
	ident        *identity.Identity
	store        *registry.Store
	allowed      func(origin string) bool
	maxBodyBytes int64
	send         SendFunc
	logger       *hostlog.Logger

	state     atomic.Int32
	paused    atomic.Bool
	startedAt time.Time

	httpServer *http.Server
	encoder    *tiktoken.Tiktoken
}

// New creates a Surface. allowed reports whether an Origin header value is
// permitted; maxBodyBytes caps POST /instance/{id}/send bodies; send
// realizes delivery.
func New(ident *identity.Identity, store *registry.Store, allowed func(string) bool, maxBodyBytes int64, send SendFunc, logger *hostlog.Logger) *Surface {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warnf("token encoder unavailable, send payloads will log without a token estimate: %v", err)
		enc = nil
	}

	s := &Surface{
		ident:        ident,
		store:        store,
		allowed:      allowed,
		maxBodyBytes: maxBodyBytes,
		send:         send,
		logger:       logger,
		encoder:      enc,
	}
	s.state.Store(int32(StateStarting))
	return s
}

// Start begins serving on ln in a background goroutine and returns
// immediately; it does not block.
func (s *Surface) Start(ln net.Listener) {
	s.startedAt = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.withCORS(s.handleHealth))
	mux.HandleFunc("/instances", s.withCORS(s.handleInstances))
	mux.HandleFunc("/instance/", s.withCORS(s.handleSend))

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.state.Store(int32(StateListening))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("http surface serve error: %v", err)
		}
	}()
}

// Drain transitions Listening -> Draining -> Stopped: new connections are
// refused while in-flight requests complete, per spec.md §4.E.
func (s *Surface) Drain(ctx context.Context) error {
	s.state.Store(int32(StateDraining))
	defer s.state.Store(int32(StateStopped))

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// State reports the current lifecycle state.
func (s *Surface) State() State {
	return State(s.state.Load())
}

// Pause suspends the downstream collaborator: subsequent send requests
// report 503 without invoking SendFunc. The fabric keeps serving /health
// and /instances so clients can still discover the (paused) instance.
func (s *Surface) Pause() { s.paused.Store(true) }

// Resume re-enables dispatch to the downstream collaborator.
func (s *Surface) Resume() { s.paused.Store(false) }

// withCORS wraps a handler with the origin policy and CORS headers shared
// by every route (spec.md §4.E), tagging each request with a correlation
// id for the log.
func (s *Surface) withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		correlationID := uuid.NewString()
		w.Header().Set("X-Correlation-Id", correlationID)

		origin := r.Header.Get("Origin")
		hasOrigin := origin != "" && origin != "null"

		if hasOrigin && !s.allowed(origin) {
			s.logger.Warnf("[%s] forbidden origin %q on %s %s", correlationID, origin, r.Method, r.URL.Path)
			writeJSON(w, http.StatusForbidden, wire.ErrorResponse{Error: "Forbidden: invalid origin"})
			return
		}

		if hasOrigin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		s.logger.Debugf("[%s] %s %s", correlationID, r.Method, r.URL.Path)
		next(w, r)
	}
}

func (s *Surface) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, wire.ErrorResponse{Error: "method not allowed"})
		return
	}

	resp := wire.HealthResponse{
		Healthy:             true,
		Version:             Version,
		CapabilityAvailable: !s.paused.Load(),
		WorkspaceName:       workspaceid.DisplayName(s.ident.WorkspacePath()),
		WorkspacePath:       s.ident.WorkspacePath(),
		InstanceID:          s.ident.ID(),
		Port:                s.ident.Port(),
		PID:                 s.ident.PID(),
		Uptime:              time.Since(s.startedAt).Seconds(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Surface) handleInstances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, wire.ErrorResponse{Error: "method not allowed"})
		return
	}

	records, err := s.store.Snapshot()
	if err != nil {
		s.logger.Errorf("instances snapshot failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, wire.ErrorResponse{Error: err.Error()})
		return
	}

	strict := r.URL.Query().Get("strict") == "1"

	out := make([]wire.InstanceRecord, 0, len(records))
	for _, rec := range records {
		entry := wire.InstanceRecord{
			ID:            rec.ID,
			Name:          rec.Name,
			WorkspacePath: rec.WorkspacePath,
			Port:          rec.Port,
			PID:           rec.PID,
			LastHeartbeat: rec.LastHeartbeat,
		}

		if strict {
			verified := s.verifyRecord(r.Context(), rec)
			entry.Verified = &verified
		}

		out = append(out, entry)
	}

	writeJSON(w, http.StatusOK, wire.InstancesResponse{Instances: out})
}

// verifyRecord probes a record's own port and confirms it reports the same
// id, the same check the Discovery Client performs before trusting a
// record (spec.md §4.F).
func (s *Surface) verifyRecord(ctx context.Context, rec registry.Record) bool {
	addr := loopbackAddr(rec.Port)
	health, err := probe.Health(ctx, addr, strictVerifyTimeout)
	if err != nil {
		return false
	}
	return health.InstanceID == rec.ID
}

func (s *Surface) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, wire.SendResponse{Success: false, Error: "method not allowed"})
		return
	}

	id, ok := parseSendPath(r.URL.Path)
	if !ok {
		writeJSON(w, http.StatusNotFound, wire.SendResponse{Success: false, Error: "Instance not found on this server"})
		return
	}

	if id != s.ident.ID() {
		writeJSON(w, http.StatusNotFound, wire.SendResponse{Success: false, Error: "Instance not found on this server"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	var req wire.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isBodyTooLarge(err) {
			writeJSON(w, http.StatusRequestEntityTooLarge, wire.SendResponse{Success: false, Error: "Request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, wire.SendResponse{Success: false, Error: "Missing or invalid content"})
		return
	}

	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, wire.SendResponse{Success: false, Error: "Missing or invalid content"})
		return
	}

	s.logPayload(req.Content)

	if s.paused.Load() {
		writeJSON(w, http.StatusServiceUnavailable, wire.SendResponse{Success: false, Error: "downstream collaborator is paused"})
		return
	}

	if err := s.send(r.Context(), req.Content); err != nil {
		if errors.Is(err, fabriperr.ErrDownstreamUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, wire.SendResponse{Success: false, Error: err.Error()})
			return
		}
		s.logger.Errorf("send delivery failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, wire.SendResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, wire.SendResponse{Success: true})
}

// logPayload records a rough token estimate of an accepted send payload,
// mirroring the teacher's own context-budget token counting.
func (s *Surface) logPayload(content string) {
	if s.encoder == nil {
		s.logger.Infof("accepted send payload, %d bytes", len(content))
		return
	}
	tokens := s.encoder.Encode(content, nil, nil)
	s.logger.Infof("accepted send payload, %d bytes, ~%d tokens", len(content), len(tokens))
}

func isBodyTooLarge(err error) bool {
	return strings.Contains(err.Error(), "http: request body too large")
}

// parseSendPath extracts {id} from "/instance/{id}/send".
func parseSendPath(path string) (string, bool) {
	const prefix = "/instance/"
	const suffix = "/send"

	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}

	id := strings.TrimSuffix(strings.TrimPrefix(path, prefix), suffix)
	if id == "" {
		return "", false
	}
	return id, true
}

func loopbackAddr(port int) string {
	return "127.0.0.1:" + strconv.Itoa(port)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
