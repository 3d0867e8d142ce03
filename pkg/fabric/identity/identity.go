// Package identity holds the value object that names one running fabric
// instance for the lifetime of its process.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"os"
	"sync/atomic"
)

// Identity is the stable identity tuple held by one fabric process:
// id, name, workspacePath, pid, and the currently bound port. Port is
// late-bound — it starts at zero and is set once by the Port Binder — so
// Identity is safe to construct before a listener exists.
type Identity struct {
	id            string
	name          string
	workspacePath string
	pid           int

	// port is accessed by the heartbeat loop and HTTP handlers from
	// different goroutines, so it's stored atomically rather than behind a
	// mutex — it's a single scalar with no invariants to protect jointly
	// with anything else.
	port atomic.Int32
}

// New builds a fresh Identity for this process. The id encodes a hash of
// workspacePath, the pid, and 8 hex digits of randomness, so a record
// surviving a crash is recognizably tied to its workspace even across pid
// reuse within the registry's retention window.
func New(name, workspacePath string) (*Identity, error) {
	suffix, err := randomHex(4)
	if err != nil {
		return nil, fmt.Errorf("generate instance id suffix: %w", err)
	}

	pid := os.Getpid()
	id := fmt.Sprintf("%08x-%d-%s", fnv32(workspacePath), pid, suffix)

	return &Identity{
		id:            id,
		name:          name,
		workspacePath: workspacePath,
		pid:           pid,
	}, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func fnv32(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// ID returns the instance's opaque, process-unique id.
func (ident *Identity) ID() string { return ident.id }

// Name returns the human label for this instance (workspace/project name).
func (ident *Identity) Name() string { return ident.name }

// WorkspacePath returns the absolute workspace path this instance was
// started for.
func (ident *Identity) WorkspacePath() string { return ident.workspacePath }

// PID returns the OS process id.
func (ident *Identity) PID() int { return ident.pid }

// Port returns the currently bound loopback port, or 0 if no port has been
// bound yet.
func (ident *Identity) Port() int { return int(ident.port.Load()) }

// SetPort records the port the Port Binder selected. Called exactly once,
// after a successful bind.
func (ident *Identity) SetPort(port int) { ident.port.Store(int32(port)) }
