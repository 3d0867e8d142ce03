// Package registry implements the shared, on-disk instance list that lets
// many fabric processes on one machine discover each other: a JSON file
// mutated under an advisory, cross-process filesystem lock, with stale
// records pruned on every read.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ctxbridge/ctxbridge/pkg/fabric/fabriperr"
)

const (
	registryFileName = "registry.json"
	lockFileName     = "registry.lock"

	// lockRetryDelay is the fixed backoff between lock acquisition attempts.
	lockRetryDelay = 25 * time.Millisecond

	// lockRetryBudget bounds how long acquireLock will keep retrying before
	// giving up with fabriperr.ErrLockTimeout.
	lockRetryBudget = 2 * time.Second
)

// Record is one entry in the registry: the liveness record for a single
// running fabric instance.
type Record struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	WorkspacePath string `json:"workspacePath"`
	Port          int    `json:"port"`
	PID           int    `json:"pid"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
}

type fileState struct {
	Instances []Record `json:"instances"`
}

// Store provides serializable read-modify-write access to the registry
// file for any number of cooperating processes on the same machine.
type Store struct {
	dir                string
	registryPath       string
	lockPath           string
	staleThreshold     time.Duration
	lockStaleTimeout   time.Duration
}

// New creates a Store rooted at dir (typically ~/.ctxbridge). The directory
// is created if it doesn't exist. staleThreshold is the maximum age a
// record's lastHeartbeat may reach before snapshot/modify treat it as dead;
// lockStaleTimeout is the maximum age of an abandoned lock sentinel before
// a waiter may seize it.
func New(dir string, staleThreshold, lockStaleTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("%w: create registry directory: %v", fabriperr.ErrRegistryIO, err)
	}

	return &Store{
		dir:              dir,
		registryPath:     filepath.Join(dir, registryFileName),
		lockPath:         filepath.Join(dir, lockFileName),
		staleThreshold:   staleThreshold,
		lockStaleTimeout: lockStaleTimeout,
	}, nil
}

// Snapshot returns the registry's current contents with stale records
// filtered out. It does not take the lock — it may observe slightly stale
// data, but it never returns torn or partial records, since reads only see
// complete files thanks to atomic replacement on write.
func (s *Store) Snapshot() ([]Record, error) {
	records, err := s.readFile()
	if err != nil {
		return nil, err
	}
	return filterStale(records, s.staleThreshold, time.Now()), nil
}

// Modify acquires the registry mutex, reads the current records (with
// stale entries already filtered out), applies f, atomically replaces the
// file with f's result, and releases the mutex.
func (s *Store) Modify(f func(records []Record) []Record) error {
	if err := s.acquireLock(); err != nil {
		return err
	}
	defer s.releaseLock()

	records, err := s.readFile()
	if err != nil {
		return err
	}
	records = filterStale(records, s.staleThreshold, time.Now())

	next := f(records)

	return s.writeFile(next)
}

// readFile loads the registry file. A missing file and corrupt JSON are
// both treated as an empty registry — corrupt JSON self-heals on the next
// write rather than propagating as an error.
func (s *Store) readFile() ([]Record, error) {
	data, err := os.ReadFile(s.registryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read registry file: %v", fabriperr.ErrRegistryIO, err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		// Corrupt JSON: treat as empty registry. The next Modify call
		// rewrites a valid file.
		return nil, nil
	}

	return state.Instances, nil
}

// writeFile atomically replaces the registry file via a temp-file-then-
// rename so readers only ever see a complete old or new file.
func (s *Store) writeFile(records []Record) error {
	state := fileState{Instances: records}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode registry: %v", fabriperr.ErrRegistryIO, err)
	}

	tempPath := s.registryPath + "." + strconv.Itoa(os.Getpid()) + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("%w: write temp registry file: %v", fabriperr.ErrRegistryIO, err)
	}

	if err := os.Rename(tempPath, s.registryPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("%w: rename temp registry file: %v", fabriperr.ErrRegistryIO, err)
	}

	return nil
}

// filterStale drops records whose lastHeartbeat is older than threshold.
func filterStale(records []Record, threshold time.Duration, now time.Time) []Record {
	if len(records) == 0 {
		return records
	}

	nowMS := now.UnixMilli()
	thresholdMS := threshold.Milliseconds()

	live := make([]Record, 0, len(records))
	for _, r := range records {
		if nowMS-r.LastHeartbeat < thresholdMS {
			live = append(live, r)
		}
	}
	return live
}

// acquireLock attempts to create the lock sentinel with exclusive-create
// semantics. If it already exists and is older than lockStaleTimeout, it is
// deleted and retried. On contention, acquireLock backs off by
// lockRetryDelay and retries until lockRetryBudget elapses.
func (s *Store) acquireLock() error {
	deadline := time.Now().Add(lockRetryBudget)

	for {
		f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			fmt.Fprintf(f, "%d", os.Getpid())
			f.Close()
			return nil
		}

		if !os.IsExist(err) {
			return fmt.Errorf("%w: create lock sentinel: %v", fabriperr.ErrRegistryIO, err)
		}

		if s.takeoverIfStale() {
			continue
		}

		if time.Now().After(deadline) {
			return fabriperr.ErrLockTimeout
		}

		time.Sleep(lockRetryDelay)
	}
}

// takeoverIfStale removes the lock sentinel if its modification time is
// older than lockStaleTimeout, reporting whether it did so. A failed
// removal (e.g. another process already deleted it) is not an error — the
// lock is simply gone, which is exactly what we wanted.
func (s *Store) takeoverIfStale() bool {
	info, err := os.Stat(s.lockPath)
	if err != nil {
		// Already gone; the next create-exclusive attempt will succeed.
		return true
	}

	if time.Since(info.ModTime()) <= s.lockStaleTimeout {
		return false
	}

	_ = os.Remove(s.lockPath)
	return true
}

// releaseLock deletes the sentinel, tolerating "already gone" — another
// process may have seized an apparently-stale lock out from under us.
func (s *Store) releaseLock() {
	_ = os.Remove(s.lockPath)
}

// LockHolderPID reads the pid recorded in the lock sentinel, for
// diagnostics. Returns 0 if the sentinel doesn't exist or doesn't contain a
// valid pid.
func (s *Store) LockHolderPID() int {
	data, err := os.ReadFile(s.lockPath)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
