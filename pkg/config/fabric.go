package config

import (
	"fmt"
	"sync"
)

const (
	// SectionIDFabric is the identifier for the fabric tuning section.
	SectionIDFabric = "fabric"

	// DefaultPortRangeBase is the first port the Port Binder probes.
	DefaultPortRangeBase = 47800

	// DefaultPortRangeWidth is the number of ports the Port Binder probes
	// starting at DefaultPortRangeBase before giving up.
	DefaultPortRangeWidth = 64

	// DefaultHeartbeatIntervalMS is how often a running instance refreshes
	// its registry record.
	DefaultHeartbeatIntervalMS = 4000

	// DefaultStaleThresholdMS is how long a registry record can go without
	// a heartbeat refresh before it is considered stale and pruned.
	DefaultStaleThresholdMS = 12000

	// DefaultLockStaleTimeoutMS is how old the registry lock sentinel can be
	// before a waiter considers it abandoned and takes it over.
	DefaultLockStaleTimeoutMS = 5000

	// DefaultMaxBodyBytes caps the size of a send request body.
	DefaultMaxBodyBytes = 1 * 1024 * 1024
)

// FabricSection manages the tunables shared by every component of the
// dispatch fabric: the registry lock timeout, the port range the Port
// Binder probes, the heartbeat cadence, and the stale-record threshold.
type FabricSection struct {
	mu sync.RWMutex

	PortRangeBase      int
	PortRangeWidth     int
	HeartbeatIntervalMS int
	StaleThresholdMS   int
	LockStaleTimeoutMS int
	MaxBodyBytes       int64
}

// NewFabricSection creates a new fabric section with the package defaults.
func NewFabricSection() *FabricSection {
	s := &FabricSection{}
	s.reset()
	return s
}

func (s *FabricSection) reset() {
	s.PortRangeBase = DefaultPortRangeBase
	s.PortRangeWidth = DefaultPortRangeWidth
	s.HeartbeatIntervalMS = DefaultHeartbeatIntervalMS
	s.StaleThresholdMS = DefaultStaleThresholdMS
	s.LockStaleTimeoutMS = DefaultLockStaleTimeoutMS
	s.MaxBodyBytes = DefaultMaxBodyBytes
}

// ID returns the section identifier.
func (s *FabricSection) ID() string {
	return SectionIDFabric
}

// Title returns the section title.
func (s *FabricSection) Title() string {
	return "Dispatch Fabric"
}

// Description returns the section description.
func (s *FabricSection) Description() string {
	return "Tuning for the registry lock, port scan range, heartbeat cadence, and stale-record threshold shared by every fabric instance."
}

// Data returns the current configuration data.
func (s *FabricSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"port_range_base":       s.PortRangeBase,
		"port_range_width":      s.PortRangeWidth,
		"heartbeat_interval_ms": s.HeartbeatIntervalMS,
		"stale_threshold_ms":    s.StaleThresholdMS,
		"lock_stale_timeout_ms": s.LockStaleTimeoutMS,
		"max_body_bytes":        s.MaxBodyBytes,
	}
}

// SetData updates the configuration from the provided data.
func (s *FabricSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := intFromAny(data["port_range_base"]); ok {
		s.PortRangeBase = v
	}
	if v, ok := intFromAny(data["port_range_width"]); ok {
		s.PortRangeWidth = v
	}
	if v, ok := intFromAny(data["heartbeat_interval_ms"]); ok {
		s.HeartbeatIntervalMS = v
	}
	if v, ok := intFromAny(data["stale_threshold_ms"]); ok {
		s.StaleThresholdMS = v
	}
	if v, ok := intFromAny(data["lock_stale_timeout_ms"]); ok {
		s.LockStaleTimeoutMS = v
	}
	if v, ok := int64FromAny(data["max_body_bytes"]); ok {
		s.MaxBodyBytes = v
	}

	return nil
}

// intFromAny handles both the float64 JSON decodes to and the plain int a
// caller might pass in directly.
func intFromAny(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func int64FromAny(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// Validate validates the current configuration. The stale threshold must be
// at least twice the heartbeat interval, or a slow heartbeat tick would
// cause a live instance to be pruned as stale.
func (s *FabricSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.PortRangeWidth <= 0 {
		return fmt.Errorf("port_range_width must be positive, got %d", s.PortRangeWidth)
	}
	if s.PortRangeBase <= 0 || s.PortRangeBase > 65535 {
		return fmt.Errorf("port_range_base must be a valid port number, got %d", s.PortRangeBase)
	}
	if s.HeartbeatIntervalMS <= 0 {
		return fmt.Errorf("heartbeat_interval_ms must be positive, got %d", s.HeartbeatIntervalMS)
	}
	if s.StaleThresholdMS < 2*s.HeartbeatIntervalMS {
		return fmt.Errorf("stale_threshold_ms (%d) must be at least twice heartbeat_interval_ms (%d)", s.StaleThresholdMS, s.HeartbeatIntervalMS)
	}
	if s.LockStaleTimeoutMS <= 0 {
		return fmt.Errorf("lock_stale_timeout_ms must be positive, got %d", s.LockStaleTimeoutMS)
	}
	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", s.MaxBodyBytes)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *FabricSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}
