package config

import (
	"sync"
)

// Every ctxbridge entry point (run, monitor, list, send) calls Initialize
// exactly once before touching any accessor below; there is no per-instance
// config object, since a single host only ever runs one fabric config.
var (
	globalManager *Manager
	globalMu      sync.Mutex
)

// Initialize creates and initializes the global configuration manager.
// This should be called once at application startup.
func Initialize(configPath string) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	// Create file store
	store, err := NewFileStore(configPath)
	if err != nil {
		return err
	}

	// Create manager
	manager := NewManager(store)

	// Register default sections
	if err := manager.RegisterSection(NewFabricSection()); err != nil {
		return err
	}

	if err := manager.RegisterSection(NewOriginAllowlistSection()); err != nil {
		return err
	}

	if err := manager.RegisterSection(NewCollaboratorSection()); err != nil {
		return err
	}

	// Load configuration
	if err := manager.LoadAll(); err != nil {
		return err
	}

	globalManager = manager
	return nil
}

// Global returns the global configuration manager. Every ctxbridge command
// reaches this only after its own Initialize call, so a nil globalManager
// here means a command forgot to initialize before starting the fabric.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("ctxbridge: config.Global called before config.Initialize")
	}

	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// section fetches and type-asserts a registered section from the global
// manager, returning nil rather than erroring if config isn't initialized
// yet or the section was never registered. Every GetX accessor below is
// this one lookup specialized to a concrete Section type.
func section[T Section](id string) T {
	var zero T
	if !IsInitialized() {
		return zero
	}

	s, ok := Global().GetSection(id)
	if !ok {
		return zero
	}

	typed, ok := s.(T)
	if !ok {
		return zero
	}

	return typed
}

// GetFabric returns the fabric tuning section from global config.
// Returns nil if config is not initialized.
func GetFabric() *FabricSection {
	return section[*FabricSection](SectionIDFabric)
}

// GetOriginAllowlist returns the origin allowlist section from global config.
// Returns nil if config is not initialized.
func GetOriginAllowlist() *OriginAllowlistSection {
	return section[*OriginAllowlistSection](SectionIDOriginAllowlist)
}

// GetCollaborator returns the downstream collaborator section from global config.
// Returns nil if config is not initialized.
func GetCollaborator() *CollaboratorSection {
	return section[*CollaboratorSection](SectionIDCollaborator)
}

// IsOriginAllowed checks whether origin is permitted by the global origin
// allowlist. Returns false if config is not initialized.
func IsOriginAllowed(origin string) bool {
	allowlist := GetOriginAllowlist()
	if allowlist == nil {
		return false
	}
	return allowlist.IsOriginAllowed(origin)
}
