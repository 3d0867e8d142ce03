package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

const (
	// SectionIDOriginAllowlist is the identifier for the origin allowlist section.
	SectionIDOriginAllowlist = "origin_allowlist"
)

// OriginAllowlistSection manages the set of glob patterns the HTTP Surface
// will accept as a CORS origin. Patterns are matched with gobwas/glob so a
// deployment can widen or narrow the allowed set ("chrome-extension://*")
// without recompiling.
type OriginAllowlistSection struct {
	mu       sync.RWMutex
	patterns []string
	compiled []glob.Glob
}

// NewOriginAllowlistSection creates a new origin allowlist section with the
// default patterns that cover the browser extensions this fabric expects to
// talk to.
func NewOriginAllowlistSection() *OriginAllowlistSection {
	s := &OriginAllowlistSection{}
	s.setPatternsLocked(defaultOriginPatterns())
	return s
}

func defaultOriginPatterns() []string {
	return []string{
		"chrome-extension://*",
		"moz-extension://*",
		"http://localhost:*",
		"http://127.0.0.1:*",
	}
}

// ID returns the section identifier.
func (s *OriginAllowlistSection) ID() string {
	return SectionIDOriginAllowlist
}

// Title returns the section title.
func (s *OriginAllowlistSection) Title() string {
	return "Origin Allowlist"
}

// Description returns the section description.
func (s *OriginAllowlistSection) Description() string {
	return "Glob patterns matched against the Origin header of incoming HTTP requests. Requests from an origin matching none of these patterns are rejected."
}

// Data returns the current configuration data.
func (s *OriginAllowlistSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	patternsData := make([]interface{}, len(s.patterns))
	for i, p := range s.patterns {
		patternsData[i] = p
	}

	return map[string]interface{}{
		"patterns": patternsData,
	}
}

// SetData updates the configuration from the provided data.
func (s *OriginAllowlistSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	patternsData, ok := data["patterns"]
	if !ok {
		return nil
	}

	patternsSlice, ok := patternsData.([]interface{})
	if !ok {
		return fmt.Errorf("invalid patterns type: expected []interface{}, got %T", patternsData)
	}

	patterns := make([]string, 0, len(patternsSlice))
	for i, item := range patternsSlice {
		pattern, ok := item.(string)
		if !ok {
			return fmt.Errorf("invalid pattern at index %d: expected string, got %T", i, item)
		}
		patterns = append(patterns, pattern)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setPatternsLocked(patterns)
}

// Validate validates the current configuration, rejecting any pattern that
// fails to compile as a glob.
func (s *OriginAllowlistSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, pattern := range s.patterns {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("pattern at index %d is empty", i)
		}
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("pattern at index %d (%q) is not a valid glob: %w", i, pattern, err)
		}
	}
	return nil
}

// Reset resets the section to the default allowlist.
func (s *OriginAllowlistSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setPatternsLocked(defaultOriginPatterns())
}

// setPatternsLocked replaces the pattern set and recompiles the matchers.
// Callers must hold s.mu.
func (s *OriginAllowlistSection) setPatternsLocked(patterns []string) error {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return fmt.Errorf("compile pattern %q: %w", p, err)
		}
		compiled = append(compiled, g)
	}
	s.patterns = patterns
	s.compiled = compiled
	return nil
}

// IsOriginAllowed reports whether origin matches any configured pattern.
// An empty origin is never allowed.
func (s *OriginAllowlistSection) IsOriginAllowed(origin string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.compiled {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

// AddPattern adds a new glob pattern to the allowlist.
func (s *OriginAllowlistSection) AddPattern(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.patterns {
		if p == pattern {
			return fmt.Errorf("pattern %q already exists", pattern)
		}
	}

	g, err := glob.Compile(pattern)
	if err != nil {
		return fmt.Errorf("compile pattern %q: %w", pattern, err)
	}

	s.patterns = append(s.patterns, pattern)
	s.compiled = append(s.compiled, g)
	return nil
}

// RemovePattern removes a pattern from the allowlist by index.
func (s *OriginAllowlistSection) RemovePattern(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.patterns) {
		return fmt.Errorf("invalid pattern index: %d", index)
	}

	s.patterns = append(s.patterns[:index], s.patterns[index+1:]...)
	s.compiled = append(s.compiled[:index], s.compiled[index+1:]...)
	return nil
}

// GetPatterns returns a copy of all configured patterns.
func (s *OriginAllowlistSection) GetPatterns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.patterns))
	copy(out, s.patterns)
	return out
}
