package config

import (
	"sync"
)

const (
	// SectionIDCollaborator is the identifier for the downstream collaborator section.
	SectionIDCollaborator = "collaborator"
)

// CollaboratorSection manages connection settings for the downstream
// collaborator: the OpenAI-compatible chat endpoint a fabric instance
// forwards dispatched payloads to.
type CollaboratorSection struct {
	Model   string
	BaseURL string
	APIKey  string
	mu      sync.RWMutex
}

// NewCollaboratorSection creates a new collaborator section with default
// (empty) settings.
func NewCollaboratorSection() *CollaboratorSection {
	return &CollaboratorSection{}
}

// ID returns the section identifier.
func (s *CollaboratorSection) ID() string {
	return SectionIDCollaborator
}

// Title returns the section title.
func (s *CollaboratorSection) Title() string {
	return "Downstream Collaborator"
}

// Description returns the section description.
func (s *CollaboratorSection) Description() string {
	return "Configure the OpenAI-compatible endpoint that receives dispatched payloads."
}

// Data returns the current configuration data.
func (s *CollaboratorSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"model":    s.Model,
		"base_url": s.BaseURL,
		"api_key":  s.APIKey,
	}
}

// SetData updates the configuration from the provided data.
func (s *CollaboratorSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if model, ok := data["model"].(string); ok {
		s.Model = model
	}
	if baseURL, ok := data["base_url"].(string); ok {
		s.BaseURL = baseURL
	}
	if apiKey, ok := data["api_key"].(string); ok {
		s.APIKey = apiKey
	}

	return nil
}

// Validate validates the current configuration.
func (s *CollaboratorSection) Validate() error {
	// Every field is optional here: the API key, base URL and model can
	// also come from CLI flags or environment variables (see
	// BuildCollaborator), which is where a missing API key is rejected.
	return nil
}

// Reset resets the section to default configuration.
func (s *CollaboratorSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Model = ""
	s.BaseURL = ""
	s.APIKey = ""
}

// GetModel returns the configured model name.
func (s *CollaboratorSection) GetModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Model
}

// SetModel sets the model name.
func (s *CollaboratorSection) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Model = model
}

// GetBaseURL returns the configured base URL.
func (s *CollaboratorSection) GetBaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.BaseURL
}

// SetBaseURL sets the base URL.
func (s *CollaboratorSection) SetBaseURL(baseURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BaseURL = baseURL
}

// GetAPIKey returns the configured API key.
func (s *CollaboratorSection) GetAPIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.APIKey
}

// SetAPIKey sets the API key.
func (s *CollaboratorSection) SetAPIKey(apiKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.APIKey = apiKey
}
