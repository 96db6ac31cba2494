package settings

import (
	"errors"
	"sync"
	"time"
)

// ServiceName represents a configurable service
type ServiceName string

const (
	ServiceNewsAPI      ServiceName = "newsapi"
	ServiceAlphaVantage ServiceName = "alpha_vantage"
)

// Source records where a key came from
type Source string

const (
	SourceEnvironment Source = "environment"
	SourceInteractive Source = "interactive"
)

// KnownServices lists the services whose keys can be entered at runtime
func KnownServices() []ServiceName {
	return []ServiceName{ServiceNewsAPI, ServiceAlphaVantage}
}

// APIKeyConfig represents configuration for a single API key
type APIKeyConfig struct {
	ServiceName ServiceName `json:"service_name"`
	APIKey      string      `json:"api_key,omitempty"`
	Source      Source      `json:"source,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// MaskedAPIKeyConfig represents an API key config with masked secrets
type MaskedAPIKeyConfig struct {
	ServiceName  ServiceName `json:"service_name"`
	DisplayName  string      `json:"display_name"`
	Description  string      `json:"description"`
	APIKey       string      `json:"api_key,omitempty"`
	Source       Source      `json:"source,omitempty"`
	UpdatedAt    *time.Time  `json:"updated_at,omitempty"`
	IsConfigured bool        `json:"is_configured"`
}

// Store holds API keys for the lifetime of the process. Keys are never
// written to disk.
type Store struct {
	mu   sync.RWMutex
	keys map[ServiceName]*APIKeyConfig
	now  func() time.Time
}

// NewStore creates an empty settings store
func NewStore() *Store {
	return &Store{
		keys: make(map[ServiceName]*APIKeyConfig),
		now:  time.Now,
	}
}

// Seed stores key for service as coming from the environment. Empty keys
// are ignored.
func (s *Store) Seed(service ServiceName, key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[service] = &APIKeyConfig{
		ServiceName: service,
		APIKey:      key,
		Source:      SourceEnvironment,
		UpdatedAt:   s.now(),
	}
}

// GetAPIKey returns the API key config for a service (unmasked)
func (s *Store) GetAPIKey(service ServiceName) *APIKeyConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if config, ok := s.keys[service]; ok {
		// Return a copy to prevent external modification
		configCopy := *config
		return &configCopy
	}
	return nil
}

// APIKey returns the raw key for service, empty if none
func (s *Store) APIKey(service ServiceName) string {
	if cfg := s.GetAPIKey(service); cfg != nil {
		return cfg.APIKey
	}
	return ""
}

// SetAPIKey stores an interactively entered API key
func (s *Store) SetAPIKey(config *APIKeyConfig) error {
	if config == nil {
		return errors.New("config cannot be nil")
	}
	if config.ServiceName == "" {
		return errors.New("service name is required")
	}
	if config.APIKey == "" {
		return errors.New("API key is required")
	}

	stored := *config
	stored.Source = SourceInteractive

	s.mu.Lock()
	defer s.mu.Unlock()
	stored.UpdatedAt = s.now()
	s.keys[config.ServiceName] = &stored
	return nil
}

// DeleteAPIKey removes an API key configuration
func (s *Store) DeleteAPIKey(service ServiceName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, service)
}

// GetMasked returns the masked view of one service
func (s *Store) GetMasked(service ServiceName) *MaskedAPIKeyConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.masked(service)
}

// GetMaskedSettings returns all settings with API keys masked
func (s *Store) GetMaskedSettings() map[ServiceName]*MaskedAPIKeyConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[ServiceName]*MaskedAPIKeyConfig)
	for _, service := range KnownServices() {
		result[service] = s.masked(service)
	}
	return result
}

func (s *Store) masked(service ServiceName) *MaskedAPIKeyConfig {
	masked := &MaskedAPIKeyConfig{
		ServiceName: service,
		DisplayName: ServiceDisplayName(service),
		Description: ServiceDescription(service),
	}
	if config, ok := s.keys[service]; ok {
		updated := config.UpdatedAt
		masked.APIKey = maskString(config.APIKey)
		masked.Source = config.Source
		masked.UpdatedAt = &updated
		masked.IsConfigured = config.APIKey != ""
	}
	return masked
}

// IsConfigured checks if a service has API keys configured
func (s *Store) IsConfigured(service ServiceName) bool {
	return s.APIKey(service) != ""
}

// maskString masks a string showing only last 4 characters
func maskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// ServiceDisplayName returns a human-readable name for a service
func ServiceDisplayName(service ServiceName) string {
	switch service {
	case ServiceNewsAPI:
		return "NewsAPI"
	case ServiceAlphaVantage:
		return "Alpha Vantage"
	default:
		return string(service)
	}
}

// ServiceDescription returns a description for a service
func ServiceDescription(service ServiceName) string {
	switch service {
	case ServiceNewsAPI:
		return "Recent headlines for each displayed symbol"
	case ServiceAlphaVantage:
		return "Company names for news search queries"
	default:
		return ""
	}
}
