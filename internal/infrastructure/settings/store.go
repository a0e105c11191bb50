package settings

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/jumboapi/backend/internal/domain"
)

// Store is a file-backed settings store. Settings are kept in memory and
// written through to a JSON file on every accepted update, so tuning
// survives restarts.
type Store struct {
	mu       sync.RWMutex
	settings domain.MatchSettings
	creds    domain.Credentials
	hasCreds bool
	path     string
}

type storeFile struct {
	Settings    domain.MatchSettings `json:"settings"`
	Credentials *domain.Credentials  `json:"credentials,omitempty"`
}

// NewStore loads settings from path, merging them over the defaults so a
// file written by an older version still yields a complete settings set.
// A missing or unreadable file starts from the defaults.
func NewStore(path string) *Store {
	s := &Store{
		settings: domain.DefaultMatchSettings(),
		path:     path,
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var saved storeFile
	if err := json.Unmarshal(raw, &saved); err != nil {
		log.Printf("[SETTINGS] Ignoring corrupt settings file %s: %v", path, err)
		return s
	}

	// Re-encode the saved settings as a patch over the defaults; fields
	// absent from the file keep their default values.
	var patch domain.SettingsPatch
	if rawSettings, err := json.Marshal(saved.Settings); err == nil {
		_ = json.Unmarshal(rawSettings, &patch)
	}
	merged := patch.Apply(s.settings)
	if err := merged.Validate(); err != nil {
		log.Printf("[SETTINGS] Saved settings invalid, using defaults: %v", err)
		return s
	}
	s.settings = merged
	if saved.Credentials != nil && saved.Credentials.Username != "" {
		s.creds = *saved.Credentials
		s.hasCreds = true
	}
	return s
}

// Get returns the current settings snapshot.
func (s *Store) Get() (domain.MatchSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

// Update validates and persists a partial update. On validation or
// persistence failure the stored settings are left unchanged.
func (s *Store) Update(patch domain.SettingsPatch) (domain.MatchSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := patch.Apply(s.settings)
	if err := updated.Validate(); err != nil {
		return s.settings, err
	}

	previous := s.settings
	s.settings = updated
	if err := s.saveLocked(); err != nil {
		s.settings = previous
		return s.settings, err
	}
	return s.settings, nil
}

// SetCredentials stores the retailer login, or clears it when the username
// is empty.
func (s *Store) SetCredentials(creds domain.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if creds.Username == "" {
		s.creds = domain.Credentials{}
		s.hasCreds = false
	} else {
		s.creds = creds
		s.hasCreds = true
	}
	return s.saveLocked()
}

// Credentials returns the stored login, if any.
func (s *Store) Credentials() (domain.Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds, s.hasCreds
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	file := storeFile{Settings: s.settings}
	if s.hasCreds {
		file.Credentials = &s.creds
	}
	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
