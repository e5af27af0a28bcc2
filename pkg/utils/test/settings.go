package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/cometx/pkg/settings"
)

// SettingsStore is an in-memory settings.Store.
type SettingsStore struct {
	mu    sync.Mutex
	s     settings.Settings
	reads int

	// Err fails Get; SetErr fails Set after validation.
	Err    error
	SetErr error
}

// NewSettingsStore returns a store holding a valid configuration pointing
// at endpoint with apiKey.
func NewSettingsStore(endpoint, apiKey string) *SettingsStore {
	return &SettingsStore{s: settings.Settings{
		APIEndpoint:             endpoint,
		APIKey:                  apiKey,
		DefaultModel:            "gpt-4o",
		APIVersion:              "2024-08-01-preview",
		Theme:                   "dark",
		Language:                "ar",
		EnableContextMenu:       true,
		EnableKeyboardShortcuts: true,
		MaxTokens:               4096,
		Temperature:             0.7,
	}}
}

func (m *SettingsStore) Get(_ context.Context) (*settings.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.Err != nil {
		return nil, m.Err
	}
	out := m.s
	return &out, nil
}

func (m *SettingsStore) Set(_ context.Context, s *settings.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	update := *s
	if err := settings.InheritKey(&update, &m.s); err != nil {
		return err
	}
	m.s = update
	return nil
}

// ReadCount returns how many times Get was called.
func (m *SettingsStore) ReadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}
