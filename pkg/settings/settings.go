// Package settings exposes the user-editable settings record shared by the
// HTTP service and the message router. Values are persisted across
// config.toml (everything but the key) and credentials.toml (the key).
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/papercomputeco/cometx/pkg/config"
	"github.com/papercomputeco/cometx/pkg/credentials"
)

// Settings is the JSON shape clients read and write.
type Settings struct {
	APIEndpoint             string  `json:"apiEndpoint"`
	APIKey                  string  `json:"apiKey,omitempty"`
	DefaultModel            string  `json:"defaultModel"`
	APIVersion              string  `json:"apiVersion,omitempty"`
	Theme                   string  `json:"theme"`
	Language                string  `json:"language"`
	EnableContextMenu       bool    `json:"enableContextMenu"`
	EnableKeyboardShortcuts bool    `json:"enableKeyboardShortcuts"`
	MaxTokens               int     `json:"maxTokens"`
	Temperature             float64 `json:"temperature"`
}

// ErrKeyRequired is returned when a save moves the endpoint without
// supplying a key. The stored key only ever goes to the endpoint it was
// saved with.
var ErrKeyRequired = errors.New("apiKey is required when apiEndpoint changes")

// ValidationError reports settings that cannot be saved.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidationError reports whether err rejects the settings themselves
// rather than failing to store them.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}

// Store reads and writes Settings.
type Store interface {
	Get(ctx context.Context) (*Settings, error)
	Set(ctx context.Context, s *Settings) error
}

// Redacted returns a copy of s without the API key.
func (s Settings) Redacted() Settings {
	s.APIKey = ""
	return s
}

// HasKey reports whether an API key is present.
func (s *Settings) HasKey() bool {
	return s != nil && s.APIKey != ""
}

// Validate checks the fields a client may send. Failures are
// *ValidationError.
func (s *Settings) Validate() error {
	return invalid(s.validate())
}

func (s *Settings) validate() error {
	if s == nil {
		return errors.New("settings are required")
	}
	if s.APIEndpoint == "" {
		return errors.New("apiEndpoint is required")
	}
	if s.DefaultModel == "" {
		return errors.New("defaultModel is required")
	}
	if err := config.ValidateTheme(s.Theme); err != nil {
		return err
	}
	if err := config.ValidateLanguage(s.Language); err != nil {
		return err
	}
	if err := config.ValidateMaxTokens(s.MaxTokens); err != nil {
		return err
	}
	return config.ValidateTemperature(s.Temperature)
}

// InheritKey fills an empty next.APIKey from current so clients can save
// settings they received redacted. When next points at a different endpoint
// the current key is not carried over and ErrKeyRequired is returned.
func InheritKey(next, current *Settings) error {
	if next.APIKey != "" || !current.HasKey() {
		return nil
	}
	if !sameEndpoint(next.APIEndpoint, current.APIEndpoint) {
		return invalid(ErrKeyRequired)
	}
	next.APIKey = current.APIKey
	return nil
}

func sameEndpoint(a, b string) bool {
	return strings.EqualFold(strings.TrimRight(a, "/"), strings.TrimRight(b, "/"))
}

// FromConfig builds Settings from a loaded config and a resolved key.
func FromConfig(cfg *config.Config, apiKey string) *Settings {
	return &Settings{
		APIEndpoint:             cfg.Azure.Endpoint,
		APIKey:                  apiKey,
		DefaultModel:            cfg.Azure.Deployment,
		APIVersion:              cfg.Azure.APIVersion,
		Theme:                   cfg.UI.Theme,
		Language:                cfg.UI.Language,
		EnableContextMenu:       cfg.Features.ContextMenu,
		EnableKeyboardShortcuts: cfg.Features.KeyboardShortcuts,
		MaxTokens:               cfg.Chat.MaxTokens,
		Temperature:             cfg.Chat.Temperature,
	}
}

// apply copies s onto cfg. An empty APIVersion leaves the current one.
func (s *Settings) apply(cfg *config.Config) {
	cfg.Azure.Endpoint = s.APIEndpoint
	cfg.Azure.Deployment = s.DefaultModel
	if s.APIVersion != "" {
		cfg.Azure.APIVersion = s.APIVersion
	}
	cfg.UI.Theme = s.Theme
	cfg.UI.Language = s.Language
	cfg.Features.ContextMenu = s.EnableContextMenu
	cfg.Features.KeyboardShortcuts = s.EnableKeyboardShortcuts
	cfg.Chat.MaxTokens = s.MaxTokens
	cfg.Chat.Temperature = s.Temperature
}

// FileStore is the Store backed by the .cometx/ directory.
type FileStore struct {
	configer *config.Configer
	creds    *credentials.Manager
}

// NewFileStore opens the settings files under configDir (empty for the
// default .cometx/ resolution).
func NewFileStore(configDir string) (*FileStore, error) {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("opening credentials: %w", err)
	}
	return &FileStore{configer: cfger, creds: creds}, nil
}

// ConfigPath is the file whose changes should invalidate cached clients.
func (f *FileStore) ConfigPath() string {
	return f.configer.GetTarget()
}

// CredentialsPath is the file holding the API key.
func (f *FileStore) CredentialsPath() string {
	return f.creds.GetTarget()
}

func (f *FileStore) Get(_ context.Context) (*Settings, error) {
	cfg, err := f.configer.LoadConfig()
	if err != nil {
		return nil, err
	}
	key, _, err := f.creds.ResolveKey(credentials.ProviderAzure)
	if err != nil {
		return nil, err
	}
	return FromConfig(cfg, key), nil
}

// Set validates s and persists it. An empty APIKey keeps the stored key
// unless the endpoint changes. While the key comes from the environment the
// endpoint cannot be changed here at all, since the environment key would
// follow it.
func (f *FileStore) Set(ctx context.Context, s *Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	current, err := f.Get(ctx)
	if err != nil {
		return err
	}
	_, source, err := f.creds.ResolveKey(credentials.ProviderAzure)
	if err != nil {
		return err
	}
	if source == credentials.SourceEnv && !sameEndpoint(s.APIEndpoint, current.APIEndpoint) {
		return invalid(fmt.Errorf("apiEndpoint cannot change while %s is set",
			credentials.EnvVarForProvider(credentials.ProviderAzure)))
	}

	update := *s
	if err := InheritKey(&update, current); err != nil {
		return err
	}

	cfg, err := f.configer.LoadConfig()
	if err != nil {
		return err
	}
	update.apply(cfg)
	if err := f.configer.SaveConfig(cfg); err != nil {
		return err
	}

	if s.APIKey == "" {
		return nil
	}
	return f.creds.SetKey(credentials.ProviderAzure, s.APIKey)
}

// StaticStore holds Settings in memory. CLI commands use it for settings
// resolved once from flags, environment and files.
type StaticStore struct {
	mu sync.RWMutex
	s  Settings
}

func NewStaticStore(s *Settings) *StaticStore {
	return &StaticStore{s: *s}
}

func (m *StaticStore) Get(_ context.Context) (*Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.s
	return &out, nil
}

// Set replaces the held settings. An empty APIKey keeps the current key
// unless the endpoint changes.
func (m *StaticStore) Set(_ context.Context, s *Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	update := *s
	if err := InheritKey(&update, &m.s); err != nil {
		return err
	}
	m.s = update
	return nil
}
