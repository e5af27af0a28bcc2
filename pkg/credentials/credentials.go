// Package credentials keeps the Azure OpenAI API key in credentials.toml
// inside the .cometx/ directory, apart from config.toml so that file can be
// committed or shared without leaking the key.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/cometx/pkg/dotdir"
)

const (
	// FileName is the credentials file inside the .cometx/ directory.
	FileName = "credentials.toml"

	// ProviderAzure is the provider name the Azure OpenAI key is stored under.
	ProviderAzure = "azure"

	fileVersion = 1
)

// envVars names the environment variable that overrides each provider's
// stored key.
var envVars = map[string]string{
	ProviderAzure: "AZURE_OPENAI_API_KEY",
}

// Manager reads and writes one credentials.toml.
type Manager struct {
	path string
	now  func() time.Time
}

// NewManager resolves the .cometx/ directory (override first) and returns a
// manager for the credentials file inside it. The file need not exist.
func NewManager(override string) (*Manager, error) {
	dir, err := dotdir.NewManager().Target(override)
	if err != nil {
		return nil, err
	}
	return &Manager{path: filepath.Join(dir, FileName), now: time.Now}, nil
}

// GetTarget returns the path of the credentials file.
func (m *Manager) GetTarget() string {
	return m.path
}

// Load reads the credentials file. A missing file yields empty credentials.
func (m *Manager) Load() (*Credentials, error) {
	creds := &Credentials{Version: fileVersion}

	data, err := os.ReadFile(m.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading credentials: %w", err)
	default:
		if err := toml.Unmarshal(data, creds); err != nil {
			return nil, fmt.Errorf("parsing credentials %s: %w", m.path, err)
		}
	}

	if creds.Providers == nil {
		creds.Providers = map[string]ProviderCredential{}
	}
	return creds, nil
}

// Save replaces the credentials file atomically with mode 0600.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}
	creds.Version = fileVersion

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := dotdir.WriteFile(m.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// update loads, applies fn and saves.
func (m *Manager) update(fn func(*Credentials)) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}
	fn(creds)
	return m.Save(creds)
}

// SetKey stores key for provider.
func (m *Manager) SetKey(provider, key string) error {
	return m.update(func(c *Credentials) {
		c.Providers[provider] = ProviderCredential{APIKey: key, UpdatedAt: m.now().UTC()}
	})
}

// RemoveKey deletes the stored key for provider. Removing an absent key is
// not an error.
func (m *Manager) RemoveKey(provider string) error {
	return m.update(func(c *Credentials) {
		delete(c.Providers, provider)
	})
}

// GetKey returns the stored key for provider, or "" when none is stored.
// The environment is not consulted; see ResolveKey.
func (m *Manager) GetKey(provider string) (string, error) {
	creds, err := m.Load()
	if err != nil {
		return "", err
	}
	return creds.Providers[provider].APIKey, nil
}

// ResolveKey returns the key for provider and where it came from. The
// provider's environment variable wins over the stored key.
func (m *Manager) ResolveKey(provider string) (string, Source, error) {
	if env := EnvVarForProvider(provider); env != "" {
		if key := os.Getenv(env); key != "" {
			return key, SourceEnv, nil
		}
	}

	key, err := m.GetKey(provider)
	switch {
	case err != nil:
		return "", SourceNone, err
	case key == "":
		return "", SourceNone, nil
	default:
		return key, SourceFile, nil
	}
}

// ListProviders returns the providers with a stored key, sorted.
func (m *Manager) ListProviders() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(creds.Providers)), nil
}

// EnvVarForProvider returns the environment variable overriding provider's
// key, or "" for an unknown provider.
func EnvVarForProvider(provider string) string {
	return envVars[provider]
}

// SupportedProviders returns the providers a key can be stored for, sorted.
func SupportedProviders() []string {
	return slices.Sorted(maps.Keys(envVars))
}

// IsSupportedProvider reports whether provider is known.
func IsSupportedProvider(provider string) bool {
	_, ok := envVars[provider]
	return ok
}
