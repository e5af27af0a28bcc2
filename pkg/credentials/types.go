package credentials

import "time"

// Credentials is the content of credentials.toml.
type Credentials struct {
	Version   int                           `toml:"version"`
	Providers map[string]ProviderCredential `toml:"providers"`
}

// ProviderCredential is one stored key.
type ProviderCredential struct {
	APIKey    string    `toml:"api_key"`
	UpdatedAt time.Time `toml:"updated_at,omitempty"`
}

// Source reports where a resolved key came from.
type Source string

const (
	SourceNone Source = ""
	SourceEnv  Source = "env"
	SourceFile Source = "file"
)
