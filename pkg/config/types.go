package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Config represents the persistent cometx configuration stored as config.toml
// in the .cometx/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Azure    AzureConfig    `toml:"azure"`
	Chat     ChatConfig     `toml:"chat"`
	UI       UIConfig       `toml:"ui"`
	Features FeaturesConfig `toml:"features"`
	Server   ServerConfig   `toml:"server"`
	History  HistoryConfig  `toml:"history"`
	Events   EventsConfig   `toml:"events"`
}

// AzureConfig identifies the remote deployment. The API key is not part of
// config.toml, it lives in credentials.toml.
type AzureConfig struct {
	Endpoint   string `toml:"endpoint,omitempty"`
	Deployment string `toml:"deployment,omitempty"`
	APIVersion string `toml:"api_version,omitempty"`
}

// ChatConfig holds the default generation options.
type ChatConfig struct {
	MaxTokens   int     `toml:"max_tokens,omitempty"`
	Temperature float64 `toml:"temperature"`
}

// UIConfig holds presentation preferences. They are stored and echoed back to
// clients but do not affect completions.
type UIConfig struct {
	Theme    string `toml:"theme,omitempty"`
	Language string `toml:"language,omitempty"`
}

// FeaturesConfig toggles client-side features.
type FeaturesConfig struct {
	ContextMenu       bool `toml:"context_menu"`
	KeyboardShortcuts bool `toml:"keyboard_shortcuts"`
}

// ServerConfig holds HTTP service settings.
type ServerConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// HistoryConfig selects the conversation history backend. An empty
// SQLitePath keeps history in memory.
type HistoryConfig struct {
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// EventsConfig configures the chat event publisher. No brokers means events
// are dropped.
type EventsConfig struct {
	KafkaBrokers []string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string   `toml:"kafka_topic,omitempty"`
}

var (
	validThemes    = []string{"dark", "light", "system"}
	validLanguages = []string{"ar", "en"}
)

// ValidateTemperature reports whether t is an accepted sampling temperature.
func ValidateTemperature(t float64) error {
	if t < 0 || t > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %v", t)
	}
	return nil
}

// ValidateMaxTokens reports whether n is an accepted completion budget.
func ValidateMaxTokens(n int) error {
	if n <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", n)
	}
	return nil
}

// ValidateTheme reports whether theme is one of the known UI themes.
func ValidateTheme(theme string) error {
	if !slices.Contains(validThemes, theme) {
		return fmt.Errorf("unknown theme %q (available: %s)", theme, strings.Join(validThemes, ", "))
	}
	return nil
}

// ValidateLanguage reports whether lang is one of the known UI languages.
func ValidateLanguage(lang string) error {
	if !slices.Contains(validLanguages, lang) {
		return fmt.Errorf("unknown language %q (available: %s)", lang, strings.Join(validLanguages, ", "))
	}
	return nil
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func boolKey(key string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"azure.endpoint": {
		get: func(c *Config) string { return c.Azure.Endpoint },
		set: func(c *Config, v string) error { c.Azure.Endpoint = v; return nil },
	},
	"azure.deployment": {
		get: func(c *Config) string { return c.Azure.Deployment },
		set: func(c *Config, v string) error { c.Azure.Deployment = v; return nil },
	},
	"azure.api_version": {
		get: func(c *Config) string { return c.Azure.APIVersion },
		set: func(c *Config, v string) error { c.Azure.APIVersion = v; return nil },
	},
	"chat.max_tokens": {
		get: func(c *Config) string { return strconv.Itoa(c.Chat.MaxTokens) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for chat.max_tokens: %w", err)
			}
			if err := ValidateMaxTokens(n); err != nil {
				return fmt.Errorf("invalid value for chat.max_tokens: %w", err)
			}
			c.Chat.MaxTokens = n
			return nil
		},
	},
	"chat.temperature": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Chat.Temperature, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			t, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for chat.temperature: %w", err)
			}
			if err := ValidateTemperature(t); err != nil {
				return fmt.Errorf("invalid value for chat.temperature: %w", err)
			}
			c.Chat.Temperature = t
			return nil
		},
	},
	"ui.theme": {
		get: func(c *Config) string { return c.UI.Theme },
		set: func(c *Config, v string) error {
			if err := ValidateTheme(v); err != nil {
				return fmt.Errorf("invalid value for ui.theme: %w", err)
			}
			c.UI.Theme = v
			return nil
		},
	},
	"ui.language": {
		get: func(c *Config) string { return c.UI.Language },
		set: func(c *Config, v string) error {
			if err := ValidateLanguage(v); err != nil {
				return fmt.Errorf("invalid value for ui.language: %w", err)
			}
			c.UI.Language = v
			return nil
		},
	},
	"features.context_menu": boolKey("features.context_menu", func(c *Config) *bool {
		return &c.Features.ContextMenu
	}),
	"features.keyboard_shortcuts": boolKey("features.keyboard_shortcuts", func(c *Config) *bool {
		return &c.Features.KeyboardShortcuts
	}),
	"server.listen": {
		get: func(c *Config) string { return c.Server.Listen },
		set: func(c *Config, v string) error { c.Server.Listen = v; return nil },
	},
	"history.sqlite_path": {
		get: func(c *Config) string { return c.History.SQLitePath },
		set: func(c *Config, v string) error { c.History.SQLitePath = v; return nil },
	},
	"events.kafka_brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.KafkaBrokers, ",") },
		set: func(c *Config, v string) error {
			c.Events.KafkaBrokers = SplitList(v)
			return nil
		},
	},
	"events.kafka_topic": {
		get: func(c *Config) string { return c.Events.KafkaTopic },
		set: func(c *Config, v string) error { c.Events.KafkaTopic = v; return nil },
	},
}

// SplitList splits a comma separated value, trimming blanks and dropping
// empty entries.
func SplitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
