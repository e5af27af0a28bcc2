package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/cometx/pkg/dotdir"
)

// EnvPrefix prefixes every environment override, e.g. COMETX_AZURE_ENDPOINT.
const EnvPrefix = "COMETX"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the COMETX_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (COMETX_AZURE_DEPLOYMENT, COMETX_SERVER_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materialises the effective Config out of v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Version: v.GetInt("version"),
		Azure: AzureConfig{
			Endpoint:   v.GetString("azure.endpoint"),
			Deployment: v.GetString("azure.deployment"),
			APIVersion: v.GetString("azure.api_version"),
		},
		Chat: ChatConfig{
			MaxTokens:   v.GetInt("chat.max_tokens"),
			Temperature: v.GetFloat64("chat.temperature"),
		},
		UI: UIConfig{
			Theme:    v.GetString("ui.theme"),
			Language: v.GetString("ui.language"),
		},
		Features: FeaturesConfig{
			ContextMenu:       v.GetBool("features.context_menu"),
			KeyboardShortcuts: v.GetBool("features.keyboard_shortcuts"),
		},
		Server: ServerConfig{
			Listen: v.GetString("server.listen"),
		},
		History: HistoryConfig{
			SQLitePath: v.GetString("history.sqlite_path"),
		},
		Events: EventsConfig{
			KafkaBrokers: brokersFromViper(v),
			KafkaTopic:   v.GetString("events.kafka_topic"),
		},
	}

	if err := ValidateTemperature(cfg.Chat.Temperature); err != nil {
		return nil, err
	}
	if err := ValidateMaxTokens(cfg.Chat.MaxTokens); err != nil {
		return nil, err
	}

	return cfg, nil
}

// brokersFromViper accepts either a TOML array or a comma separated string
// (the form env vars and flags take).
func brokersFromViper(v *viper.Viper) []string {
	var out []string
	for _, b := range v.GetStringSlice("events.kafka_brokers") {
		out = append(out, SplitList(b)...)
	}
	return out
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("azure.endpoint", d.Azure.Endpoint)
	v.SetDefault("azure.deployment", d.Azure.Deployment)
	v.SetDefault("azure.api_version", d.Azure.APIVersion)

	v.SetDefault("chat.max_tokens", d.Chat.MaxTokens)
	v.SetDefault("chat.temperature", d.Chat.Temperature)

	v.SetDefault("ui.theme", d.UI.Theme)
	v.SetDefault("ui.language", d.UI.Language)

	v.SetDefault("features.context_menu", d.Features.ContextMenu)
	v.SetDefault("features.keyboard_shortcuts", d.Features.KeyboardShortcuts)

	v.SetDefault("server.listen", d.Server.Listen)

	v.SetDefault("history.sqlite_path", d.History.SQLitePath)

	v.SetDefault("events.kafka_brokers", d.Events.KafkaBrokers)
	v.SetDefault("events.kafka_topic", d.Events.KafkaTopic)
}
