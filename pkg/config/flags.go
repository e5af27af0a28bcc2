package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --deployment
// on "cometx serve", "cometx chat" and "cometx ask").
type Flag struct {
	// Name is the long flag name (e.g. "deployment").
	Name string

	// Shorthand is the one-letter short flag (e.g. "d"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "azure.deployment").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag, AddFloat64Flag
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagEndpoint    = "endpoint"
	FlagDeployment  = "deployment"
	FlagAPIVersion  = "api-version"
	FlagMaxTokens   = "max-tokens"
	FlagTemperature = "temperature"
	FlagListen      = "listen"
	FlagSQLite      = "sqlite"
	FlagKafkaBroker = "kafka-brokers"
	FlagKafkaTopic  = "kafka-topic"
)

// Flags is the shared registry of connection and service flags.
var Flags = FlagSet{
	FlagEndpoint:    {Name: "endpoint", Shorthand: "e", ViperKey: "azure.endpoint", Description: "Azure OpenAI resource endpoint"},
	FlagDeployment:  {Name: "deployment", Shorthand: "d", ViperKey: "azure.deployment", Description: "Model deployment name"},
	FlagAPIVersion:  {Name: "api-version", ViperKey: "azure.api_version", Description: "Azure OpenAI API version"},
	FlagMaxTokens:   {Name: "max-tokens", ViperKey: "chat.max_tokens", Description: "Maximum completion tokens"},
	FlagTemperature: {Name: "temperature", Shorthand: "t", ViperKey: "chat.temperature", Description: "Sampling temperature (0-1)"},
	FlagListen:      {Name: "listen", Shorthand: "l", ViperKey: "server.listen", Description: "Address for the HTTP service to listen on"},
	FlagSQLite:      {Name: "sqlite", Shorthand: "s", ViperKey: "history.sqlite_path", Description: "Path to SQLite history database (default: in-memory)"},
	FlagKafkaBroker: {Name: "kafka-brokers", ViperKey: "events.kafka_brokers", Description: "Comma separated Kafka brokers for chat events"},
	FlagKafkaTopic:  {Name: "kafka-topic", ViperKey: "events.kafka_topic", Description: "Kafka topic for chat events"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddFloat64Flag registers a float64 flag on cmd from the given FlagSet.
func AddFloat64Flag(cmd *cobra.Command, fs FlagSet, key string, target *float64) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetFloat64(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().Float64VarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().Float64Var(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaults returns a viper instance holding only NewDefaultConfig values.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
