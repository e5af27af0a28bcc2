package config

const (
	defaultEndpoint   = "https://uaenorth.api.cognitive.microsoft.com/"
	defaultDeployment = "gpt-4o"
	defaultAPIVersion = "2024-08-01-preview"

	defaultMaxTokens   = 4096
	defaultTemperature = 0.7

	defaultTheme    = "dark"
	defaultLanguage = "ar"

	defaultListen = "127.0.0.1:8787"

	defaultKafkaTopic = "cometx.chat.completed"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Azure: AzureConfig{
			Endpoint:   defaultEndpoint,
			Deployment: defaultDeployment,
			APIVersion: defaultAPIVersion,
		},
		Chat: ChatConfig{
			MaxTokens:   defaultMaxTokens,
			Temperature: defaultTemperature,
		},
		UI: UIConfig{
			Theme:    defaultTheme,
			Language: defaultLanguage,
		},
		Features: FeaturesConfig{
			ContextMenu:       true,
			KeyboardShortcuts: true,
		},
		Server: ServerConfig{
			Listen: defaultListen,
		},
		Events: EventsConfig{
			KafkaTopic: defaultKafkaTopic,
		},
	}
}
