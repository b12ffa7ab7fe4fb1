package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		HTTP: HTTPConfig{
			TimeoutSeconds: 0,
		},
		Providers: ProvidersConfig{
			Gemini: ProviderConfig{
				APIBase: "https://generativelanguage.googleapis.com/v1beta",
				Model:   "gemini-2.0-flash",
			},
			Cohere: ProviderConfig{
				APIBase:     "https://api.cohere.ai/v1",
				Model:       "command",
				MaxTokens:   300,
				Temperature: 0.7,
			},
			Mistral: ProviderConfig{
				APIBase:     "https://api.mistral.ai/v1",
				Model:       "mistral-small-latest",
				MaxTokens:   300,
				Temperature: 0.7,
			},
		},
		Notify: NotifyConfig{
			Backend:      "discord",
			AttachWaitMs: 3000,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
