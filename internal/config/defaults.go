package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Slack: SlackConfig{
			Port:                   3000,
			Path:                   "/events",
			MaxTimestampAgeSeconds: 300,
		},
		Store: StoreConfig{
			DBPath: "~/.hermes/hermes.db",
		},
		Queue: QueueConfig{
			Topic:               "translate",
			BufferSize:          100,
			BatchSize:           10,
			MaxAttempts:         3,
			RetryBackoffSeconds: 1,
		},
		Dispatch: DispatchConfig{
			ShortTextThreshold:    20,
			DefaultSourceLanguage: "en",
		},
		Detection: BackendConfig{
			RequestsPerSecond: 10,
		},
		Translation: BackendConfig{
			RequestsPerSecond: 10,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
