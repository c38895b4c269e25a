// Package config loads and validates the Hermes configuration. Configuration
// comes from a JSON file with ${VAR} / ${VAR:-default} expansion, and HERMES_*
// environment variables override the file for secrets and deploy-time knobs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the root configuration for Hermes.
type Config struct {
	General     GeneralConfig  `json:"general"`
	Slack       SlackConfig    `json:"slack"`
	Store       StoreConfig    `json:"store"`
	Queue       QueueConfig    `json:"queue"`
	Dispatch    DispatchConfig `json:"dispatch"`
	Detection   BackendConfig  `json:"detection"`
	Translation BackendConfig  `json:"translation"`
	Commands    CommandsConfig `json:"commands"`
	Metrics     MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel" env:"HERMES_LOG_LEVEL"`
	LogFile  string `json:"logFile,omitempty" env:"HERMES_LOG_FILE"`
}

// SlackConfig configures the event gateway and the chat API client.
type SlackConfig struct {
	SigningSecret string `json:"signingSecret" env:"HERMES_SIGNING_SECRET"`
	BotToken      string `json:"botToken" env:"HERMES_BOT_TOKEN"`
	Port          int    `json:"port" env:"HERMES_PORT"`
	Path          string `json:"path"`
	// MaxTimestampAgeSeconds rejects webhook requests older than this.
	// 0 disables the freshness check.
	MaxTimestampAgeSeconds int `json:"maxTimestampAgeSeconds"`
}

type StoreConfig struct {
	DBPath string `json:"dbPath" env:"HERMES_DB_PATH"`
}

type QueueConfig struct {
	Topic               string `json:"topic"`
	BufferSize          int    `json:"bufferSize"`
	BatchSize           int    `json:"batchSize"`
	MaxAttempts         int    `json:"maxAttempts"`
	RetryBackoffSeconds int    `json:"retryBackoffSeconds"`
}

type DispatchConfig struct {
	// ShortTextThreshold is the rune count below which language detection is
	// skipped and DefaultSourceLanguage assumed.
	ShortTextThreshold    int    `json:"shortTextThreshold"`
	DefaultSourceLanguage string `json:"defaultSourceLanguage"`
}

// BackendConfig configures one HTTP language backend.
type BackendConfig struct {
	URL               string  `json:"url"`
	APIKey            string  `json:"apiKey"`
	RequestsPerSecond float64 `json:"requestsPerSecond"`
}

type CommandsConfig struct {
	// CatalogPath optionally replaces the built-in language catalog with a
	// YAML name->code mapping.
	CatalogPath string `json:"catalogPath,omitempty"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.hermes).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hermes"
	}
	return filepath.Join(home, ".hermes")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads, expands, and validates the config file at path. Environment
// variables prefixed HERMES_ override file values after parsing.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("cannot apply environment overrides: %w", err)
	}

	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Commands.CatalogPath = ExpandPath(cfg.Commands.CatalogPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Slack.Port < 1 || cfg.Slack.Port > 65535 {
		errs = append(errs, "slack.port must be between 1 and 65535")
	}
	if !strings.HasPrefix(cfg.Slack.Path, "/") {
		errs = append(errs, "slack.path must start with /")
	}
	if cfg.Slack.MaxTimestampAgeSeconds < 0 {
		errs = append(errs, "slack.maxTimestampAgeSeconds must be >= 0")
	}

	if cfg.Store.DBPath == "" {
		errs = append(errs, "store.dbPath must not be empty")
	}

	if cfg.Queue.Topic == "" {
		errs = append(errs, "queue.topic must not be empty")
	}
	if cfg.Queue.BufferSize < 1 {
		errs = append(errs, "queue.bufferSize must be >= 1")
	}
	if cfg.Queue.BatchSize < 1 {
		errs = append(errs, "queue.batchSize must be >= 1")
	}
	if cfg.Queue.MaxAttempts < 1 {
		errs = append(errs, "queue.maxAttempts must be >= 1")
	}
	if cfg.Queue.RetryBackoffSeconds < 0 {
		errs = append(errs, "queue.retryBackoffSeconds must be >= 0")
	}

	if cfg.Dispatch.ShortTextThreshold < 0 {
		errs = append(errs, "dispatch.shortTextThreshold must be >= 0")
	}
	if cfg.Dispatch.DefaultSourceLanguage == "" {
		errs = append(errs, "dispatch.defaultSourceLanguage must not be empty")
	}

	if cfg.Detection.RequestsPerSecond < 0 {
		errs = append(errs, "detection.requestsPerSecond must be >= 0")
	}
	if cfg.Translation.RequestsPerSecond < 0 {
		errs = append(errs, "translation.requestsPerSecond must be >= 0")
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
