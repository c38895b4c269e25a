package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"hermes/internal/command"
	"hermes/internal/config"
	"hermes/internal/dispatch"
	"hermes/internal/queue"
	"hermes/internal/slack"
	"hermes/internal/store"
	"hermes/internal/translate"
	"hermes/internal/webhook"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "hermes",
		Short: "Hermes: inline translation bot for team chat",
		Long:  "Hermes receives chat webhook events and delivers private, per-recipient translations of channel messages.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.hermes/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(workspaceCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(installDaemonCmd())
	root.AddCommand(uninstallDaemonCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// newLogger builds the process logger from config. Falls back to stderr when
// the log file cannot be opened.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := os.Stderr
	if cfg.General.LogFile != "" {
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Warn("cannot open log file, logging to stderr", "path", cfg.General.LogFile, "err", err)
		} else {
			out = f
		}
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			fmt.Println("Set slack.signingSecret and slack.botToken (or HERMES_SIGNING_SECRET / HERMES_BOT_TOKEN), then run 'hermes serve'.")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook gateway and translation pipeline",
		Long:  "Starts the webhook HTTP server, the fan-out dispatcher, and the translation consumer. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Slack.SigningSecret == "" {
		return fmt.Errorf("slack.signingSecret is not set (or HERMES_SIGNING_SECRET)")
	}
	if cfg.Slack.BotToken == "" {
		return fmt.Errorf("slack.botToken is not set (or HERMES_BOT_TOKEN)")
	}

	logger = newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prefStore, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
	if err != nil {
		return fmt.Errorf("preference store: %w", err)
	}
	defer prefStore.Close()

	catalog, err := command.LoadCatalog(cfg.Commands.CatalogPath, logger)
	if err != nil {
		return fmt.Errorf("language catalog: %w", err)
	}
	commander := command.NewCommander(prefStore, catalog, logger)

	gateway := slack.New(cfg.Slack.BotToken, logger)
	botUserID, err := gateway.BotUserID(ctx)
	if err != nil {
		logger.Warn("cannot resolve bot user id, echo suppression degraded", "err", err)
	}

	jobQueue := queue.New(queue.Config{
		BufferSize:   cfg.Queue.BufferSize,
		BatchSize:    cfg.Queue.BatchSize,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		RetryBackoff: time.Duration(cfg.Queue.RetryBackoffSeconds) * time.Second,
		Logger:       logger,
	})

	detector := translate.NewHTTPDetector(translate.BackendConfig{
		URL:               cfg.Detection.URL,
		APIKey:            cfg.Detection.APIKey,
		RequestsPerSecond: cfg.Detection.RequestsPerSecond,
		Logger:            logger,
	})
	translator := translate.NewHTTPTranslator(translate.BackendConfig{
		URL:               cfg.Translation.URL,
		APIKey:            cfg.Translation.APIKey,
		RequestsPerSecond: cfg.Translation.RequestsPerSecond,
		Logger:            logger,
	})

	dispatcher := dispatch.New(dispatch.Config{
		Gateway:            gateway,
		Store:              prefStore,
		Detector:           detector,
		Queue:              jobQueue,
		Topic:              cfg.Queue.Topic,
		ShortTextThreshold: cfg.Dispatch.ShortTextThreshold,
		DefaultSource:      cfg.Dispatch.DefaultSourceLanguage,
		Logger:             logger,
	})

	consumer := translate.NewConsumer(translate.ConsumerConfig{
		Translator: translator,
		Gateway:    gateway,
		DeadLetter: jobQueue,
		Logger:     logger,
	})
	go jobQueue.Consume(ctx, cfg.Queue.Topic, consumer.Handle)

	metricsEndpoint := ""
	if cfg.Metrics.Enabled {
		metricsEndpoint = cfg.Metrics.Endpoint
	}

	server := webhook.NewServer(webhook.ServerConfig{
		Port:            cfg.Slack.Port,
		Path:            cfg.Slack.Path,
		SigningSecret:   cfg.Slack.SigningSecret,
		MaxTimestampAge: time.Duration(cfg.Slack.MaxTimestampAgeSeconds) * time.Second,
		BotUserID:       botUserID,
		MetricsEndpoint: metricsEndpoint,
		Dispatcher:      dispatcher,
		Commander:       commander,
		Gateway:         gateway,
		Logger:          logger,
	})

	logger.Info("hermes starting", "version", version, "topic", cfg.Queue.Topic)
	return server.Start(ctx)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and store status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false, "err", err)
				return nil
			}
			logger.Info("config", "path", cfgPath, "loaded", true)

			prefStore, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
			if err != nil {
				logger.Info("store", "path", cfg.Store.DBPath, "ok", false, "err", err)
				return nil
			}
			defer prefStore.Close()
			logger.Info("store", "path", cfg.Store.DBPath, "ok", true)

			logger.Info("slack",
				"signing_secret_set", cfg.Slack.SigningSecret != "",
				"bot_token_set", cfg.Slack.BotToken != "",
				"port", cfg.Slack.Port,
			)
			return nil
		},
	}
}

func workspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Manage provisioned workspaces",
	}

	var defaultLanguage string
	add := &cobra.Command{
		Use:   "add [workspace-id]",
		Short: "Provision a workspace with a default language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			catalog, err := command.LoadCatalog(cfg.Commands.CatalogPath, logger)
			if err != nil {
				return fmt.Errorf("language catalog: %w", err)
			}
			if _, ok := catalog.Name(defaultLanguage); !ok {
				return fmt.Errorf("unknown language code: %s", defaultLanguage)
			}

			prefStore, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
			if err != nil {
				return fmt.Errorf("preference store: %w", err)
			}
			defer prefStore.Close()

			if err := prefStore.AddWorkspace(cmd.Context(), args[0], defaultLanguage); err != nil {
				return fmt.Errorf("provision workspace: %w", err)
			}
			logger.Info("workspace provisioned", "workspace", args[0], "default_language", defaultLanguage)
			return nil
		},
	}
	add.Flags().StringVarP(&defaultLanguage, "language", "l", "en", "default language code for members without a preference")

	cmd.AddCommand(add)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			paths := config.ListPaths(config.Sanitize(cfg))
			keys := make([]string, 0, len(paths))
			for k := range paths {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				val, _ := json.Marshal(paths[k])
				fmt.Printf("%s = %s\n", k, val)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
