package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"triquery/internal/aggregator"
	"triquery/internal/channel"
	"triquery/internal/config"
	"triquery/internal/notify"
	"triquery/internal/provider"
	"triquery/internal/query"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "triquery",
		Short: "triquery: ask Gemini, Cohere and Mistral at once",
		Long:  "triquery sends one question to three hosted language models, returns the answers side by side and can post a summary to a chat channel.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json or config.yaml (default: ~/.triquery/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(wizardCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(askCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(configCmd())
	root.AddCommand(installDaemonCmd())
	root.AddCommand(uninstallDaemonCmd())
	return root
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config file, falling back to defaults plus environment
// when the file does not exist, and rebuilds the package logger from it.
func loadConfig() (*config.Config, io.Closer, error) {
	cfgPath := resolveConfigPath()
	cfg, found, err := config.LoadOrDefaults(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	l, closer, err := newLogger(cfg.General, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	logger = l
	if !found {
		logger.Debug("config file not found, using defaults and environment", "path", cfgPath)
	}
	return cfg, closer, nil
}

// newLogger builds the process logger from the general config section.
// A configured log file receives output instead of w.
func newLogger(gc config.GeneralConfig, w io.Writer) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	switch strings.ToLower(gc.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var closer io.Closer = io.NopCloser(nil)
	if gc.LogFile != "" {
		path := config.ExpandPath(gc.LogFile)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closer = f
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(gc.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), closer, nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), closer, nil
}

// app bundles the components shared by serve, ask and send.
type app struct {
	cfg    *config.Config
	svc    *query.Service
	sender channel.Sender
}

// newApp wires the query service. greet is set by serve so the Discord
// greeting is posted once per server start, not on every CLI call.
func newApp(ctx context.Context, cfg *config.Config, greet bool) (*app, error) {
	sender, err := channel.NewSender(cfg.Notify, channel.SenderOptions{GreetOnReady: greet, Logger: logger})
	if err != nil {
		return nil, err
	}
	if sender != nil {
		if err := sender.Open(ctx); err != nil {
			// Sends will report the sender as not connected.
			logger.Error("notification backend connect failed", "backend", sender.Name(), "err", err)
		}
	}

	var gateCfg notify.Config
	gateCfg.ChannelID = cfg.Notify.ChannelID
	gateCfg.Logger = logger.With("component", "notify")
	if sender != nil {
		gateCfg.Sender = sender
	}

	agg := aggregator.New(aggregator.Config{
		Providers: provider.FromConfig(cfg, logger),
		Logger:    logger.With("component", "aggregator"),
	})
	svc := query.New(query.Config{
		Aggregator:  agg,
		Gate:        notify.New(gateCfg),
		MissingKeys: cfg.MissingProviderKeys,
		AttachWait:  attachWait(cfg.Notify.AttachWaitMs),
		Logger:      logger.With("component", "query"),
	})
	return &app{cfg: cfg, svc: svc, sender: sender}, nil
}

func attachWait(ms int) time.Duration {
	if ms == 0 {
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}

// close waits for in-flight notifications, then disconnects the sender.
func (a *app) close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.svc.Wait(ctx); err != nil {
		logger.Warn("notifications still pending at shutdown", "err", err)
	}
	if a.sender != nil {
		if err := a.sender.Close(); err != nil {
			logger.Warn("notification backend close", "err", err)
		}
	}
}

// logStartupDiagnostics reports missing provider keys and notification state.
func logStartupDiagnostics(cfg *config.Config) {
	if missing := cfg.MissingProviderKeys(); len(missing) > 0 {
		logger.Warn("provider keys missing; /api/query will fail", "keys", strings.Join(missing, ", "))
	}
	if cfg.NotifyConfigured() {
		logger.Info("notifications configured", "backend", cfg.Notify.Backend, "channel", cfg.Notify.ChannelID)
	} else {
		logger.Info("notifications not configured (optional)", "backend", cfg.Notify.Backend)
	}
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}
			if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			cfg.Providers.Gemini.APIKey = "${GEMINI_API_KEY:-}"
			cfg.Providers.Cohere.APIKey = "${COHERE_API_KEY:-}"
			cfg.Providers.Mistral.APIKey = "${MISTRAL_API_KEY:-}"
			cfg.Notify.Discord.Token = "${DISCORD_TOKEN:-}"
			cfg.Notify.ChannelID = "${DISCORD_CHANNEL_ID:-}"
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  "Serves the web UI and the /api/query and /api/discord endpoints. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logStartupDiagnostics(cfg)

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close(10 * time.Second)

	web := channel.NewWeb(channel.WebConfig{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		StaticDir: cfg.Server.StaticDir,
		Version:   version,
		Service:   a.svc,
		Config:    cfg,
		Logger:    logger.With("component", "web"),
	})
	if err := web.Start(ctx); err != nil {
		return fmt.Errorf("web server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func askCmd() *cobra.Command {
	var forceNotify bool
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask all three providers once and print the JSON result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logCloser, err := loadConfig()
			if err != nil {
				return err
			}
			defer logCloser.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer a.close(30 * time.Second)

			text := strings.Join(args, " ")
			run := a.svc.Query
			if forceNotify {
				run = a.svc.QueryNotify
			}
			result, err := run(ctx, text)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cmd.Flags().BoolVar(&forceNotify, "notify", false, "send the summary to the chat channel even without a keyword")
	return cmd
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <message>",
		Short: "Send a message straight to the configured chat channel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logCloser, err := loadConfig()
			if err != nil {
				return err
			}
			defer logCloser.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer a.close(5 * time.Second)

			out, err := a.svc.Send(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Message)
			if !out.Sent {
				return errors.New("message not sent")
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, found, err := config.LoadOrDefaults(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Info("config", "path", cfgPath, "loaded", found)

			missing := strings.Join(cfg.MissingProviderKeys(), ",")
			for _, env := range []struct{ name, key string }{
				{"gemini", "GEMINI_API_KEY"},
				{"cohere", "COHERE_API_KEY"},
				{"mistral", "MISTRAL_API_KEY"},
			} {
				logger.Info("provider", "name", env.name, "configured", !strings.Contains(missing, env.key))
			}
			logger.Info("notify", "backend", cfg.Notify.Backend, "configured", cfg.NotifyConfigured())
			logger.Info("server", "addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), "metrics", cfg.Metrics.Enabled)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
		Long:  "Show the config file path, a single value, or all values with secrets masked.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. server.port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.LoadOrDefaults(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.LoadOrDefaults(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.ListPaths(config.Sanitize(cfg)), "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), resolveConfigPath())
		},
	})

	return cmd
}
