// ABOUTME: Entry point for the gitea-matrix bot
// ABOUTME: Wires the store, webhook endpoint, and Matrix bot together

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
	"maunium.net/go/mautrix/id"

	"github.com/2389/gitea-matrix/internal/bot"
	"github.com/2389/gitea-matrix/internal/config"
	"github.com/2389/gitea-matrix/internal/rooms"
	"github.com/2389/gitea-matrix/internal/session"
	"github.com/2389/gitea-matrix/internal/store"
	"github.com/2389/gitea-matrix/internal/webhook"
)

const banner = `
    ╭──────────────────────────────────╮
    │                                  │
    │   ┏━╸╻╺┳╸┏━╸┏━┓   ┏┳┓╺┳╸┏━┓╻ ╻   │
    │   ┃╺┓┃ ┃ ┣╸ ┣━┫   ┃┃┃ ┃ ┣┳┛┏╋┛   │
    │   ┗━┛╹ ╹ ┗━╸╹ ╹   ╹ ╹ ╹ ╹┗╸╹╹ ╹  │
    │                                  │
    │        gitea-matrix bot          │
    │                                  │
    ╰──────────────────────────────────╯
`

// getConfigPath returns the path to the config file.
// Priority: GITEA_MATRIX_CONFIG env var > XDG_CONFIG_HOME/gitea-matrix/config.toml > ~/.config/gitea-matrix/config.toml
func getConfigPath() string {
	if envPath := os.Getenv("GITEA_MATRIX_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "gitea-matrix", "config.toml")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	configPath := getConfigPath()

	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", configPath, err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging.Level)

	// Print startup info
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:     %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Homeserver: %s\n", cfg.Matrix.Homeserver)
	green.Print("    ▶ ")
	fmt.Printf("User:       %s\n", cfg.Matrix.UserID)
	green.Print("    ▶ ")
	fmt.Printf("Webhook:    %s%s\n", cfg.Webhook.ListenAddr, cfg.Webhook.Path)
	green.Print("    ▶ ")
	fmt.Printf("Database:   %s\n", cfg.Database.Path)
	fmt.Println()

	// Open store
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	resolver := session.NewResolver(db, logger)
	tracker := rooms.NewTracker(id.UserID(cfg.Matrix.UserID), logger)
	commands := bot.NewCommands(db, resolver, logger)

	matrixBot, err := bot.New(cfg, tracker, commands, logger)
	if err != nil {
		return fmt.Errorf("creating bot: %w", err)
	}

	hookServer := webhook.NewServer(
		webhook.Config{
			ListenAddr:      cfg.Webhook.ListenAddr,
			Path:            cfg.Webhook.Path,
			Secret:          cfg.Webhook.Secret,
			ShutdownTimeout: cfg.Webhook.ShutdownTimeout,
		},
		tracker,
		matrixBot,
		logger,
	)

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting gitea-matrix")

	// Run the sync loop and the webhook listener; the first failure (or a
	// signal) takes both down.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return matrixBot.Run(gctx)
	})
	g.Go(func() error {
		return hookServer.Run(gctx)
	})

	return g.Wait()
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
