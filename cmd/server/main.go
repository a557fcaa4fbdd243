// Package main implements the entry point for the atscale dispatcher
// server, which accepts image resize requests over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/getsentry/sentry-go"
	"github.com/zsims/atscale/internal/bootstrap"
	"github.com/zsims/atscale/internal/config"
	"github.com/zsims/atscale/internal/platform/logger"
	"github.com/zsims/atscale/internal/platform/postgres"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	migrate := flag.String("migrate", "", "run a goose migration command (up, down, status, version) and exit")
	embeddedWorker := flag.Bool("embedded-worker", false, "run the resize worker inside the server process")
	flag.Parse()

	if err := run(*migrate, *embeddedWorker); err != nil {
		log.Fatalf("atscale server: %v", err)
	}
}

func run(migrateCmd string, embeddedWorker bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	enabled, err := bootstrap.InitSentry(cfg.Sentry, version)
	if err != nil {
		return err
	}
	if enabled {
		defer sentry.Flush(bootstrap.SentryFlushTimeout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if migrateCmd != "" {
		return runMigrations(ctx, cfg, migrateCmd, l)
	}

	l.Info("Server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("version", version))

	backends, err := bootstrap.Open(ctx, cfg, "dispatcher", l)
	if err != nil {
		return fmt.Errorf("failed to open backends: %w", err)
	}

	if cfg.Database.AutoMigrate && backends.DB != nil {
		if err := postgres.Migrate(ctx, backends.DB, "up"); err != nil {
			_ = backends.Close()
			return err
		}
	}

	// The in-process queue cannot be shared with a separate worker process.
	if cfg.Queue.Backend == "memory" {
		embeddedWorker = true
	}

	app, err := newApplication(cfg, l, backends, embeddedWorker)
	if err != nil {
		_ = backends.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}

func runMigrations(ctx context.Context, cfg *config.Config, command string, l *slog.Logger) error {
	if cfg.Store.Backend != "postgres" {
		return fmt.Errorf("migrations require store.backend=postgres, got %q", cfg.Store.Backend)
	}
	db, err := bootstrap.OpenDatabase(ctx, cfg.Database, l)
	if err != nil {
		return err
	}
	defer db.Close()

	l.Info("Running migrations", slog.String("command", command))
	return postgres.Migrate(ctx, db, command)
}
