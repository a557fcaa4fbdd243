package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zsims/atscale/internal/bootstrap"
	"github.com/zsims/atscale/internal/config"
	"github.com/zsims/atscale/internal/platform/metrics"
	"github.com/zsims/atscale/internal/resize"
	"github.com/zsims/atscale/internal/service"
	"github.com/zsims/atscale/internal/worker"
	"golang.org/x/sync/errgroup"
)

// application holds the shared dependencies of the server process and
// owns their cleanup on shutdown.
type application struct {
	config   *config.Config
	logger   *slog.Logger
	backends *bootstrap.Backends
	metrics  *metrics.Metrics

	dispatcher service.Dispatcher

	// worker is nil unless the resize worker runs in-process.
	worker *worker.Worker
}

func newApplication(
	cfg *config.Config,
	logger *slog.Logger,
	backends *bootstrap.Backends,
	embeddedWorker bool,
) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		backends: backends,
		metrics:  metrics.New(),
	}

	var err error
	app.dispatcher, err = service.NewDispatcher(
		backends.Statuses,
		backends.Blobs,
		backends.Jobs,
		cfg.Blob.PresignExpiry,
		app.metrics,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	if embeddedWorker {
		transformer := resize.NewTransformer(backends.Blobs, resize.NewResizer(resize.WithMaxPixels(cfg.Resize.MaxPixels)), logger)
		app.worker = worker.New(
			backends.Statuses,
			backends.Jobs,
			transformer,
			workerConfig(cfg.Worker),
			app.metrics,
			logger,
		)
		logger.Info("Embedded resize worker enabled")
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run serves HTTP, and the embedded worker when enabled, until ctx is
// cancelled.
func (app *application) Run(ctx context.Context) error {
	defer app.cleanup()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.startHTTPServer(gctx, app.setupRouter())
	})
	if app.worker != nil {
		g.Go(func() error {
			return app.worker.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (app *application) cleanup() {
	if err := app.backends.Close(); err != nil {
		app.logger.Error("Error closing backends", slog.String("error", err.Error()))
	}
	app.logger.Info("Application shutdown completed")
}

func workerConfig(cfg config.WorkerConfig) worker.Config {
	wc := worker.DefaultConfig()
	wc.Concurrency = cfg.Concurrency
	wc.BatchSize = cfg.BatchSize
	wc.WaitTime = cfg.WaitTime
	wc.TransformTimeout = cfg.TransformTimeout
	return wc
}
