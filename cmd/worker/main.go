// Package main implements the resize worker process. It polls the job
// queue, resizes each uploaded image and records the result.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/zsims/atscale/internal/bootstrap"
	"github.com/zsims/atscale/internal/config"
	"github.com/zsims/atscale/internal/platform/logger"
	"github.com/zsims/atscale/internal/platform/metrics"
	"github.com/zsims/atscale/internal/queue"
	"github.com/zsims/atscale/internal/resize"
	"github.com/zsims/atscale/internal/worker"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatalf("atscale worker: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Queue.Backend == "memory" {
		return errors.New("queue.backend=memory only works with the server's embedded worker")
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	sentryEnabled, err := bootstrap.InitSentry(cfg.Sentry, version)
	if err != nil {
		return err
	}
	if sentryEnabled {
		defer sentry.Flush(bootstrap.SentryFlushTimeout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := bootstrap.Open(ctx, cfg, "worker", l)
	if err != nil {
		return fmt.Errorf("failed to open backends: %w", err)
	}
	defer func() {
		if err := backends.Close(); err != nil {
			l.Error("Error closing backends", slog.String("error", err.Error()))
		}
	}()

	m := metrics.New()
	w := worker.New(
		backends.Statuses,
		backends.Jobs,
		resize.NewTransformer(backends.Blobs, resize.NewResizer(resize.WithMaxPixels(cfg.Resize.MaxPixels)), l),
		workerConfig(cfg.Worker),
		m,
		l,
	)
	w.SetErrorHandler(errorHandler(l, sentryEnabled))

	if cfg.Server.MetricsPort > 0 {
		srv := startMetricsServer(cfg.Server.MetricsPort, m, l)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return w.Run(ctx)
}

func workerConfig(cfg config.WorkerConfig) worker.Config {
	wc := worker.DefaultConfig()
	wc.Concurrency = cfg.Concurrency
	wc.BatchSize = cfg.BatchSize
	wc.WaitTime = cfg.WaitTime
	wc.TransformTimeout = cfg.TransformTimeout
	return wc
}

// errorHandler logs failed messages and, when enabled, reports them to
// Sentry tagged with the job they belong to.
func errorHandler(l *slog.Logger, reportToSentry bool) func(queue.Message, error) {
	return func(msg queue.Message, err error) {
		l.Error("message processing failed",
			slog.String("job_id", msg.JobID),
			slog.String("message_id", msg.ID),
			slog.Int("delivery_count", msg.DeliveryCount),
			slog.String("error", err.Error()))

		if !reportToSentry {
			return
		}
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("job_id", msg.JobID)
			scope.SetTag("message_id", msg.ID)
			scope.SetExtra("delivery_count", msg.DeliveryCount)
			sentry.CaptureException(err)
		})
	}
}

func startMetricsServer(port int, m *metrics.Metrics, l *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		l.Info("Starting metrics listener", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("Metrics listener failed", "error", err)
		}
	}()
	return srv
}
