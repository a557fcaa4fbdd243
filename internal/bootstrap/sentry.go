package bootstrap

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/zsims/atscale/internal/config"
)

// SentryFlushTimeout bounds the flush of buffered events on shutdown.
const SentryFlushTimeout = 2 * time.Second

// InitSentry initialises error reporting. It reports false without error
// when no DSN is configured.
func InitSentry(cfg config.SentryConfig, release string) (bool, error) {
	if cfg.DSN == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     release,
	})
	if err != nil {
		return false, fmt.Errorf("sentry.Init: %w", err)
	}
	return true, nil
}
