package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/zsims/atscale/internal/blob"
	"github.com/zsims/atscale/internal/config"
	"github.com/zsims/atscale/internal/platform/awsclient"
	"github.com/zsims/atscale/internal/platform/postgres"
	"github.com/zsims/atscale/internal/platform/redisqueue"
	"github.com/zsims/atscale/internal/platform/s3blob"
	"github.com/zsims/atscale/internal/platform/sqsqueue"
	"github.com/zsims/atscale/internal/queue"
	"github.com/zsims/atscale/internal/store"
	"github.com/zsims/atscale/internal/store/memstore"
)

// Backends bundles the opened collaborators. Close releases them in reverse
// order of opening.
type Backends struct {
	Statuses store.StatusStore
	Jobs     queue.JobQueue
	Blobs    blob.Store
	// DB is nil unless the status store is PostgreSQL.
	DB *sql.DB

	closers []func() error
}

// Open connects every backend selected by cfg. role names the calling
// process and seeds the Redis consumer name when none is configured.
func Open(ctx context.Context, cfg *config.Config, role string, logger *slog.Logger) (*Backends, error) {
	b := &Backends{}

	if err := b.openStatusStore(ctx, cfg, logger); err != nil {
		b.Close()
		return nil, err
	}

	var awsCfg aws.Config
	if cfg.Queue.Backend == "sqs" || cfg.Blob.Backend == "s3" {
		var err error
		awsCfg, err = awsclient.Load(ctx, cfg.AWS)
		if err != nil {
			b.Close()
			return nil, err
		}
	}

	if err := b.openQueue(ctx, cfg, awsCfg, role, logger); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.openBlobStore(cfg, awsCfg, logger); err != nil {
		b.Close()
		return nil, err
	}

	logger.Info("backends opened",
		slog.String("store", cfg.Store.Backend),
		slog.String("queue", cfg.Queue.Backend),
		slog.String("blob", cfg.Blob.Backend))
	return b, nil
}

func (b *Backends) openStatusStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	switch cfg.Store.Backend {
	case "postgres":
		db, err := OpenDatabase(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		b.DB = db
		b.closers = append(b.closers, db.Close)
		b.Statuses = postgres.NewStatusStore(db)
	case "memory":
		b.Statuses = memstore.NewStatusStore()
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	return nil
}

func (b *Backends) openQueue(ctx context.Context, cfg *config.Config, awsCfg aws.Config, role string, logger *slog.Logger) error {
	switch cfg.Queue.Backend {
	case "redis":
		rc, err := redisqueue.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, rc.Close)

		q, err := redisqueue.New(ctx, rc, redisqueue.Options{
			Stream:     cfg.Queue.Name,
			Group:      cfg.Redis.ConsumerGroup,
			Consumer:   ConsumerName(cfg.Redis.Consumer, role),
			Visibility: cfg.Queue.VisibilityTimeout,
			MaxLen:     cfg.Redis.MaxLen,
		}, logger)
		if err != nil {
			return err
		}
		b.Jobs = q
	case "sqs":
		client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			o.BaseEndpoint = awsclient.BaseEndpoint(cfg.AWS)
		})
		q, err := sqsqueue.New(ctx, client, cfg.Queue.Name, cfg.Queue.VisibilityTimeout, logger)
		if err != nil {
			return err
		}
		b.Jobs = q
	case "memory":
		q := queue.NewMemoryQueue(cfg.Queue.VisibilityTimeout, logger)
		b.closers = append(b.closers, func() error {
			q.Close()
			return nil
		})
		b.Jobs = q
	default:
		return fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
	return nil
}

func (b *Backends) openBlobStore(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) error {
	switch cfg.Blob.Backend {
	case "s3":
		s, err := s3blob.New(awsCfg, s3blob.Options{
			Bucket:        cfg.Blob.Bucket,
			Endpoint:      cfg.AWS.Endpoint,
			UsePathStyle:  cfg.Blob.UsePathStyle,
			PublicBaseURL: cfg.Blob.PublicBaseURL,
		}, logger)
		if err != nil {
			return err
		}
		b.Blobs = s
	case "memory":
		b.Blobs = blob.NewMemoryStore()
	default:
		return fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}
	return nil
}

// Close releases every opened backend.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// ConsumerName returns configured, or role-hostname-pid when it is empty.
func ConsumerName(configured, role string) string {
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return role + "-" + host + "-" + strconv.Itoa(os.Getpid())
}
