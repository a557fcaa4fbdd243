package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zsims/atscale/internal/blob"
	"github.com/zsims/atscale/internal/domain"
	"github.com/zsims/atscale/internal/platform/logger"
	"github.com/zsims/atscale/internal/platform/metrics"
	"github.com/zsims/atscale/internal/queue"
	"github.com/zsims/atscale/internal/resize"
	"github.com/zsims/atscale/internal/store"
)

// NewJobResult is returned by NewJob.
type NewJobResult struct {
	JobID     string
	UploadURL string
}

// Dispatcher creates jobs, starts them and reports their status.
type Dispatcher interface {
	// NewJob creates a job in the New state and returns where to upload
	// the source image.
	NewJob(ctx context.Context, mimeType string) (*NewJobResult, error)

	// StartResize enqueues jobID for the worker. The status record is not
	// consulted; calling it twice enqueues two messages.
	StartResize(ctx context.Context, jobID string) error

	// QueryStatus returns the current record for jobID.
	QueryStatus(ctx context.Context, jobID string) (*domain.Job, error)
}

type dispatcherImpl struct {
	statuses      store.StatusStore
	blobs         blob.Store
	jobs          queue.JobQueue
	presignExpiry time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// NewDispatcher creates a Dispatcher. m may be nil.
func NewDispatcher(
	statuses store.StatusStore,
	blobs blob.Store,
	jobs queue.JobQueue,
	presignExpiry time.Duration,
	m *metrics.Metrics,
	log *slog.Logger,
) (Dispatcher, error) {
	if statuses == nil {
		return nil, domain.NewValidationError("statuses", "cannot be nil", domain.ErrValidation)
	}
	if blobs == nil {
		return nil, domain.NewValidationError("blobs", "cannot be nil", domain.ErrValidation)
	}
	if jobs == nil {
		return nil, domain.NewValidationError("jobs", "cannot be nil", domain.ErrValidation)
	}
	if presignExpiry <= 0 {
		return nil, domain.NewValidationError("presignExpiry", "must be positive", domain.ErrValidation)
	}
	if log == nil {
		log = slog.Default()
	}

	return &dispatcherImpl{
		statuses:      statuses,
		blobs:         blobs,
		jobs:          jobs,
		presignExpiry: presignExpiry,
		metrics:       m,
		logger:        log.With(slog.String("component", "dispatcher")),
	}, nil
}

func (d *dispatcherImpl) NewJob(ctx context.Context, mimeType string) (*NewJobResult, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if !resize.IsSupported(mimeType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMimeType, mimeType)
	}

	jobID := domain.NewJobID()
	uploadURL, err := d.blobs.PresignUpload(ctx, blob.InputKey(jobID), mimeType, d.presignExpiry)
	if err != nil {
		log.Error("failed to presign upload",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return nil, NewDispatcherError("new_job", "failed to create upload target", err)
	}

	if err := d.statuses.Create(ctx, jobID, uploadURL); err != nil {
		log.Error("failed to create status record",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return nil, NewDispatcherError("new_job", "failed to create status record", err)
	}

	d.metrics.JobCreated()
	log.Info("job created",
		slog.String("job_id", jobID),
		slog.String("mime_type", mimeType))

	return &NewJobResult{JobID: jobID, UploadURL: uploadURL}, nil
}

func (d *dispatcherImpl) StartResize(ctx context.Context, jobID string) error {
	log := logger.FromContextOrDefault(ctx, d.logger)

	id, err := domain.ParseJobID(jobID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJobID, err)
	}

	if err := d.jobs.Enqueue(ctx, id); err != nil {
		log.Error("failed to enqueue resize",
			slog.String("job_id", id),
			slog.String("error", err.Error()))
		return NewDispatcherError("start_resize", "failed to enqueue job", err)
	}

	d.metrics.ResizeEnqueued()
	log.Info("resize enqueued", slog.String("job_id", id))
	return nil
}

func (d *dispatcherImpl) QueryStatus(ctx context.Context, jobID string) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	id, err := domain.ParseJobID(jobID)
	if err != nil {
		// A malformed ID can never have a record.
		return nil, fmt.Errorf("%w: %v", store.ErrJobNotFound, err)
	}

	job, err := d.statuses.Get(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Debug("status requested for unknown job", slog.String("job_id", id))
			return nil, err
		}
		log.Error("failed to read status record",
			slog.String("job_id", id),
			slog.String("error", err.Error()))
		return nil, NewDispatcherError("query_status", "failed to read status record", err)
	}
	return job, nil
}
