package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zsims/atscale/internal/domain"
	"github.com/zsims/atscale/internal/platform/logger"
	"github.com/zsims/atscale/internal/platform/metrics"
	"github.com/zsims/atscale/internal/queue"
	"github.com/zsims/atscale/internal/store"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Transformer produces the output for a job and returns its final URL.
// Implementations must return promptly once ctx is done: after
// TransformTimeout the worker stops waiting, but a call that ignores ctx
// keeps its goroutine and buffers alive until it returns on its own.
type Transformer interface {
	Transform(ctx context.Context, jobID string) (string, error)
}

// Config holds configuration for the worker loop
type Config struct {
	// Concurrency bounds how many messages are processed at once.
	Concurrency int

	// BatchSize is the maximum number of messages requested per dequeue.
	BatchSize int

	// WaitTime is the long-poll duration of each dequeue.
	WaitTime time.Duration

	// TransformTimeout bounds a single transform. A transform that runs
	// longer is abandoned and the message is left for redelivery.
	TransformTimeout time.Duration

	// DequeueErrorInterval is the minimum spacing between dequeue attempts
	// after a dequeue fails, and between empty dequeues when WaitTime is
	// zero.
	DequeueErrorInterval time.Duration
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		Concurrency:          4,
		BatchSize:            10,
		WaitTime:             10 * time.Second,
		TransformTimeout:     time.Minute,
		DequeueErrorInterval: time.Second,
	}
}

// Worker pulls job IDs from the queue and drives each job to Done.
type Worker struct {
	statuses    store.StatusStore
	jobs        queue.JobQueue
	transformer Transformer
	config      Config
	metrics     *metrics.Metrics
	limiter     *rate.Limiter
	logger      *slog.Logger
	errHandler  func(msg queue.Message, err error)
}

// New creates a Worker. Zero config fields fall back to DefaultConfig; m may
// be nil.
func New(
	statuses store.StatusStore,
	jobs queue.JobQueue,
	transformer Transformer,
	config Config,
	m *metrics.Metrics,
	log *slog.Logger,
) *Worker {
	defaults := DefaultConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.WaitTime < 0 {
		config.WaitTime = 0
	}
	if config.TransformTimeout <= 0 {
		config.TransformTimeout = defaults.TransformTimeout
	}
	if config.DequeueErrorInterval <= 0 {
		config.DequeueErrorInterval = defaults.DequeueErrorInterval
	}

	log = log.With(slog.String("component", "worker"))

	return &Worker{
		statuses:    statuses,
		jobs:        jobs,
		transformer: transformer,
		config:      config,
		metrics:     m,
		limiter:     rate.NewLimiter(rate.Every(config.DequeueErrorInterval), 1),
		logger:      log,
		errHandler: func(msg queue.Message, err error) {
			log.Error("message processing failed",
				"job_id", msg.JobID,
				"message_id", msg.ID,
				"delivery_count", msg.DeliveryCount,
				"error", err)
		},
	}
}

// SetErrorHandler allows setting a custom error handler function
func (w *Worker) SetErrorHandler(handler func(msg queue.Message, err error)) {
	w.errHandler = handler
}

// Run polls the queue until ctx is cancelled. Messages already handed to
// the pool when ctx is cancelled are abandoned to redelivery.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		"concurrency", w.config.Concurrency,
		"batch_size", w.config.BatchSize,
		"wait_time", w.config.WaitTime.String(),
		"transform_timeout", w.config.TransformTimeout.String())

	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopped")
			return nil
		}

		n, err := w.PollOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("dequeue failed", "error", err)
			w.pace(ctx)
			continue
		}
		if n == 0 && w.config.WaitTime == 0 {
			// Short polls return at once on an empty queue.
			w.pace(ctx)
		}
	}
}

// pace blocks until the limiter allows another dequeue or ctx ends.
func (w *Worker) pace(ctx context.Context) {
	r := w.limiter.Reserve()
	delay := r.Delay()
	if delay <= 0 {
		return
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
	case <-t.C:
	}
}

// PollOnce performs one dequeue and processes the returned batch. It
// returns the number of messages received.
func (w *Worker) PollOnce(ctx context.Context) (int, error) {
	msgs, err := w.jobs.Dequeue(ctx, w.config.BatchSize, w.config.WaitTime)
	if err != nil {
		return 0, fmt.Errorf("%w: dequeue: %w", ErrQueue, err)
	}
	if len(msgs) == 0 {
		return 0, nil
	}

	var g errgroup.Group
	g.SetLimit(w.config.Concurrency)
	for _, msg := range msgs {
		g.Go(func() error {
			outcome, err := w.Process(ctx, msg)
			w.metrics.MessageProcessed(outcome)
			if err != nil {
				w.errHandler(msg, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return len(msgs), nil
}

// Process runs the pipeline for one message and reports its outcome as one
// of the metrics.Outcome values. A non-nil error means the message was not
// acknowledged.
//
// TODO: cap redeliveries using msg.DeliveryCount and park poison jobs on a
// dead-letter queue; today a job whose input never decodes is retried
// forever.
func (w *Worker) Process(ctx context.Context, msg queue.Message) (string, error) {
	log := logger.FromContextOrDefault(ctx, w.logger).With(
		"job_id", msg.JobID,
		"message_id", msg.ID,
		"delivery_count", msg.DeliveryCount)
	ctx = logger.WithContext(ctx, log)

	job, err := w.statuses.Get(ctx, msg.JobID)
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Warn("dropping message for unknown job")
			if err := w.acknowledge(ctx, msg); err != nil {
				return metrics.OutcomeFailed, err
			}
			return metrics.OutcomeUnknownJob, nil
		}
		return metrics.OutcomeFailed, fmt.Errorf("%w: get status: %w", ErrStatusStore, err)
	}

	if job.IsDone() {
		log.Info("job already done, acknowledging duplicate delivery")
		if err := w.acknowledge(ctx, msg); err != nil {
			return metrics.OutcomeFailed, err
		}
		return metrics.OutcomeAlreadyDone, nil
	}

	if err := w.statuses.SetStatus(ctx, msg.JobID, domain.ResizeStatusResizing); err != nil {
		return metrics.OutcomeFailed, fmt.Errorf("%w: mark resizing: %w", ErrStatusStore, err)
	}

	finalURL, err := w.transform(ctx, msg.JobID)
	if err != nil {
		return metrics.OutcomeFailed, err
	}

	if err := w.statuses.Complete(ctx, msg.JobID, finalURL); err != nil {
		return metrics.OutcomeFailed, fmt.Errorf("%w: complete: %w", ErrStatusStore, err)
	}

	if err := w.acknowledge(ctx, msg); err != nil {
		return metrics.OutcomeFailed, err
	}

	log.Info("job completed", "final_url", finalURL)
	return metrics.OutcomeCompleted, nil
}

type transformResult struct {
	finalURL string
	err      error
}

// transform runs the Transformer under the configured timeout. The call runs
// in its own goroutine so a transform that ignores its context cannot hold
// the message past the timeout.
func (w *Worker) transform(ctx context.Context, jobID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.config.TransformTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan transformResult, 1)
	go func() {
		finalURL, err := w.transformer.Transform(ctx, jobID)
		done <- transformResult{finalURL: finalURL, err: err}
	}()

	select {
	case res := <-done:
		w.metrics.ObserveTransform(time.Since(start))
		if res.err != nil {
			return "", fmt.Errorf("%w: %w", ErrTransformFailed, res.err)
		}
		if res.finalURL == "" {
			return "", fmt.Errorf("%w: empty final URL", ErrTransformFailed)
		}
		return res.finalURL, nil
	case <-ctx.Done():
		w.metrics.TransformAbandoned()
		logger.FromContextOrDefault(ctx, w.logger).Warn("transform abandoned after timeout",
			"timeout", w.config.TransformTimeout.String())
		return "", fmt.Errorf("%w: %w", ErrTransformFailed, ctx.Err())
	}
}

// acknowledge deletes the message. A rejected receipt means the window
// expired and another delivery owns the message; the status record is
// already settled, so that is only logged.
func (w *Worker) acknowledge(ctx context.Context, msg queue.Message) error {
	err := w.jobs.Acknowledge(ctx, msg.ReceiptHandle)
	if err == nil {
		return nil
	}
	if errors.Is(err, queue.ErrInvalidReceipt) {
		logger.FromContextOrDefault(ctx, w.logger).Warn("receipt handle rejected on acknowledge",
			"error", err)
		return nil
	}
	return fmt.Errorf("%w: acknowledge: %w", ErrQueue, err)
}
