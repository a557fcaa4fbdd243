package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// pollInterval bounds how long a waiting Dequeue sleeps before re-checking
// for messages whose visibility window has expired.
const pollInterval = 20 * time.Millisecond

type memoryEntry struct {
	id             string
	jobID          string
	receipt        string
	invisibleUntil time.Time
	deliveries     int
}

// MemoryQueue is an in-process JobQueue with per-message visibility windows.
// It keeps the delivery semantics of the durable backends so the worker can
// be exercised without external services; nothing survives a restart.
type MemoryQueue struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	order      []string
	receipts   map[string]string
	visibility time.Duration
	now        func() time.Time
	wake       chan struct{}
	closed     bool
	logger     *slog.Logger
}

var _ JobQueue = (*MemoryQueue)(nil)

// MemoryOption configures a MemoryQueue.
type MemoryOption func(*MemoryQueue)

// WithClock replaces the clock used for visibility windows.
func WithClock(now func() time.Time) MemoryOption {
	return func(q *MemoryQueue) {
		q.now = now
	}
}

// NewMemoryQueue creates an empty queue whose deliveries stay hidden for
// visibility.
func NewMemoryQueue(visibility time.Duration, logger *slog.Logger, opts ...MemoryOption) *MemoryQueue {
	q := &MemoryQueue{
		entries:    make(map[string]*memoryEntry),
		receipts:   make(map[string]string),
		visibility: visibility,
		now:        time.Now,
		wake:       make(chan struct{}),
		logger:     logger.With("component", "memory_queue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue adds jobID as a new, immediately visible message.
func (q *MemoryQueue) Enqueue(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	e := &memoryEntry{id: uuid.NewString(), jobID: jobID}
	q.entries[e.id] = e
	q.order = append(q.order, e.id)

	// Wake any Dequeue blocked on an empty queue.
	close(q.wake)
	q.wake = make(chan struct{})

	q.logger.Debug("job enqueued",
		"job_id", jobID,
		"message_id", e.id,
		"queue_len", len(q.entries))
	return nil
}

// Dequeue returns up to maxMessages visible messages, waiting at most wait
// for the first one to appear.
func (q *MemoryQueue) Dequeue(ctx context.Context, maxMessages int, wait time.Duration) ([]Message, error) {
	if maxMessages < 1 {
		return nil, fmt.Errorf("maxMessages must be positive, got %d", maxMessages)
	}

	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		msgs, wake, err := q.receive(maxMessages)
		if err != nil || len(msgs) > 0 {
			return msgs, err
		}

		poll := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			poll.Stop()
			return nil, ctx.Err()
		case <-deadline.C:
			poll.Stop()
			return nil, nil
		case <-wake:
		case <-poll.C:
		}
		poll.Stop()
	}
}

func (q *MemoryQueue) receive(maxMessages int) ([]Message, <-chan struct{}, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, nil, ErrQueueClosed
	}

	now := q.now()
	var msgs []Message
	for _, id := range q.order {
		if len(msgs) == maxMessages {
			break
		}
		e := q.entries[id]
		if now.Before(e.invisibleUntil) {
			continue
		}

		if e.receipt != "" {
			delete(q.receipts, e.receipt)
		}
		e.receipt = uuid.NewString()
		e.invisibleUntil = now.Add(q.visibility)
		e.deliveries++
		q.receipts[e.receipt] = e.id

		msgs = append(msgs, Message{
			ID:            e.id,
			JobID:         e.jobID,
			ReceiptHandle: e.receipt,
			DeliveryCount: e.deliveries,
		})
	}

	return msgs, q.wake, nil
}

// Acknowledge deletes the message delivered with receiptHandle. The handle
// must belong to the latest delivery and its window must still be open.
func (q *MemoryQueue) Acknowledge(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	id, ok := q.receipts[receiptHandle]
	if !ok {
		return ErrInvalidReceipt
	}
	e := q.entries[id]
	if !q.now().Before(e.invisibleUntil) {
		delete(q.receipts, receiptHandle)
		return fmt.Errorf("%w: visibility window expired", ErrInvalidReceipt)
	}

	delete(q.receipts, receiptHandle)
	delete(q.entries, id)
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}

	q.logger.Debug("message acknowledged",
		"job_id", e.jobID,
		"message_id", e.id,
		"deliveries", e.deliveries)
	return nil
}

// Len returns the number of unacknowledged messages, visible or in flight.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Close stops the queue. Later calls return ErrQueueClosed.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.wake)
		q.logger.Info("job queue closed")
	}
}
