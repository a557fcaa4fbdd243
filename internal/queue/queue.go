package queue

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by JobQueue implementations.
var (
	// ErrInvalidReceipt is returned by Acknowledge when the receipt handle is
	// stale, expired, or has already been used.
	ErrInvalidReceipt = errors.New("invalid or expired receipt handle")

	// ErrQueueClosed is returned by operations on a queue that has been closed.
	ErrQueueClosed = errors.New("job queue is closed")
)

// Message is a single delivery of a job ID.
type Message struct {
	// ID identifies the underlying queue entry across deliveries.
	ID string
	// JobID is the message body.
	JobID string
	// ReceiptHandle is valid for this delivery only.
	ReceiptHandle string
	// DeliveryCount is how many times the entry has been handed out,
	// including this delivery. Zero when the backend does not report it.
	DeliveryCount int
}

// JobQueue is a durable at-least-once queue of job IDs. No ordering or
// exactly-once guarantee is made.
type JobQueue interface {
	// Enqueue adds jobID to the queue.
	Enqueue(ctx context.Context, jobID string) error

	// Dequeue waits up to wait for at most maxMessages messages. Returned
	// messages are hidden from other consumers until acknowledged or until
	// their visibility window expires. An empty result is not an error.
	Dequeue(ctx context.Context, maxMessages int, wait time.Duration) ([]Message, error)

	// Acknowledge permanently removes the delivered message.
	Acknowledge(ctx context.Context, receiptHandle string) error
}
