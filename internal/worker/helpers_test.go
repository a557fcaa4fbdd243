package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsims/atscale/internal/domain"
	"github.com/zsims/atscale/internal/queue"
	"github.com/zsims/atscale/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// eventLog records the order of pipeline steps across collaborators.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// recordingStore wraps a StatusStore and logs applied write calls.
type recordingStore struct {
	store.StatusStore
	log    *eventLog
	getErr error
	setErr error
}

func (s *recordingStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.StatusStore.Get(ctx, jobID)
}

func (s *recordingStore) SetStatus(ctx context.Context, jobID string, status domain.ResizeStatus) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.log.add("status:" + status.String())
	return s.StatusStore.SetStatus(ctx, jobID, status)
}

func (s *recordingStore) Complete(ctx context.Context, jobID, finalURL string) error {
	s.log.add("status:Done")
	return s.StatusStore.Complete(ctx, jobID, finalURL)
}

// stubTransformer returns output/{jobID}, optionally failing the first
// failures calls.
type stubTransformer struct {
	log      *eventLog
	calls    atomic.Int32
	failures int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (t *stubTransformer) Transform(ctx context.Context, jobID string) (string, error) {
	n := t.calls.Add(1)
	cur := t.inFlight.Add(1)
	defer t.inFlight.Add(-1)
	for {
		seen := t.maxSeen.Load()
		if cur <= seen || t.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}

	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	if t.log != nil {
		t.log.add("transform")
	}
	if n <= t.failures {
		return "", errors.New("worker crashed mid-transform")
	}
	return "output/" + jobID, nil
}

// hangingTransformer ignores its context until released.
type hangingTransformer struct {
	release chan struct{}
}

func (t *hangingTransformer) Transform(ctx context.Context, jobID string) (string, error) {
	<-t.release
	return "output/" + jobID, nil
}

// flakyQueue lets tests inject Dequeue and Acknowledge failures.
type flakyQueue struct {
	queue.JobQueue
	dequeueErr   error
	dequeueCalls atomic.Int32
	ackErr       error
	ackAttempts  atomic.Int32
}

func (q *flakyQueue) Dequeue(ctx context.Context, maxMessages int, wait time.Duration) ([]queue.Message, error) {
	q.dequeueCalls.Add(1)
	if q.dequeueErr != nil {
		return nil, q.dequeueErr
	}
	return q.JobQueue.Dequeue(ctx, maxMessages, wait)
}

func (q *flakyQueue) Acknowledge(ctx context.Context, receiptHandle string) error {
	q.ackAttempts.Add(1)
	if q.ackErr != nil {
		return q.ackErr
	}
	return q.JobQueue.Acknowledge(ctx, receiptHandle)
}
