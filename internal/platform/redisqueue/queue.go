package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zsims/atscale/internal/queue"
)

// jobIDField is the stream entry field carrying the job ID.
const jobIDField = "job_id"

// ackScript acknowledges and deletes an entry only while the caller's
// delivery is still the current one and its visibility window is open.
//
// KEYS[1] stream, ARGV[1] group, ARGV[2] entry ID, ARGV[3] delivery count,
// ARGV[4] visibility in milliseconds, ARGV[5] consumer.
var ackScript = redis.NewScript(`
local pending = redis.call('XPENDING', KEYS[1], ARGV[1], ARGV[2], ARGV[2], 1)
if #pending == 0 then
	return 0
end
local entry = pending[1]
if entry[2] ~= ARGV[5] or entry[4] ~= tonumber(ARGV[3]) then
	return 0
end
if entry[3] >= tonumber(ARGV[4]) then
	return 0
end
redis.call('XACK', KEYS[1], ARGV[1], ARGV[2])
redis.call('XDEL', KEYS[1], ARGV[2])
return 1
`)

// Options configures a Queue.
type Options struct {
	Stream     string
	Group      string
	Consumer   string
	Visibility time.Duration
	// MaxLen approximately caps the stream length. Zero leaves it unbounded.
	MaxLen int64
}

// Queue is a queue.JobQueue backed by a Redis Stream.
type Queue struct {
	rc     redis.UniversalClient
	opts   Options
	logger *slog.Logger

	mu          sync.Mutex
	claimCursor string
}

var _ queue.JobQueue = (*Queue)(nil)

// New creates the consumer group if needed and returns a Queue.
func New(ctx context.Context, rc redis.UniversalClient, opts Options, log *slog.Logger) (*Queue, error) {
	if opts.Stream == "" || opts.Group == "" || opts.Consumer == "" {
		return nil, errors.New("redisqueue: stream, group and consumer are required")
	}
	if opts.Visibility <= 0 {
		return nil, errors.New("redisqueue: visibility must be positive")
	}
	if log == nil {
		log = slog.Default()
	}

	q := &Queue{
		rc:          rc,
		opts:        opts,
		logger:      log.With(slog.String("component", "redis_queue"), slog.String("stream", opts.Stream)),
		claimCursor: "0-0",
	}
	if err := q.ensureGroup(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure Redis group: %w", err)
	}
	return q, nil
}

func (q *Queue) ensureGroup(ctx context.Context) error {
	// MKSTREAM lets the group exist before the first entry.
	err := q.rc.XGroupCreateMkStream(ctx, q.opts.Stream, q.opts.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Enqueue appends jobID to the stream.
func (q *Queue) Enqueue(ctx context.Context, jobID string) error {
	args := &redis.XAddArgs{
		Stream: q.opts.Stream,
		Values: map[string]any{jobIDField: jobID},
	}
	if q.opts.MaxLen > 0 {
		args.MaxLen = q.opts.MaxLen
		args.Approx = true
	}
	if err := q.rc.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redisqueue: enqueue: %w", err)
	}
	return nil
}

// Dequeue first reclaims entries whose visibility window elapsed, then
// reads new entries, blocking up to wait when nothing was reclaimed.
func (q *Queue) Dequeue(ctx context.Context, maxMessages int, wait time.Duration) ([]queue.Message, error) {
	if maxMessages < 1 {
		return nil, fmt.Errorf("redisqueue: maxMessages must be at least 1, got %d", maxMessages)
	}

	msgs, err := q.reclaim(ctx, maxMessages)
	if err != nil {
		return nil, err
	}
	if len(msgs) >= maxMessages {
		return msgs, nil
	}

	block := wait
	if len(msgs) > 0 || wait <= 0 {
		// A negative Block omits the BLOCK argument entirely.
		block = -1
	}
	streams, err := q.rc.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.opts.Group,
		Consumer: q.opts.Consumer,
		Streams:  []string{q.opts.Stream, ">"},
		Count:    int64(maxMessages - len(msgs)),
		Block:    block,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		if ctx.Err() != nil {
			return msgs, ctx.Err()
		}
		return msgs, fmt.Errorf("redisqueue: read group: %w", err)
	}

	for _, s := range streams {
		for _, m := range s.Messages {
			msg, ok := q.toMessage(ctx, m, 1)
			if ok {
				msgs = append(msgs, msg)
			}
		}
	}
	return msgs, nil
}

// reclaim takes over entries idle for at least the visibility timeout.
func (q *Queue) reclaim(ctx context.Context, count int) ([]queue.Message, error) {
	q.mu.Lock()
	start := q.claimCursor
	q.mu.Unlock()

	claimed, next, err := q.rc.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.opts.Stream,
		Group:    q.opts.Group,
		Consumer: q.opts.Consumer,
		MinIdle:  q.opts.Visibility,
		Start:    start,
		Count:    int64(count),
	}).Result()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("redisqueue: auto claim: %w", err)
	}

	q.mu.Lock()
	q.claimCursor = next
	q.mu.Unlock()

	msgs := make([]queue.Message, 0, len(claimed))
	for _, m := range claimed {
		deliveries, err := q.deliveryCount(ctx, m.ID)
		if err != nil {
			return msgs, err
		}
		if deliveries == 0 {
			continue
		}
		if msg, ok := q.toMessage(ctx, m, deliveries); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

func (q *Queue) deliveryCount(ctx context.Context, entryID string) (int64, error) {
	pending, err := q.rc.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.opts.Stream,
		Group:  q.opts.Group,
		Start:  entryID,
		End:    entryID,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redisqueue: pending: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	return pending[0].RetryCount, nil
}

// toMessage converts a stream entry. Entries without a job ID cannot be
// processed and are dropped from the stream.
func (q *Queue) toMessage(ctx context.Context, m redis.XMessage, deliveries int64) (queue.Message, bool) {
	jobID, _ := m.Values[jobIDField].(string)
	if jobID == "" {
		q.logger.Warn("dropping malformed stream entry", slog.String("entry_id", m.ID))
		if err := q.drop(ctx, m.ID); err != nil {
			q.logger.Error("failed to drop malformed entry",
				slog.String("entry_id", m.ID),
				slog.String("error", err.Error()))
		}
		return queue.Message{}, false
	}

	return queue.Message{
		ID:            m.ID,
		JobID:         jobID,
		ReceiptHandle: receipt{entryID: m.ID, deliveries: deliveries, consumer: q.opts.Consumer}.String(),
		DeliveryCount: int(deliveries),
	}, true
}

func (q *Queue) drop(ctx context.Context, entryID string) error {
	pipe := q.rc.TxPipeline()
	pipe.XAck(ctx, q.opts.Stream, q.opts.Group, entryID)
	pipe.XDel(ctx, q.opts.Stream, entryID)
	_, err := pipe.Exec(ctx)
	return err
}

// Acknowledge removes the entry for the delivery named by receiptHandle.
func (q *Queue) Acknowledge(ctx context.Context, receiptHandle string) error {
	r, err := parseReceipt(receiptHandle)
	if err != nil {
		return err
	}

	ok, err := ackScript.Run(ctx, q.rc,
		[]string{q.opts.Stream},
		q.opts.Group, r.entryID, r.deliveries, q.opts.Visibility.Milliseconds(), r.consumer,
	).Int()
	if err != nil {
		return fmt.Errorf("redisqueue: acknowledge: %w", err)
	}
	if ok == 0 {
		return queue.ErrInvalidReceipt
	}
	return nil
}
