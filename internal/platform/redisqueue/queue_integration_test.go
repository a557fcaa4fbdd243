//go:build integration

package redisqueue

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsims/atscale/internal/config"
	"github.com/zsims/atscale/internal/queue"
)

func newIntegrationQueue(t *testing.T, consumer string, visibility time.Duration, stream string) *Queue {
	t.Helper()

	addr := os.Getenv("ATSCALE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ATSCALE_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	rc, err := NewClient(ctx, config.RedisConfig{Addrs: []string{addr}, DialTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = rc.Del(context.Background(), stream).Err()
		_ = rc.Close()
	})

	q, err := New(ctx, rc, Options{
		Stream:     stream,
		Group:      "resize-workers",
		Consumer:   consumer,
		Visibility: visibility,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return q
}

func TestQueueIntegration_AckOnce(t *testing.T) {
	stream := "atscale-test-" + uuid.NewString()
	q := newIntegrationQueue(t, "worker-a", 5*time.Second, stream)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "job-1"))

	msgs, err := q.Dequeue(ctx, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "job-1", msgs[0].JobID)
	assert.Equal(t, 1, msgs[0].DeliveryCount)

	require.NoError(t, q.Acknowledge(ctx, msgs[0].ReceiptHandle))
	assert.ErrorIs(t, q.Acknowledge(ctx, msgs[0].ReceiptHandle), queue.ErrInvalidReceipt)

	msgs, err = q.Dequeue(ctx, 10, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestQueueIntegration_RedeliveryAfterVisibility(t *testing.T) {
	stream := "atscale-test-" + uuid.NewString()
	first := newIntegrationQueue(t, "worker-a", 300*time.Millisecond, stream)
	second := newIntegrationQueue(t, "worker-b", 300*time.Millisecond, stream)
	ctx := context.Background()

	require.NoError(t, first.Enqueue(ctx, "job-2"))

	msgs, err := first.Dequeue(ctx, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	stale := msgs[0].ReceiptHandle

	// Inside the window no other consumer sees the entry.
	msgs, err = second.Dequeue(ctx, 1, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	time.Sleep(400 * time.Millisecond)

	msgs, err = second.Dequeue(ctx, 1, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "job-2", msgs[0].JobID)
	assert.Equal(t, 2, msgs[0].DeliveryCount)
	assert.NotEqual(t, stale, msgs[0].ReceiptHandle)

	assert.ErrorIs(t, first.Acknowledge(ctx, stale), queue.ErrInvalidReceipt)
	require.NoError(t, second.Acknowledge(ctx, msgs[0].ReceiptHandle))
}
