package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsims/atscale/internal/blob"
	"github.com/zsims/atscale/internal/config"
	"github.com/zsims/atscale/internal/queue"
	"github.com/zsims/atscale/internal/store/memstore"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Backend: "memory"},
		Queue: config.QueueConfig{Backend: "memory", Name: "resize", VisibilityTimeout: 30 * time.Second},
		Blob:  config.BlobConfig{Backend: "memory"},
	}
}

func TestOpenMemoryBackends(t *testing.T) {
	b, err := Open(context.Background(), memoryConfig(), "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.IsType(t, &memstore.StatusStore{}, b.Statuses)
	assert.IsType(t, &queue.MemoryQueue{}, b.Jobs)
	assert.IsType(t, &blob.MemoryStore{}, b.Blobs)
	assert.Nil(t, b.DB)

	require.NoError(t, b.Close())
	_, err = b.Jobs.Dequeue(context.Background(), 1, 0)
	assert.ErrorIs(t, err, queue.ErrQueueClosed)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg := memoryConfig()
	cfg.Queue.Backend = "carrier-pigeon"

	_, err := Open(context.Background(), cfg, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "unknown queue backend")
}

func TestConsumerName(t *testing.T) {
	assert.Equal(t, "worker-7", ConsumerName("worker-7", "worker"))
	assert.True(t, strings.HasPrefix(ConsumerName("", "worker"), "worker-"))
}

func TestInitSentryDisabledWithoutDSN(t *testing.T) {
	enabled, err := InitSentry(config.SentryConfig{}, "test")
	require.NoError(t, err)
	assert.False(t, enabled)
}
