package memstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsims/atscale/internal/domain"
	"github.com/zsims/atscale/internal/store"
)

func TestStatusStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStatusStore()
	id := domain.NewJobID()

	_, err := s.Get(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Create(ctx, id, "https://upload.example/"+id))

	job, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ResizeStatusNew, job.Status)
	assert.Empty(t, job.FinalURL)
	assert.Equal(t, "https://upload.example/"+id, job.UploadURL)

	err = s.Create(ctx, id, "https://upload.example/other")
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	job, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://upload.example/"+id, job.UploadURL, "upload URL is write-once")
}

func TestStatusStore_MonotonicWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStatusStore()
	id := domain.NewJobID()
	require.NoError(t, s.Create(ctx, id, "u"))

	require.NoError(t, s.SetStatus(ctx, id, domain.ResizeStatusResizing))
	require.NoError(t, s.SetStatus(ctx, id, domain.ResizeStatusResizing))
	require.NoError(t, s.Complete(ctx, id, "output/"+id))

	// A straggling duplicate delivery tries to move the job backward and
	// overwrite the result; both writes are dropped.
	require.NoError(t, s.SetStatus(ctx, id, domain.ResizeStatusResizing))
	require.NoError(t, s.SetStatus(ctx, id, domain.ResizeStatusNew))
	require.NoError(t, s.Complete(ctx, id, "output/stale"))

	job, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ResizeStatusDone, job.Status)
	assert.Equal(t, "output/"+id, job.FinalURL)
	assert.Equal(t, int64(4), job.Version)
}

func TestStatusStore_UnknownJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStatusStore()

	assert.ErrorIs(t, s.SetStatus(ctx, "missing", domain.ResizeStatusResizing), store.ErrJobNotFound)
	assert.ErrorIs(t, s.Complete(ctx, "missing", "output/missing"), store.ErrJobNotFound)
}

func TestStatusStore_InvalidWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStatusStore()
	id := domain.NewJobID()

	assert.ErrorIs(t, s.Create(ctx, "", "u"), store.ErrInvalidEntity)
	require.NoError(t, s.Create(ctx, id, "u"))
	assert.ErrorIs(t, s.SetStatus(ctx, id, "Exploded"), store.ErrInvalidEntity)
	assert.ErrorIs(t, s.SetStatus(ctx, id, domain.ResizeStatusDone), store.ErrInvalidEntity)
	assert.ErrorIs(t, s.Complete(ctx, id, ""), store.ErrInvalidEntity)
}

func TestStatusStore_ConcurrentCompleteKeepsFirstResult(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStatusStore()
	id := domain.NewJobID()
	require.NoError(t, s.Create(ctx, id, "u"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.SetStatus(ctx, id, domain.ResizeStatusResizing)
			_ = s.Complete(ctx, id, "output/"+id)
		}()
	}
	wg.Wait()

	job, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ResizeStatusDone, job.Status)
	assert.Equal(t, "output/"+id, job.FinalURL)
}
