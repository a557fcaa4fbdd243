package blob

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "input/abc", InputKey("abc"))
	assert.Equal(t, "output/abc", OutputKey("abc"))
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()

	url, err := s.PresignUpload(ctx, InputKey("abc"), "image/png", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "memory://input/abc", url)

	_, _, err = s.Get(ctx, InputKey("abc"))
	assert.ErrorIs(t, err, ErrNotFound)

	data := []byte{1, 2, 3}
	ref, err := s.Put(ctx, OutputKey("abc"), "image/png", data)
	require.NoError(t, err)
	assert.Equal(t, "output/abc", ref)

	data[0] = 9
	got, contentType, err := s.Get(ctx, OutputKey("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got, "stored bytes are copied")
	assert.Equal(t, "image/png", contentType)

	_, err = s.Put(ctx, "", "image/png", data)
	assert.Error(t, err)
}
