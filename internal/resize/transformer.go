package resize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zsims/atscale/internal/blob"
)

// ImageResizer turns source image bytes into resized bytes.
type ImageResizer interface {
	Resize(ctx context.Context, src []byte) ([]byte, string, error)
}

// Transformer fetches a job's uploaded input, resizes it and stores the
// output. Running it twice for the same job overwrites the same output key.
type Transformer struct {
	blobs   blob.Store
	resizer ImageResizer
	logger  *slog.Logger
}

// NewTransformer creates a Transformer.
func NewTransformer(blobs blob.Store, resizer ImageResizer, logger *slog.Logger) *Transformer {
	return &Transformer{
		blobs:   blobs,
		resizer: resizer,
		logger:  logger.With("component", "transformer"),
	}
}

// Transform resizes input/{jobID} into output/{jobID} and returns the
// reference clients use to fetch the result.
func (t *Transformer) Transform(ctx context.Context, jobID string) (string, error) {
	start := time.Now()

	src, _, err := t.blobs.Get(ctx, blob.InputKey(jobID))
	if err != nil {
		return "", fmt.Errorf("failed to fetch input: %w", err)
	}

	out, contentType, err := t.resizer.Resize(ctx, src)
	if err != nil {
		return "", fmt.Errorf("failed to resize input: %w", err)
	}

	finalURL, err := t.blobs.Put(ctx, blob.OutputKey(jobID), contentType, out)
	if err != nil {
		return "", fmt.Errorf("failed to store output: %w", err)
	}

	t.logger.Debug("image transformed",
		"job_id", jobID,
		"content_type", contentType,
		"input_bytes", len(src),
		"output_bytes", len(out),
		"duration_ms", time.Since(start).Milliseconds())
	return finalURL, nil
}
