package main

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zsims/atscale/internal/config"
	"github.com/zsims/atscale/internal/queue"
)

func TestErrorHandlerLogsJobContext(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))

	errorHandler(l, false)(
		queue.Message{ID: "m-1", JobID: "job-1", DeliveryCount: 3},
		errors.New("transform failed"),
	)

	out := buf.String()
	assert.Contains(t, out, `"job_id":"job-1"`)
	assert.Contains(t, out, `"message_id":"m-1"`)
	assert.Contains(t, out, `"delivery_count":3`)
	assert.Contains(t, out, `"error":"transform failed"`)
}

func TestWorkerConfigFromSettings(t *testing.T) {
	wc := workerConfig(config.WorkerConfig{Concurrency: 2, BatchSize: 4, WaitTime: 20 * time.Second, TransformTimeout: time.Minute})
	assert.Equal(t, 2, wc.Concurrency)
	assert.Equal(t, 4, wc.BatchSize)
	assert.Equal(t, 20*time.Second, wc.WaitTime)
	assert.Equal(t, time.Minute, wc.TransformTimeout)
}
