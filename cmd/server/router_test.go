package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsims/atscale/internal/api"
	"github.com/zsims/atscale/internal/blob"
	"github.com/zsims/atscale/internal/bootstrap"
	"github.com/zsims/atscale/internal/config"
)

func newTestApplication(t *testing.T) *application {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "error", ShutdownTimeout: time.Second},
		Store:  config.StoreConfig{Backend: "memory"},
		Queue:  config.QueueConfig{Backend: "memory", Name: "resize", VisibilityTimeout: time.Minute},
		Blob:   config.BlobConfig{Backend: "memory", PresignExpiry: time.Hour},
		Worker: config.WorkerConfig{Concurrency: 2, BatchSize: 10, TransformTimeout: 10 * time.Second},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	backends, err := bootstrap.Open(context.Background(), cfg, "test", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backends.Close() })

	app, err := newApplication(cfg, log, backends, true)
	require.NoError(t, err)
	return app
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Host = "resize.example.com"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_ResizeFlow(t *testing.T) {
	app := newTestApplication(t)
	router := app.setupRouter()
	ctx := context.Background()

	w := doRequest(t, router, http.MethodPost, "/api/new-image", `{"mimeType":"image/png"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Trace-Id"))

	var created api.NewImageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.True(t, strings.HasPrefix(created.ResizeEndpoint, "http://resize.example.com/api/resize/"))
	jobID := strings.TrimPrefix(created.ResizeEndpoint, "http://resize.example.com/api/resize/")
	assert.Equal(t, "memory://"+blob.InputKey(jobID), created.UploadEndpoint)

	w = doRequest(t, router, http.MethodGet, "/api/status/"+jobID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"resizeStatus":"New","finalUrl":null}`, w.Body.String())

	src := new(bytes.Buffer)
	require.NoError(t, png.Encode(src, image.NewNRGBA(image.Rect(0, 0, 30, 20))))
	_, err := app.backends.Blobs.Put(ctx, blob.InputKey(jobID), "image/png", src.Bytes())
	require.NoError(t, err)

	w = doRequest(t, router, http.MethodPost, "/api/resize/"+jobID, "")
	require.Equal(t, http.StatusAccepted, w.Code)
	var started api.ResizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	assert.Equal(t, "http://resize.example.com/api/status/"+jobID, started.StatusEndpoint)

	processed, err := app.worker.PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	w = doRequest(t, router, http.MethodGet, "/api/status/"+jobID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"resizeStatus":"Done","finalUrl":"`+blob.OutputKey(jobID)+`"}`, w.Body.String())

	out, contentType, err := app.backends.Blobs.Get(ctx, blob.OutputKey(jobID))
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(15, 10), img.Bounds().Size())
}

func TestRouter_Errors(t *testing.T) {
	router := newTestApplication(t).setupRouter()

	w := doRequest(t, router, http.MethodGet, "/api/status/3f2504e0-4f89-41d3-9a0c-0305e82c3301", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/status/not-a-job", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/resize/not-a-job", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, router, http.MethodPost, "/api/new-image", `{"mimeType":"application/pdf"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, router, http.MethodGet, "/api/new-image", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	router := newTestApplication(t).setupRouter()

	w := doRequest(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	doRequest(t, router, http.MethodPost, "/api/new-image", `{"mimeType":"image/jpeg"}`)

	w = doRequest(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "atscale_jobs_created_total 1")
}

func TestWorkerConfig(t *testing.T) {
	wc := workerConfig(config.WorkerConfig{Concurrency: 8, BatchSize: 5, WaitTime: 3 * time.Second, TransformTimeout: 30 * time.Second})
	assert.Equal(t, 8, wc.Concurrency)
	assert.Equal(t, 5, wc.BatchSize)
	assert.Equal(t, 3*time.Second, wc.WaitTime)
	assert.Equal(t, 30*time.Second, wc.TransformTimeout)
	assert.Equal(t, time.Second, wc.DequeueErrorInterval)
}
