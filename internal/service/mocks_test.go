package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/zsims/atscale/internal/domain"
	"github.com/zsims/atscale/internal/queue"
)

// MockStatusStore mocks the store.StatusStore interface
type MockStatusStore struct {
	mock.Mock
}

func (m *MockStatusStore) Create(ctx context.Context, jobID, uploadURL string) error {
	args := m.Called(ctx, jobID, uploadURL)
	return args.Error(0)
}

func (m *MockStatusStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockStatusStore) SetStatus(ctx context.Context, jobID string, status domain.ResizeStatus) error {
	args := m.Called(ctx, jobID, status)
	return args.Error(0)
}

func (m *MockStatusStore) Complete(ctx context.Context, jobID, finalURL string) error {
	args := m.Called(ctx, jobID, finalURL)
	return args.Error(0)
}

// MockBlobStore mocks the blob.Store interface
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) PresignUpload(
	ctx context.Context,
	key, contentType string,
	expiry time.Duration,
) (string, error) {
	args := m.Called(ctx, key, contentType, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *MockBlobStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, key, contentType, data)
	return args.String(0), args.Error(1)
}

// MockJobQueue mocks the queue.JobQueue interface
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Enqueue(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockJobQueue) Dequeue(ctx context.Context, maxMessages int, wait time.Duration) ([]queue.Message, error) {
	args := m.Called(ctx, maxMessages, wait)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]queue.Message), args.Error(1)
}

func (m *MockJobQueue) Acknowledge(ctx context.Context, receiptHandle string) error {
	args := m.Called(ctx, receiptHandle)
	return args.Error(0)
}
