// Package memstore provides an in-process StatusStore. It backs local
// development and the pipeline tests; state is lost when the process exits.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zsims/atscale/internal/domain"
	"github.com/zsims/atscale/internal/store"
)

// StatusStore implements store.StatusStore with a mutex-guarded map.
type StatusStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
	now  func() time.Time
}

var _ store.StatusStore = (*StatusStore)(nil)

// NewStatusStore creates an empty StatusStore.
func NewStatusStore() *StatusStore {
	return &StatusStore{
		jobs: make(map[string]domain.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new record in the New state.
func (s *StatusStore) Create(ctx context.Context, jobID, uploadURL string) error {
	job, err := domain.NewJob(jobID, uploadURL)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[jobID]; exists {
		return store.ErrJobExists
	}
	job.CreatedAt = s.now()
	job.UpdatedAt = job.CreatedAt
	s.jobs[jobID] = *job
	return nil
}

// Get returns a copy of the current record.
func (s *StatusStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return &job, nil
}

// SetStatus moves the record forward to status; backward moves are dropped.
func (s *StatusStore) SetStatus(ctx context.Context, jobID string, status domain.ResizeStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidResizeState)
	}
	if status == domain.ResizeStatusDone {
		return fmt.Errorf("%w: use Complete to mark a job done", store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return store.ErrJobNotFound
	}
	if !job.Status.CanAdvanceTo(status) {
		return nil
	}
	job.Status = status
	job.Version++
	job.UpdatedAt = s.now()
	s.jobs[jobID] = job
	return nil
}

// Complete sets Done and the final URL under one lock acquisition so no
// reader can observe one without the other.
func (s *StatusStore) Complete(ctx context.Context, jobID, finalURL string) error {
	if finalURL == "" {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrEmptyFinalURL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return store.ErrJobNotFound
	}
	if job.IsDone() {
		return nil
	}
	job.Status = domain.ResizeStatusDone
	job.FinalURL = finalURL
	job.Version++
	job.UpdatedAt = s.now()
	s.jobs[jobID] = job
	return nil
}
