package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ResizeStatus represents the lifecycle state of an image resize job
type ResizeStatus string

// Possible resize status values. The order of declaration is the order
// of the lifecycle; a job never moves to an earlier status.
const (
	ResizeStatusNew      ResizeStatus = "New"
	ResizeStatusResizing ResizeStatus = "Resizing"
	ResizeStatusDone     ResizeStatus = "Done"
)

// Common validation errors for Job
var (
	ErrEmptyJobID         = errors.New("job ID cannot be empty")
	ErrEmptyUploadURL     = errors.New("job upload URL cannot be empty")
	ErrEmptyFinalURL      = errors.New("final URL cannot be empty once a job is done")
	ErrInvalidResizeState = errors.New("invalid resize status")
)

// Job tracks a single image through the resize pipeline. The status record
// is the only authoritative view of progress; queue messages carry nothing
// but the job ID.
type Job struct {
	ID        string       `json:"id"`
	Status    ResizeStatus `json:"resize_status"`
	UploadURL string       `json:"upload_url"`
	FinalURL  string       `json:"final_url,omitempty"`
	Version   int64        `json:"version"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewJobID returns a fresh, unguessable job identifier.
// Version 4 UUIDs carry 122 random bits from crypto/rand.
func NewJobID() string {
	return uuid.NewString()
}

// ParseJobID checks that id is a well-formed job identifier and returns
// its canonical text form.
func ParseJobID(id string) (string, error) {
	if id == "" {
		return "", ErrEmptyJobID
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return parsed.String(), nil
}

// NewJob creates a Job in the New state for the given ID and upload URL.
func NewJob(id, uploadURL string) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        id,
		Status:    ResizeStatusNew,
		UploadURL: uploadURL,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == "" {
		return ErrEmptyJobID
	}

	if j.UploadURL == "" {
		return ErrEmptyUploadURL
	}

	if !j.Status.Valid() {
		return ErrInvalidResizeState
	}

	if j.Status == ResizeStatusDone && j.FinalURL == "" {
		return ErrEmptyFinalURL
	}

	return nil
}

// IsDone reports whether the job has reached its terminal state.
func (j *Job) IsDone() bool {
	return j.Status == ResizeStatusDone
}

// Valid reports whether s is one of the known statuses.
func (s ResizeStatus) Valid() bool {
	return s.rank() > 0
}

// rank orders statuses along the lifecycle. Unknown statuses rank 0.
func (s ResizeStatus) rank() int {
	switch s {
	case ResizeStatusNew:
		return 1
	case ResizeStatusResizing:
		return 2
	case ResizeStatusDone:
		return 3
	default:
		return 0
	}
}

// CanAdvanceTo reports whether a record currently in status s may be
// overwritten with next. Re-applying the current status is allowed so a
// redelivered message can re-mark a job it already marked; moving
// backward is not.
func (s ResizeStatus) CanAdvanceTo(next ResizeStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return s.rank() <= next.rank()
}

// ParseResizeStatus converts a stored string into a ResizeStatus.
func ParseResizeStatus(v string) (ResizeStatus, error) {
	s := ResizeStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidResizeState, v)
	}
	return s, nil
}

func (s ResizeStatus) String() string {
	return string(s)
}
