package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zsims/atscale/internal/domain"
	"github.com/zsims/atscale/internal/platform/logger"
	"github.com/zsims/atscale/internal/store"
)

// StatusStore implements store.StatusStore on the image_requests table.
type StatusStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.StatusStore = (*StatusStore)(nil)

// NewStatusStore creates a StatusStore backed by db.
func NewStatusStore(db *sql.DB) *StatusStore {
	return &StatusStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

const (
	insertJobQuery = `
		INSERT INTO image_requests (image_id, resize_status, upload_url, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	selectJobQuery = `
		SELECT image_id, resize_status, upload_url, final_url, version, created_at, updated_at
		FROM image_requests
		WHERE image_id = $1
	`

	lockStatusQuery = `
		SELECT resize_status
		FROM image_requests
		WHERE image_id = $1
		FOR UPDATE
	`

	updateStatusQuery = `
		UPDATE image_requests
		SET resize_status = $1, version = version + 1, updated_at = $2
		WHERE image_id = $3
	`

	completeQuery = `
		UPDATE image_requests
		SET resize_status = $1, final_url = $2, version = version + 1, updated_at = $3
		WHERE image_id = $4
	`
)

// Create inserts a new record in the New state.
func (s *StatusStore) Create(ctx context.Context, jobID, uploadURL string) error {
	log := logger.FromContext(ctx)

	job, err := domain.NewJob(jobID, uploadURL)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx, insertJobQuery,
		job.ID,
		string(job.Status),
		job.UploadURL,
		job.Version,
		now,
		now,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("job ID collision on create", slog.String("job_id", jobID))
			return store.ErrJobExists
		}
		log.Error("failed to insert status record",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// Get returns the current record for jobID.
func (s *StatusStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return readJob(ctx, s.db, jobID)
}

func readJob(ctx context.Context, q store.DBTX, jobID string) (*domain.Job, error) {
	var (
		job      domain.Job
		status   string
		finalURL sql.NullString
	)

	err := q.QueryRowContext(ctx, selectJobQuery, jobID).Scan(
		&job.ID,
		&status,
		&job.UploadURL,
		&finalURL,
		&job.Version,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		logger.FromContext(ctx).Error("failed to read status record",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	job.Status, err = domain.ParseResizeStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	job.FinalURL = finalURL.String

	return &job, nil
}

// SetStatus moves the record forward to status. The row is locked for the
// duration of the check so a concurrent Complete cannot be overwritten.
func (s *StatusStore) SetStatus(ctx context.Context, jobID string, status domain.ResizeStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidResizeState)
	}
	if status == domain.ResizeStatusDone {
		return fmt.Errorf("%w: use Complete to mark a job done", store.ErrInvalidEntity)
	}

	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		current, err := lockStatus(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if !current.CanAdvanceTo(status) {
			logger.FromContext(ctx).Debug("ignoring backward status write",
				slog.String("job_id", jobID),
				slog.String("current", current.String()),
				slog.String("requested", status.String()))
			return nil
		}

		_, err = tx.ExecContext(ctx, updateStatusQuery, string(status), s.now(), jobID)
		return MapError(err)
	})
}

// Complete sets Done and the final URL in a single row update. A record
// that is already Done keeps its original final URL.
func (s *StatusStore) Complete(ctx context.Context, jobID, finalURL string) error {
	if finalURL == "" {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrEmptyFinalURL)
	}

	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		current, err := lockStatus(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if current == domain.ResizeStatusDone {
			return nil
		}

		_, err = tx.ExecContext(ctx, completeQuery,
			string(domain.ResizeStatusDone),
			finalURL,
			s.now(),
			jobID,
		)
		return MapError(err)
	})
}

// lockStatus reads the current status with a row lock held until q's
// transaction ends.
func lockStatus(ctx context.Context, q store.DBTX, jobID string) (domain.ResizeStatus, error) {
	var raw string
	if err := q.QueryRowContext(ctx, lockStatusQuery, jobID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrJobNotFound
		}
		return "", MapError(err)
	}

	status, err := domain.ParseResizeStatus(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	return status, nil
}
