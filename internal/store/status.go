package store

import (
	"context"

	"github.com/zsims/atscale/internal/domain"
)

// StatusStore persists the lifecycle record of each resize job.
//
// Writes are monotonic: SetStatus and Complete never move a record to an
// earlier status. A write that would do so is dropped without error, so a
// straggling duplicate delivery cannot clobber newer progress. Both write
// methods return ErrJobNotFound when no record exists.
type StatusStore interface {
	// Create inserts a new record in the New state.
	// Returns ErrJobExists if the ID is already tracked.
	Create(ctx context.Context, jobID, uploadURL string) error

	// Get returns the current record, or ErrJobNotFound.
	// Reads must observe every write that completed before the call.
	Get(ctx context.Context, jobID string) (*domain.Job, error)

	// SetStatus moves the record to status when the current status
	// ranks at or below it.
	SetStatus(ctx context.Context, jobID string, status domain.ResizeStatus) error

	// Complete atomically sets the status to Done together with the final
	// URL. A record that is already Done keeps its existing final URL.
	Complete(ctx context.Context, jobID, finalURL string) error
}
