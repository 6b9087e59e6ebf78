package aggregates

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
)

var VersionManagerContract = Contract{
	Name:        "Versioning.Manager",
	Concurrency: ConcurrencyFailFast,
	Notes:       "Append-only versions per original id; activation flips is_active on the target and the prior active row atomically.",
}

// VersionManager is the generic contract shared by every versioned entity type.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeNoActiveVersion, CodeConcurrentActivation, CodeInternal.
type VersionManager[T any] interface {
	Aggregate

	// CreateNewVersion copies the active version (or the latest one when none is active)
	// into a new inactive row with Version = max+1. mutate may edit the copy before insert.
	CreateNewVersion(ctx context.Context, originalID uuid.UUID, mutate func(*T) error) (*T, error)

	// Activate makes versionID the single active version of its original id.
	Activate(ctx context.Context, versionID uuid.UUID) (ActivationResult, error)

	// GetActive returns the active version or a CodeNoActiveVersion error.
	GetActive(ctx context.Context, originalID uuid.UUID) (*T, error)

	// History yields every version ordered by Version ascending. Each range restarts the read.
	History(ctx context.Context, originalID uuid.UUID) iter.Seq2[*T, error]
}

type ActivationResult struct {
	OriginalID        uuid.UUID
	VersionID         uuid.UUID
	Version           int
	PreviousVersionID *uuid.UUID
	AlreadyActive     bool
	ActivatedAt       time.Time
}
