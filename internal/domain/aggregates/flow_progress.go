package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/buddybot-backend/internal/domain/flows"
)

var FlowProgressAggregateContract = Contract{
	Name:        "Flows.ProgressAggregate",
	Concurrency: ConcurrencyRetryOnce,
	Notes:       "Drives component -> step -> flow progress for one assignment snapshot and emits completion events via the outbox.",
}

// FlowProgressAggregate records user interactions against an assignment snapshot.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeComponentNotInSnapshot, CodeStepLocked,
// CodeStaleInteraction, CodeInvalidTransition, CodeConcurrentModification, CodeInternal.
type FlowProgressAggregate interface {
	Aggregate

	RecordInteraction(ctx context.Context, in RecordInteractionInput) (RecordInteractionResult, error)
}

type RecordInteractionInput struct {
	AssignmentID uuid.UUID
	ComponentID  uuid.UUID
	ActorID      uuid.UUID
	Interaction  flows.InteractionType

	// Score/MaxScore are caller-computed; Answers are graded against the component answer key.
	Score    *float64
	MaxScore *float64
	Answers  map[string]any

	TimeSpentMinutes int
	Data             map[string]any
	At               time.Time
}

type RecordInteractionResult struct {
	// Progress is nil for a read-only preview of a locked step.
	Progress          *flows.ComponentProgress
	Preview           bool
	StepCompleted     bool
	FlowPercentBefore int
	FlowPercentAfter  int
	AssignmentStatus  flows.AssignmentStatus
	EmittedEvents     []string
}
