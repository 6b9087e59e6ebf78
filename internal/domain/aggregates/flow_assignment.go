package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/buddybot-backend/internal/domain/flows"
)

var FlowAssignmentAggregateContract = Contract{
	Name:        "Flows.AssignmentAggregate",
	Concurrency: ConcurrencyFailFast,
	Notes:       "Binds a user to the active flow version; the bound version id is never re-pointed.",
}

// FlowAssignmentAggregate owns assignment creation and cancellation.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeNoActiveVersion, CodeDuplicateAssignment,
// CodeInvalidTransition, CodeConcurrentModification, CodeInternal.
type FlowAssignmentAggregate interface {
	Aggregate

	AssignFlow(ctx context.Context, in AssignFlowInput) (*flows.FlowAssignment, error)
	CancelAssignment(ctx context.Context, in CancelAssignmentInput) (*flows.FlowAssignment, error)
}

type AssignFlowInput struct {
	UserID uuid.UUID
	// FlowID is the logical flow (original id); the active version is resolved at call time.
	FlowID      uuid.UUID
	CreatedByID uuid.UUID
	BuddyID     *uuid.UUID
	Deadline    *time.Time
	Notes       string
}

type CancelAssignmentInput struct {
	AssignmentID uuid.UUID
	ActorID      uuid.UUID
	Reason       string
}
