package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/buddybot-backend/internal/domain/flows"
)

var FlowAuthoringAggregateContract = Contract{
	Name:        "Flows.AuthoringAggregate",
	Concurrency: ConcurrencyFailFast,
	Notes:       "Owns the flow -> step -> component tree of editable versions and version activation.",
}

// FlowAuthoringAggregate builds flow versions and activates them.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeImmutableVersion, CodeConcurrentActivation,
// CodePreconditionFailed, CodeInternal.
type FlowAuthoringAggregate interface {
	Aggregate

	CreateFlow(ctx context.Context, in CreateFlowInput) (*flows.Flow, error)
	UpdateFlowDraft(ctx context.Context, in UpdateFlowDraftInput) (*flows.Flow, error)
	AddStep(ctx context.Context, in AddStepInput) (*flows.FlowStep, error)
	AddComponent(ctx context.Context, in AddComponentInput) (*flows.FlowStepComponent, error)

	// ActivateFlowVersion activates the flow version and its whole step/component tree.
	ActivateFlowVersion(ctx context.Context, in ActivateFlowVersionInput) (ActivateFlowVersionResult, error)

	// CreateFlowDraft deep-copies the active version tree into a new editable version.
	CreateFlowDraft(ctx context.Context, in CreateFlowDraftInput) (*flows.Flow, error)

	// ArchiveFlow deactivates the active version so the flow is no longer assignable.
	ArchiveFlow(ctx context.Context, in ArchiveFlowInput) (*flows.Flow, error)
}

type CreateFlowInput struct {
	ActorID                  uuid.UUID
	Title                    string
	Description              string
	Category                 string
	Tags                     []string
	Priority                 int
	IsRequired               bool
	EstimatedDurationMinutes int
	Settings                 flows.FlowSettings
}

// UpdateFlowDraftInput applies only the non-nil fields.
type UpdateFlowDraftInput struct {
	FlowVersionID            uuid.UUID
	ActorID                  uuid.UUID
	Title                    *string
	Description              *string
	Category                 *string
	Tags                     *[]string
	Priority                 *int
	IsRequired               *bool
	EstimatedDurationMinutes *int
	Settings                 *flows.FlowSettings
}

type AddStepInput struct {
	FlowVersionID            uuid.UUID
	Title                    string
	Description              string
	EstimatedDurationMinutes int
}

type AddComponentInput struct {
	StepVersionID uuid.UUID
	Type          flows.ComponentType
	Title         string
	IsRequired    bool
	Settings      map[string]any
}

type ActivateFlowVersionInput struct {
	FlowVersionID uuid.UUID
	ActorID       uuid.UUID
}

type ActivateFlowVersionResult struct {
	Flow              *flows.Flow
	PreviousVersionID *uuid.UUID
	AlreadyActive     bool
	StepsActivated    int
	ComponentsActive  int
	ActivatedAt       time.Time
}

type CreateFlowDraftInput struct {
	FlowOriginalID uuid.UUID
	ActorID        uuid.UUID
}

type ArchiveFlowInput struct {
	FlowOriginalID uuid.UUID
	ActorID        uuid.UUID
}
