package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	NameFlowVersionActivated    = "flow.version_activated"
	NameFlowArchived            = "flow.archived"
	NameFlowAssigned            = "flow.assigned"
	NameFlowAssignmentCancelled = "flow.assignment_cancelled"
)

func init() {
	register(NameFlowVersionActivated, func() Event { return &FlowVersionActivated{} })
	register(NameFlowArchived, func() Event { return &FlowArchived{} })
	register(NameFlowAssigned, func() Event { return &FlowAssigned{} })
	register(NameFlowAssignmentCancelled, func() Event { return &FlowAssignmentCancelled{} })
}

type FlowVersionActivated struct {
	Base
	FlowOriginalID    uuid.UUID  `json:"flow_original_id"`
	FlowVersionID     uuid.UUID  `json:"flow_version_id"`
	Version           int        `json:"version"`
	PreviousVersionID *uuid.UUID `json:"previous_version_id,omitempty"`
	ActorID           uuid.UUID  `json:"actor_id"`
}

func (FlowVersionActivated) EventName() string        { return NameFlowVersionActivated }
func (e FlowVersionActivated) AggregateID() uuid.UUID { return e.FlowVersionID }

type FlowArchived struct {
	Base
	FlowOriginalID uuid.UUID `json:"flow_original_id"`
	FlowVersionID  uuid.UUID `json:"flow_version_id"`
	ActorID        uuid.UUID `json:"actor_id"`
}

func (FlowArchived) EventName() string        { return NameFlowArchived }
func (e FlowArchived) AggregateID() uuid.UUID { return e.FlowVersionID }

type FlowAssigned struct {
	Base
	AssignmentID   uuid.UUID  `json:"assignment_id"`
	UserID         uuid.UUID  `json:"user_id"`
	FlowOriginalID uuid.UUID  `json:"flow_original_id"`
	FlowVersionID  uuid.UUID  `json:"flow_version_id"`
	AssignedByID   uuid.UUID  `json:"assigned_by_id"`
	BuddyID        *uuid.UUID `json:"buddy_id,omitempty"`
	Deadline       *time.Time `json:"deadline,omitempty"`
}

func (FlowAssigned) EventName() string        { return NameFlowAssigned }
func (e FlowAssigned) AggregateID() uuid.UUID { return e.AssignmentID }

type FlowAssignmentCancelled struct {
	Base
	AssignmentID uuid.UUID `json:"assignment_id"`
	UserID       uuid.UUID `json:"user_id"`
	ActorID      uuid.UUID `json:"actor_id"`
	Reason       string    `json:"reason,omitempty"`
}

func (FlowAssignmentCancelled) EventName() string        { return NameFlowAssignmentCancelled }
func (e FlowAssignmentCancelled) AggregateID() uuid.UUID { return e.AssignmentID }
