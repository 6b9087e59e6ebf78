package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	NameComponentCompleted = "progress.component_completed"
	NameComponentSkipped   = "progress.component_skipped"
	NameStepCompleted      = "progress.step_completed"
	NameStepUnlocked       = "progress.step_unlocked"
	NameFlowCompleted      = "progress.flow_completed"
)

func init() {
	register(NameComponentCompleted, func() Event { return &ComponentCompleted{} })
	register(NameComponentSkipped, func() Event { return &ComponentSkipped{} })
	register(NameStepCompleted, func() Event { return &StepCompleted{} })
	register(NameStepUnlocked, func() Event { return &StepUnlocked{} })
	register(NameFlowCompleted, func() Event { return &FlowCompleted{} })
}

type ComponentCompleted struct {
	Base
	AssignmentID     uuid.UUID `json:"assignment_id"`
	UserID           uuid.UUID `json:"user_id"`
	StepID           uuid.UUID `json:"step_id"`
	ComponentID      uuid.UUID `json:"component_id"`
	ComponentType    string    `json:"component_type"`
	Score            *float64  `json:"score,omitempty"`
	MaxScore         *float64  `json:"max_score,omitempty"`
	Passed           bool      `json:"passed"`
	TimeSpentMinutes int       `json:"time_spent_minutes"`
	Attempts         int       `json:"attempts"`
	ProgressBefore   int       `json:"progress_before"`
	ProgressAfter    int       `json:"progress_after"`
}

func (ComponentCompleted) EventName() string        { return NameComponentCompleted }
func (e ComponentCompleted) AggregateID() uuid.UUID { return e.AssignmentID }

type ComponentSkipped struct {
	Base
	AssignmentID   uuid.UUID `json:"assignment_id"`
	UserID         uuid.UUID `json:"user_id"`
	StepID         uuid.UUID `json:"step_id"`
	ComponentID    uuid.UUID `json:"component_id"`
	ProgressBefore int       `json:"progress_before"`
	ProgressAfter  int       `json:"progress_after"`
}

func (ComponentSkipped) EventName() string        { return NameComponentSkipped }
func (e ComponentSkipped) AggregateID() uuid.UUID { return e.AssignmentID }

type StepCompleted struct {
	Base
	AssignmentID uuid.UUID `json:"assignment_id"`
	UserID       uuid.UUID `json:"user_id"`
	StepID       uuid.UUID `json:"step_id"`
	Sequence     int       `json:"sequence"`
}

func (StepCompleted) EventName() string        { return NameStepCompleted }
func (e StepCompleted) AggregateID() uuid.UUID { return e.AssignmentID }

type StepUnlocked struct {
	Base
	AssignmentID uuid.UUID `json:"assignment_id"`
	UserID       uuid.UUID `json:"user_id"`
	StepID       uuid.UUID `json:"step_id"`
	Sequence     int       `json:"sequence"`
}

func (StepUnlocked) EventName() string        { return NameStepUnlocked }
func (e StepUnlocked) AggregateID() uuid.UUID { return e.AssignmentID }

type FlowCompleted struct {
	Base
	AssignmentID  uuid.UUID `json:"assignment_id"`
	UserID        uuid.UUID `json:"user_id"`
	FlowVersionID uuid.UUID `json:"flow_version_id"`
	CompletedAt   time.Time `json:"completed_at"`
}

func (FlowCompleted) EventName() string        { return NameFlowCompleted }
func (e FlowCompleted) AggregateID() uuid.UUID { return e.AssignmentID }
