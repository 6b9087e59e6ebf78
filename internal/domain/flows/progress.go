package flows

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ComponentProgress is the per-assignment state of one component snapshot.
// Exactly one row exists per (AssignmentID, ComponentID); it is created lazily.
type ComponentProgress struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AssignmentID uuid.UUID `gorm:"type:uuid;not null;index" json:"assignment_id"`
	ComponentID  uuid.UUID `gorm:"type:uuid;not null;index" json:"component_id"`
	StepID       uuid.UUID `gorm:"type:uuid;not null;index" json:"step_id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Status           ProgressStatus `gorm:"type:text;not null" json:"status"`
	Attempts         int            `gorm:"not null;default:0" json:"attempts"`
	TimeSpentMinutes int            `gorm:"not null;default:0" json:"time_spent_minutes"`
	Score            *float64       `json:"score,omitempty"`
	MaxScore         *float64       `json:"max_score,omitempty"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	Data             datatypes.JSON `json:"data"`

	Revision  int       `gorm:"not null;default:1" json:"revision"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ComponentProgress) TableName() string { return "component_progress" }

func (p *ComponentProgress) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// CountsAsDone reports whether the row counts toward required-component completion.
// A component that was ever completed keeps counting while it is being retried.
func (p *ComponentProgress) CountsAsDone() bool {
	if p == nil {
		return false
	}
	return p.Status.Terminal() || p.CompletedAt != nil
}

// InRetryCycle reports a component reopened by Retry after a prior completion.
func (p *ComponentProgress) InRetryCycle() bool {
	if p == nil {
		return false
	}
	return !p.Status.Terminal() && p.CompletedAt != nil
}
