package flows

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FlowAssignment binds a user to one frozen flow version. FlowVersionID never changes.
type FlowAssignment struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	FlowVersionID  uuid.UUID        `gorm:"type:uuid;not null;index" json:"flow_version_id"`
	FlowOriginalID uuid.UUID        `gorm:"type:uuid;not null;index" json:"flow_original_id"`
	AssignedByID   uuid.UUID        `gorm:"type:uuid;not null" json:"assigned_by_id"`
	BuddyID        *uuid.UUID       `gorm:"type:uuid;index" json:"buddy_id,omitempty"`
	Deadline       *time.Time       `json:"deadline,omitempty"`
	Notes          string           `gorm:"type:text;not null;default:''" json:"notes"`
	Status         AssignmentStatus `gorm:"type:text;not null;index" json:"status"`

	ProgressPercent int        `gorm:"not null;default:0" json:"progress_percent"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CancelReason    string     `gorm:"type:text;not null;default:''" json:"cancel_reason"`

	Revision  int       `gorm:"not null;default:1" json:"revision"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (FlowAssignment) TableName() string { return "flow_assignment" }

func (a *FlowAssignment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *FlowAssignment) Open() bool {
	return a.Status == AssignmentAssigned || a.Status == AssignmentInProgress
}
