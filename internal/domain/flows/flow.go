package flows

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/buddybot-backend/internal/domain/versioning"
)

// Flow is one version of a training flow. Steps reference it by FlowVersionID.
type Flow struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	versioning.Meta

	Title                    string         `gorm:"type:text;not null" json:"title"`
	Description              string         `gorm:"type:text;not null" json:"description"`
	Category                 string         `gorm:"type:text;not null;default:'';index" json:"category"`
	Tags                     datatypes.JSON `json:"tags"`
	Status                   FlowStatus     `gorm:"type:text;not null;index" json:"status"`
	Priority                 int            `gorm:"not null;default:0" json:"priority"`
	IsRequired               bool           `gorm:"not null;default:false" json:"is_required"`
	TotalSteps               int            `gorm:"not null;default:0" json:"total_steps"`
	EstimatedDurationMinutes int            `gorm:"not null;default:0" json:"estimated_duration_minutes"`
	Settings                 datatypes.JSON `json:"settings"`
	CreatedByID              uuid.UUID      `gorm:"type:uuid;not null" json:"created_by_id"`
}

func (Flow) TableName() string { return "flow" }

func (f *Flow) GetID() uuid.UUID   { return f.ID }
func (f *Flow) SetID(id uuid.UUID) { f.ID = id }

// Editable reports whether steps and components may still be appended.
func (f *Flow) Editable() bool {
	return f.Status == FlowStatusDraft && !f.IsActive
}

func (f *Flow) FlowSettings() FlowSettings {
	return DecodeFlowSettings(f.Settings)
}

func (f *Flow) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// FlowStep is one version of an ordered step owned by exactly one flow version.
type FlowStep struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	versioning.Meta

	FlowVersionID            uuid.UUID     `gorm:"type:uuid;not null;index" json:"flow_version_id"`
	Sequence                 int           `gorm:"not null" json:"sequence"`
	Title                    string        `gorm:"type:text;not null" json:"title"`
	Description              string        `gorm:"type:text;not null;default:''" json:"description"`
	Status                   ContentStatus `gorm:"type:text;not null" json:"status"`
	TotalComponents          int           `gorm:"not null;default:0" json:"total_components"`
	RequiredComponents       int           `gorm:"not null;default:0" json:"required_components"`
	EstimatedDurationMinutes int           `gorm:"not null;default:0" json:"estimated_duration_minutes"`
}

func (FlowStep) TableName() string { return "flow_step" }

func (s *FlowStep) GetID() uuid.UUID   { return s.ID }
func (s *FlowStep) SetID(id uuid.UUID) { s.ID = id }

func (s *FlowStep) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// FlowStepComponent is one version of a leaf content unit owned by one step version.
type FlowStepComponent struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	versioning.Meta

	StepVersionID uuid.UUID      `gorm:"type:uuid;not null;index" json:"step_version_id"`
	Type          ComponentType  `gorm:"type:text;not null" json:"type"`
	Title         string         `gorm:"type:text;not null" json:"title"`
	Status        ContentStatus  `gorm:"type:text;not null" json:"status"`
	IsRequired    bool           `gorm:"not null" json:"is_required"`
	Sequence      int            `gorm:"not null" json:"sequence"`
	Settings      datatypes.JSON `json:"settings"`
}

func (FlowStepComponent) TableName() string { return "flow_step_component" }

func (c *FlowStepComponent) GetID() uuid.UUID   { return c.ID }
func (c *FlowStepComponent) SetID(id uuid.UUID) { c.ID = id }

func (c *FlowStepComponent) ComponentSettings() ComponentSettings {
	return DecodeComponentSettings(c.Settings)
}

func (c *FlowStepComponent) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
