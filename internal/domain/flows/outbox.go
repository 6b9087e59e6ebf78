package flows

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxDispatched OutboxStatus = "dispatched"
	OutboxFailed     OutboxStatus = "failed"
)

// OutboxEvent is a domain event written in the same transaction as the state it describes.
// ID equals the event id so consumers can dedupe on it.
type OutboxEvent struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	EventType     string         `gorm:"type:text;not null;index" json:"event_type"`
	AggregateID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"aggregate_id"`
	SchemaVersion int            `gorm:"not null;default:1" json:"schema_version"`
	Payload       datatypes.JSON `json:"payload"`
	OccurredAt    time.Time      `gorm:"not null" json:"occurred_at"`

	Status        OutboxStatus `gorm:"type:text;not null;index" json:"status"`
	Attempts      int          `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time    `gorm:"not null;index" json:"next_attempt_at"`
	LastError     string       `gorm:"type:text;not null;default:''" json:"last_error"`
	DispatchedAt  *time.Time   `json:"dispatched_at,omitempty"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (OutboxEvent) TableName() string { return "outbox_event" }
