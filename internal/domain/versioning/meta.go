package versioning

import (
	"time"

	"github.com/google/uuid"
)

// Meta is embedded by every versioned row.
//
// OriginalID groups all versions of one logical entity. Version starts at 1 and
// grows by one per OriginalID. At most one version per OriginalID has IsActive set.
// Revision is the optimistic-concurrency token and is bumped on every write.
type Meta struct {
	OriginalID uuid.UUID `gorm:"type:uuid;not null;index" json:"original_id"`
	Version    int       `gorm:"not null" json:"version"`
	IsActive   bool      `gorm:"not null;default:false;index" json:"is_active"`
	Revision   int       `gorm:"not null;default:1" json:"revision"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

// Versioning exposes the embedded metadata through the Entity interface.
func (m *Meta) Versioning() *Meta { return m }

// Entity is satisfied by pointers to versioned rows.
type Entity interface {
	GetID() uuid.UUID
	SetID(id uuid.UUID)
	Versioning() *Meta
	TableName() string
}

// InitFirst stamps meta for version 1 of a brand new logical entity.
func (m *Meta) InitFirst(id uuid.UUID, now time.Time) {
	m.OriginalID = id
	m.Version = 1
	m.IsActive = false
	m.Revision = 1
	m.CreatedAt = now
	m.UpdatedAt = now
}

// InitNext stamps meta for a new version following maxVersion.
func (m *Meta) InitNext(originalID uuid.UUID, maxVersion int, now time.Time) {
	m.OriginalID = originalID
	m.Version = maxVersion + 1
	m.IsActive = false
	m.Revision = 1
	m.CreatedAt = now
	m.UpdatedAt = now
}
