package flows

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/buddybot-backend/internal/domain"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

type ComponentProgressRepo interface {
	Create(dbc dbctx.Context, row *types.ComponentProgress) (*types.ComponentProgress, error)
	GetByAssignmentAndComponent(dbc dbctx.Context, assignmentID, componentID uuid.UUID) (*types.ComponentProgress, error)
	ListByAssignment(dbc dbctx.Context, assignmentID uuid.UUID) ([]*types.ComponentProgress, error)
}

type componentProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewComponentProgressRepo(db *gorm.DB, baseLog *logger.Logger) ComponentProgressRepo {
	return &componentProgressRepo{db: db, log: baseLog.With("repo", "ComponentProgressRepo")}
}

// Create inserts the lazily created row. A concurrent insert for the same pair
// surfaces as a unique violation.
func (r *componentProgressRepo) Create(dbc dbctx.Context, row *types.ComponentProgress) (*types.ComponentProgress, error) {
	if row == nil {
		return nil, nil
	}
	now := time.Now().UTC()
	if row.Revision <= 0 {
		row.Revision = 1
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	if err := dbc.Handle(r.db).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *componentProgressRepo) GetByAssignmentAndComponent(dbc dbctx.Context, assignmentID, componentID uuid.UUID) (*types.ComponentProgress, error) {
	if assignmentID == uuid.Nil || componentID == uuid.Nil {
		return nil, nil
	}
	var out []*types.ComponentProgress
	if err := dbc.Handle(r.db).
		Where("assignment_id = ? AND component_id = ?", assignmentID, componentID).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *componentProgressRepo) ListByAssignment(dbc dbctx.Context, assignmentID uuid.UUID) ([]*types.ComponentProgress, error) {
	if assignmentID == uuid.Nil {
		return []*types.ComponentProgress{}, nil
	}
	var out []*types.ComponentProgress
	if err := dbc.Handle(r.db).
		Where("assignment_id = ?", assignmentID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
