package flows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/buddybot-backend/internal/domain"
	domainflows "github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

type FlowAssignmentRepo interface {
	Create(dbc dbctx.Context, rows []*types.FlowAssignment) ([]*types.FlowAssignment, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.FlowAssignment, error)
	FindOpen(dbc dbctx.Context, userID uuid.UUID, flowOriginalID uuid.UUID) (*types.FlowAssignment, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.FlowAssignment, error)
}

type flowAssignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFlowAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) FlowAssignmentRepo {
	return &flowAssignmentRepo{db: db, log: baseLog.With("repo", "FlowAssignmentRepo")}
}

func (r *flowAssignmentRepo) Create(dbc dbctx.Context, rows []*types.FlowAssignment) ([]*types.FlowAssignment, error) {
	if len(rows) == 0 {
		return []*types.FlowAssignment{}, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.Revision <= 0 {
			row.Revision = 1
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = row.CreatedAt
		}
	}
	if err := dbc.Handle(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *flowAssignmentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.FlowAssignment, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.FlowAssignment
	if err := dbc.Handle(r.db).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// FindOpen returns the assigned or in-progress assignment of a flow for a user, if any.
func (r *flowAssignmentRepo) FindOpen(dbc dbctx.Context, userID uuid.UUID, flowOriginalID uuid.UUID) (*types.FlowAssignment, error) {
	if userID == uuid.Nil || flowOriginalID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id or flow_original_id")
	}
	var out []*types.FlowAssignment
	if err := dbc.Handle(r.db).
		Where("user_id = ? AND flow_original_id = ? AND status IN ?", userID, flowOriginalID, domainflows.OpenAssignmentStatuses).
		Order("created_at DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *flowAssignmentRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.FlowAssignment, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.FlowAssignment
	if err := dbc.Handle(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
