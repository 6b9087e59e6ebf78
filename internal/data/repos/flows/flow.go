package flows

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/buddybot-backend/internal/domain"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

type FlowRepo interface {
	VersionedRepo[types.Flow, *types.Flow]
	ListActive(dbc dbctx.Context, category string, limit int) ([]*types.Flow, error)
}

type flowRepo struct {
	*versionedRepo[types.Flow, *types.Flow]
}

func NewFlowRepo(db *gorm.DB, baseLog *logger.Logger) FlowRepo {
	return &flowRepo{newVersionedRepo[types.Flow, *types.Flow](db, baseLog, "FlowRepo")}
}

func (r *flowRepo) ListActive(dbc dbctx.Context, category string, limit int) ([]*types.Flow, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := dbc.Handle(r.db).Where("is_active = ?", true)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var out []*types.Flow
	if err := q.Order("priority DESC, title ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type FlowStepRepo interface {
	VersionedRepo[types.FlowStep, *types.FlowStep]
	ListByFlowVersion(dbc dbctx.Context, flowVersionID uuid.UUID) ([]*types.FlowStep, error)
}

type flowStepRepo struct {
	*versionedRepo[types.FlowStep, *types.FlowStep]
}

func NewFlowStepRepo(db *gorm.DB, baseLog *logger.Logger) FlowStepRepo {
	return &flowStepRepo{newVersionedRepo[types.FlowStep, *types.FlowStep](db, baseLog, "FlowStepRepo")}
}

// ListByFlowVersion returns the steps of one flow version in traversal order.
func (r *flowStepRepo) ListByFlowVersion(dbc dbctx.Context, flowVersionID uuid.UUID) ([]*types.FlowStep, error) {
	if flowVersionID == uuid.Nil {
		return []*types.FlowStep{}, nil
	}
	var out []*types.FlowStep
	if err := dbc.Handle(r.db).
		Where("flow_version_id = ?", flowVersionID).
		Order("sequence ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type FlowComponentRepo interface {
	VersionedRepo[types.FlowStepComponent, *types.FlowStepComponent]
	ListByStepVersions(dbc dbctx.Context, stepVersionIDs []uuid.UUID) ([]*types.FlowStepComponent, error)
}

type flowComponentRepo struct {
	*versionedRepo[types.FlowStepComponent, *types.FlowStepComponent]
}

func NewFlowComponentRepo(db *gorm.DB, baseLog *logger.Logger) FlowComponentRepo {
	return &flowComponentRepo{newVersionedRepo[types.FlowStepComponent, *types.FlowStepComponent](db, baseLog, "FlowComponentRepo")}
}

func (r *flowComponentRepo) ListByStepVersions(dbc dbctx.Context, stepVersionIDs []uuid.UUID) ([]*types.FlowStepComponent, error) {
	if len(stepVersionIDs) == 0 {
		return []*types.FlowStepComponent{}, nil
	}
	var out []*types.FlowStepComponent
	if err := dbc.Handle(r.db).
		Where("step_version_id IN ?", stepVersionIDs).
		Order("step_version_id ASC, sequence ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
