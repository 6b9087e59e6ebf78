package services

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/buddybot-backend/internal/data/repos"
	types "github.com/yungbote/buddybot-backend/internal/domain"
	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

type ComponentView struct {
	*types.FlowStepComponent
	Settings flows.ComponentSettings `json:"settings"`
}

type StepView struct {
	*types.FlowStep
	Components []ComponentView `json:"components"`
}

// FlowTree is one flow version with its content, decoded for transport.
type FlowTree struct {
	*types.Flow
	Tags     []string           `json:"tags"`
	Settings flows.FlowSettings `json:"settings"`
	Steps    []StepView         `json:"steps"`
}

type FlowQueryService interface {
	GetFlowVersion(dbc dbctx.Context, flowVersionID uuid.UUID, withAnswerKeys bool) (*FlowTree, error)
	GetActiveFlow(dbc dbctx.Context, flowOriginalID uuid.UUID, withAnswerKeys bool) (*FlowTree, error)
	ListFlowVersions(dbc dbctx.Context, flowOriginalID uuid.UUID, afterVersion, limit int) ([]*types.Flow, error)
	ListActiveFlows(dbc dbctx.Context, category string, limit int) ([]*types.Flow, error)
}

type flowQueryService struct {
	db         *gorm.DB
	log        *logger.Logger
	flows      repos.FlowRepo
	steps      repos.FlowStepRepo
	components repos.FlowComponentRepo
}

func NewFlowQueryService(db *gorm.DB, baseLog *logger.Logger, set repos.Set) FlowQueryService {
	return &flowQueryService{
		db:         db,
		log:        baseLog.With("service", "FlowQueryService"),
		flows:      set.Flows,
		steps:      set.Steps,
		components: set.Components,
	}
}

func (s *flowQueryService) GetFlowVersion(dbc dbctx.Context, flowVersionID uuid.UUID, withAnswerKeys bool) (*FlowTree, error) {
	const op = "Services.FlowQuery.GetFlowVersion"
	snap, err := loadTree(dbc, s.flows, s.steps, s.components, flowVersionID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if snap == nil {
		return nil, domainagg.NewEntityError(domainagg.CodeNotFound, op, flowVersionID.String(), "flow version not found")
	}
	return buildFlowTree(snap, withAnswerKeys), nil
}

func (s *flowQueryService) GetActiveFlow(dbc dbctx.Context, flowOriginalID uuid.UUID, withAnswerKeys bool) (*FlowTree, error) {
	const op = "Services.FlowQuery.GetActiveFlow"
	active, err := s.flows.GetActive(dbc, flowOriginalID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if active == nil {
		return nil, domainagg.NewEntityError(domainagg.CodeNoActiveVersion, op, flowOriginalID.String(), "flow has no active version")
	}
	return s.GetFlowVersion(dbc, active.ID, withAnswerKeys)
}

func (s *flowQueryService) ListFlowVersions(dbc dbctx.Context, flowOriginalID uuid.UUID, afterVersion, limit int) ([]*types.Flow, error) {
	const op = "Services.FlowQuery.ListFlowVersions"
	if flowOriginalID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "flow id is required", nil)
	}
	out, err := s.flows.ListVersions(dbc, flowOriginalID, afterVersion, limit)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if len(out) == 0 && afterVersion <= 0 {
		return nil, domainagg.NewEntityError(domainagg.CodeNotFound, op, flowOriginalID.String(), "flow not found")
	}
	return out, nil
}

func (s *flowQueryService) ListActiveFlows(dbc dbctx.Context, category string, limit int) ([]*types.Flow, error) {
	out, err := s.flows.ListActive(dbc, category, limit)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, "Services.FlowQuery.ListActiveFlows", err)
	}
	return out, nil
}

func buildFlowTree(snap *flows.Snapshot, withAnswerKeys bool) *FlowTree {
	tree := &FlowTree{
		Flow:     snap.Flow,
		Tags:     flows.DecodeTags(snap.Flow.Tags),
		Settings: snap.Settings(),
		Steps:    make([]StepView, 0, len(snap.Steps)),
	}
	for _, st := range snap.Steps {
		sv := StepView{FlowStep: st.Step, Components: make([]ComponentView, 0, len(st.Components))}
		for _, c := range st.Components {
			settings := c.ComponentSettings()
			if !withAnswerKeys {
				delete(settings, flows.SettingAnswerKey)
			}
			sv.Components = append(sv.Components, ComponentView{FlowStepComponent: c, Settings: settings})
		}
		tree.Steps = append(tree.Steps, sv)
	}
	return tree
}
