package services

import (
	"github.com/google/uuid"

	"github.com/yungbote/buddybot-backend/internal/data/repos"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

// loadTree reads one flow version with its steps and components. A missing
// version returns nil without error.
func loadTree(dbc dbctx.Context, fr repos.FlowRepo, sr repos.FlowStepRepo, cr repos.FlowComponentRepo, flowVersionID uuid.UUID) (*flows.Snapshot, error) {
	flow, err := fr.GetByID(dbc, flowVersionID)
	if err != nil || flow == nil {
		return nil, err
	}
	steps, err := sr.ListByFlowVersion(dbc, flow.ID)
	if err != nil {
		return nil, err
	}
	stepIDs := make([]uuid.UUID, 0, len(steps))
	for _, s := range steps {
		stepIDs = append(stepIDs, s.ID)
	}
	comps, err := cr.ListByStepVersions(dbc, stepIDs)
	if err != nil {
		return nil, err
	}
	return flows.NewSnapshot(flow, steps, comps), nil
}
