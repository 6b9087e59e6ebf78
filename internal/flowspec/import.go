package flowspec

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
)

type ImportResult struct {
	Flow       *flows.Flow
	Steps      int
	Components int
	Activated  bool
}

// Import creates a draft flow from spec and optionally activates it. Each authoring
// call commits on its own; a failure part-way leaves an editable draft whose id is
// reported in the error.
func Import(ctx context.Context, authoring domainagg.FlowAuthoringAggregate, spec *FlowSpec, actorID uuid.UUID, activate bool) (ImportResult, error) {
	var out ImportResult
	if spec == nil {
		return out, fmt.Errorf("flow template required")
	}
	if err := spec.Validate(); err != nil {
		return out, err
	}
	flow, err := authoring.CreateFlow(ctx, domainagg.CreateFlowInput{
		ActorID:                  actorID,
		Title:                    spec.Title,
		Description:              spec.Description,
		Category:                 spec.Category,
		Tags:                     spec.Tags,
		Priority:                 spec.Priority,
		IsRequired:               spec.Required,
		EstimatedDurationMinutes: spec.EstimatedDurationMinutes,
		Settings:                 spec.Settings,
	})
	if err != nil {
		return out, err
	}
	out.Flow = flow

	for i, st := range spec.Steps {
		step, err := authoring.AddStep(ctx, domainagg.AddStepInput{
			FlowVersionID:            flow.ID,
			Title:                    st.Title,
			Description:              st.Description,
			EstimatedDurationMinutes: st.EstimatedDurationMinutes,
		})
		if err != nil {
			return out, fmt.Errorf("draft %s: steps[%d]: %w", flow.ID, i, err)
		}
		out.Steps++
		for j, c := range st.Components {
			typ, _ := flows.ParseComponentType(c.Type)
			if _, err := authoring.AddComponent(ctx, domainagg.AddComponentInput{
				StepVersionID: step.ID,
				Type:          typ,
				Title:         c.Title,
				IsRequired:    c.IsRequired(),
				Settings:      c.Settings,
			}); err != nil {
				return out, fmt.Errorf("draft %s: steps[%d].components[%d]: %w", flow.ID, i, j, err)
			}
			out.Components++
		}
	}

	if !activate {
		return out, nil
	}
	res, err := authoring.ActivateFlowVersion(ctx, domainagg.ActivateFlowVersionInput{
		FlowVersionID: flow.ID,
		ActorID:       actorID,
	})
	if err != nil {
		return out, fmt.Errorf("draft %s: activate: %w", flow.ID, err)
	}
	out.Flow = res.Flow
	out.Activated = true
	return out, nil
}
