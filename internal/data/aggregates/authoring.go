package aggregates

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/yungbote/buddybot-backend/internal/data/repos"
	types "github.com/yungbote/buddybot-backend/internal/domain"
	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/domain/events"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

type FlowAuthoringAggregateDeps struct {
	Base BaseDeps

	Flows      repos.FlowRepo
	Steps      repos.FlowStepRepo
	Components repos.FlowComponentRepo
	Outbox     repos.OutboxRepo
}

type flowAuthoringAggregate struct {
	deps FlowAuthoringAggregateDeps

	flowVersions      *VersionManager[types.Flow, *types.Flow]
	stepVersions      *VersionManager[types.FlowStep, *types.FlowStep]
	componentVersions *VersionManager[types.FlowStepComponent, *types.FlowStepComponent]
}

func NewFlowAuthoringAggregate(deps FlowAuthoringAggregateDeps) domainagg.FlowAuthoringAggregate {
	deps.Base = deps.Base.withDefaults()
	deps.Base.Log = deps.Base.Log.With("aggregate", "FlowAuthoring")
	return &flowAuthoringAggregate{
		deps: deps,
		flowVersions: NewVersionManager(VersionManagerDeps[types.Flow, *types.Flow]{
			Base: deps.Base, Repo: deps.Flows, Name: "Flow",
		}),
		stepVersions: NewVersionManager(VersionManagerDeps[types.FlowStep, *types.FlowStep]{
			Base: deps.Base, Repo: deps.Steps, Name: "FlowStep",
		}),
		componentVersions: NewVersionManager(VersionManagerDeps[types.FlowStepComponent, *types.FlowStepComponent]{
			Base: deps.Base, Repo: deps.Components, Name: "FlowStepComponent",
		}),
	}
}

func (a *flowAuthoringAggregate) Contract() domainagg.Contract {
	return domainagg.FlowAuthoringAggregateContract
}

const (
	titleMinLen       = 3
	titleMaxLen       = 200
	descriptionMinLen = 10
	descriptionMaxLen = 2000
	priorityMin       = 0
	priorityMax       = 10
)

func validateTitle(op, title string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	if n < titleMinLen || n > titleMaxLen {
		return domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("title must be %d-%d characters", titleMinLen, titleMaxLen), nil)
	}
	return nil
}

func validateDescription(op, desc string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(desc))
	if n < descriptionMinLen || n > descriptionMaxLen {
		return domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("description must be %d-%d characters", descriptionMinLen, descriptionMaxLen), nil)
	}
	return nil
}

func validatePriority(op string, p int) error {
	if p < priorityMin || p > priorityMax {
		return domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("priority must be in [%d,%d]", priorityMin, priorityMax), nil)
	}
	return nil
}

func validateComponentSettings(op string, s flows.ComponentSettings) error {
	if v, ok := s.Float(flows.SettingPassThreshold); ok && (v < 0 || v > 100) {
		return domainagg.NewError(domainagg.CodeValidation, op, "pass_threshold must be in [0,100]", nil)
	}
	if v, ok := s.Int(flows.SettingMaxAttempts); ok && v < 0 {
		return domainagg.NewError(domainagg.CodeValidation, op, "max_attempts must be >= 0", nil)
	}
	return nil
}

func (a *flowAuthoringAggregate) CreateFlow(ctx context.Context, in domainagg.CreateFlowInput) (*flows.Flow, error) {
	const op = "Flows.Authoring.CreateFlow"
	if in.ActorID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing actor_id", nil)
	}
	if err := validateTitle(op, in.Title); err != nil {
		return nil, err
	}
	if err := validateDescription(op, in.Description); err != nil {
		return nil, err
	}
	if err := validatePriority(op, in.Priority); err != nil {
		return nil, err
	}
	if in.EstimatedDurationMinutes < 0 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "estimated duration must be >= 0", nil)
	}

	var out *flows.Flow
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		id := uuid.New()
		f := &flows.Flow{
			ID:                       id,
			Title:                    strings.TrimSpace(in.Title),
			Description:              strings.TrimSpace(in.Description),
			Category:                 strings.TrimSpace(in.Category),
			Tags:                     flows.EncodeTags(in.Tags),
			Status:                   flows.FlowStatusDraft,
			Priority:                 in.Priority,
			IsRequired:               in.IsRequired,
			EstimatedDurationMinutes: in.EstimatedDurationMinutes,
			Settings:                 flows.EncodeFlowSettings(in.Settings),
			CreatedByID:              in.ActorID,
		}
		f.InitFirst(id, a.deps.Base.Now())
		if _, err := a.deps.Flows.Create(dbc, []*flows.Flow{f}); err != nil {
			return err
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.deps.Base.Log.Info("flow created", "flow_id", out.ID, "actor_id", in.ActorID)
	return out, nil
}

func (a *flowAuthoringAggregate) UpdateFlowDraft(ctx context.Context, in domainagg.UpdateFlowDraftInput) (*flows.Flow, error) {
	const op = "Flows.Authoring.UpdateFlowDraft"
	if in.FlowVersionID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing flow_version_id", nil)
	}
	updates := map[string]any{}
	if in.Title != nil {
		if err := validateTitle(op, *in.Title); err != nil {
			return nil, err
		}
		updates["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		if err := validateDescription(op, *in.Description); err != nil {
			return nil, err
		}
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Priority != nil {
		if err := validatePriority(op, *in.Priority); err != nil {
			return nil, err
		}
		updates["priority"] = *in.Priority
	}
	if in.Category != nil {
		updates["category"] = strings.TrimSpace(*in.Category)
	}
	if in.Tags != nil {
		updates["tags"] = flows.EncodeTags(*in.Tags)
	}
	if in.IsRequired != nil {
		updates["is_required"] = *in.IsRequired
	}
	if in.EstimatedDurationMinutes != nil {
		if *in.EstimatedDurationMinutes < 0 {
			return nil, domainagg.NewError(domainagg.CodeValidation, op, "estimated duration must be >= 0", nil)
		}
		updates["estimated_duration_minutes"] = *in.EstimatedDurationMinutes
	}
	if in.Settings != nil {
		updates["settings"] = flows.EncodeFlowSettings(*in.Settings)
	}

	var out *flows.Flow
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		f, err := a.editableFlow(dbc, op, in.FlowVersionID)
		if err != nil {
			return err
		}
		if len(updates) > 0 {
			updates["updated_at"] = a.deps.Base.Now()
			ok, err := a.deps.Base.CASGuard.UpdateByRevision(dbc, a.deps.Flows.Table(), f.ID, f.Revision, updates)
			if err != nil {
				return err
			}
			if !ok {
				return domainagg.NewEntityError(domainagg.CodeConcurrentModification, op, f.ID.String(), "flow draft changed concurrently")
			}
		}
		out, err = a.deps.Flows.GetByID(dbc, f.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// editableFlow loads a flow version and rejects anything but an inactive draft.
func (a *flowAuthoringAggregate) editableFlow(dbc dbctx.Context, op string, flowVersionID uuid.UUID) (*flows.Flow, error) {
	f, err := a.deps.Flows.GetByID(dbc, flowVersionID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, domainagg.NewEntityError(domainagg.CodeNotFound, op, flowVersionID.String(), "flow version not found")
	}
	if !f.Editable() {
		return nil, domainagg.NewEntityError(domainagg.CodeImmutableVersion, op, f.ID.String(),
			fmt.Sprintf("flow version %d is %s and cannot be edited", f.Version, f.Status))
	}
	return f, nil
}

func (a *flowAuthoringAggregate) AddStep(ctx context.Context, in domainagg.AddStepInput) (*flows.FlowStep, error) {
	const op = "Flows.Authoring.AddStep"
	if in.FlowVersionID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing flow_version_id", nil)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > titleMaxLen {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "step title must be 1-200 characters", nil)
	}
	if in.EstimatedDurationMinutes < 0 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "estimated duration must be >= 0", nil)
	}

	var out *flows.FlowStep
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		f, err := a.editableFlow(dbc, op, in.FlowVersionID)
		if err != nil {
			return err
		}
		existing, err := a.deps.Steps.ListByFlowVersion(dbc, f.ID)
		if err != nil {
			return err
		}
		now := a.deps.Base.Now()
		id := uuid.New()
		step := &flows.FlowStep{
			ID:                       id,
			FlowVersionID:            f.ID,
			Sequence:                 lastStepSequence(existing) + 1,
			Title:                    title,
			Description:              strings.TrimSpace(in.Description),
			Status:                   flows.ContentStatusDraft,
			EstimatedDurationMinutes: in.EstimatedDurationMinutes,
		}
		step.InitFirst(id, now)
		if _, err := a.deps.Steps.Create(dbc, []*flows.FlowStep{step}); err != nil {
			return err
		}
		// The flow revision bump orders concurrent AddStep calls on one draft.
		ok, err := a.deps.Base.CASGuard.UpdateByRevision(dbc, a.deps.Flows.Table(), f.ID, f.Revision, map[string]any{
			"total_steps": len(existing) + 1,
			"updated_at":  now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domainagg.NewEntityError(domainagg.CodeConcurrentModification, op, f.ID.String(), "flow draft changed concurrently")
		}
		out = step
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *flowAuthoringAggregate) AddComponent(ctx context.Context, in domainagg.AddComponentInput) (*flows.FlowStepComponent, error) {
	const op = "Flows.Authoring.AddComponent"
	if in.StepVersionID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing step_version_id", nil)
	}
	typ, ok := flows.ParseComponentType(string(in.Type))
	if !ok {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown component type %q", in.Type), nil)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > titleMaxLen {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "component title must be 1-200 characters", nil)
	}
	settings := flows.ComponentSettings(in.Settings)
	if err := validateComponentSettings(op, settings); err != nil {
		return nil, err
	}

	var out *flows.FlowStepComponent
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		step, err := a.deps.Steps.GetByID(dbc, in.StepVersionID)
		if err != nil {
			return err
		}
		if step == nil {
			return domainagg.NewEntityError(domainagg.CodeNotFound, op, in.StepVersionID.String(), "step version not found")
		}
		if step.IsActive {
			return domainagg.NewEntityError(domainagg.CodeImmutableVersion, op, step.ID.String(), "step version is active and cannot be edited")
		}
		if _, err := a.editableFlow(dbc, op, step.FlowVersionID); err != nil {
			return err
		}
		existing, err := a.deps.Components.ListByStepVersions(dbc, []uuid.UUID{step.ID})
		if err != nil {
			return err
		}
		lastSeq := 0
		for _, c := range existing {
			if c.Sequence > lastSeq {
				lastSeq = c.Sequence
			}
		}
		now := a.deps.Base.Now()
		id := uuid.New()
		comp := &flows.FlowStepComponent{
			ID:            id,
			StepVersionID: step.ID,
			Type:          typ,
			Title:         title,
			Status:        flows.ContentStatusDraft,
			IsRequired:    in.IsRequired,
			Sequence:      lastSeq + 1,
			Settings:      flows.EncodeComponentSettings(settings),
		}
		comp.InitFirst(id, now)
		if _, err := a.deps.Components.Create(dbc, []*flows.FlowStepComponent{comp}); err != nil {
			return err
		}
		stepUpdates := map[string]any{
			"total_components": step.TotalComponents + 1,
			"updated_at":       now,
		}
		if comp.IsRequired {
			stepUpdates["required_components"] = step.RequiredComponents + 1
		}
		ok, err := a.deps.Base.CASGuard.UpdateByRevision(dbc, a.deps.Steps.Table(), step.ID, step.Revision, stepUpdates)
		if err != nil {
			return err
		}
		if !ok {
			return domainagg.NewEntityError(domainagg.CodeConcurrentModification, op, step.ID.String(), "step changed concurrently")
		}
		out = comp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func lastStepSequence(steps []*flows.FlowStep) int {
	last := 0
	for _, s := range steps {
		if s.Sequence > last {
			last = s.Sequence
		}
	}
	return last
}

func (a *flowAuthoringAggregate) ActivateFlowVersion(ctx context.Context, in domainagg.ActivateFlowVersionInput) (domainagg.ActivateFlowVersionResult, error) {
	const op = "Flows.Authoring.ActivateFlowVersion"
	var out domainagg.ActivateFlowVersionResult
	if in.FlowVersionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing flow_version_id", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = domainagg.ActivateFlowVersionResult{}
		f, err := a.deps.Flows.GetByID(dbc, in.FlowVersionID)
		if err != nil {
			return err
		}
		if f == nil {
			return domainagg.NewEntityError(domainagg.CodeNotFound, op, in.FlowVersionID.String(), "flow version not found")
		}
		if f.IsActive {
			out.Flow = f
			out.AlreadyActive = true
			out.ActivatedAt = f.UpdatedAt
			return nil
		}
		steps, err := a.deps.Steps.ListByFlowVersion(dbc, f.ID)
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			return domainagg.NewEntityError(domainagg.CodePreconditionFailed, op, f.ID.String(), "flow version has no steps")
		}
		stepIDs := make([]uuid.UUID, 0, len(steps))
		for _, s := range steps {
			stepIDs = append(stepIDs, s.ID)
		}
		comps, err := a.deps.Components.ListByStepVersions(dbc, stepIDs)
		if err != nil {
			return err
		}

		res, err := a.flowVersions.ActivateTx(dbc, f.ID, ActivateOptions{
			TargetUpdates:   map[string]any{"status": flows.FlowStatusActive, "total_steps": len(steps)},
			PreviousUpdates: map[string]any{"status": flows.FlowStatusInactive},
		})
		if err != nil {
			return err
		}
		contentOpts := ActivateOptions{
			TargetUpdates:   map[string]any{"status": flows.ContentStatusActive},
			PreviousUpdates: map[string]any{"status": flows.ContentStatusInactive},
		}
		for _, s := range steps {
			r, err := a.stepVersions.ActivateTx(dbc, s.ID, contentOpts)
			if err != nil {
				return err
			}
			if !r.AlreadyActive {
				out.StepsActivated++
			}
		}
		for _, c := range comps {
			r, err := a.componentVersions.ActivateTx(dbc, c.ID, contentOpts)
			if err != nil {
				return err
			}
			if !r.AlreadyActive {
				out.ComponentsActive++
			}
		}
		if res.PreviousVersionID != nil {
			// Steps/components dropped from the new version stay active otherwise.
			if err := a.deactivateTree(dbc, *res.PreviousVersionID); err != nil {
				return err
			}
		}

		if _, err := appendEvents(dbc, a.deps.Outbox, &events.FlowVersionActivated{
			Base:              events.NewBase(res.ActivatedAt),
			FlowOriginalID:    f.OriginalID,
			FlowVersionID:     f.ID,
			Version:           f.Version,
			PreviousVersionID: res.PreviousVersionID,
			ActorID:           in.ActorID,
		}); err != nil {
			return err
		}

		reloaded, err := a.deps.Flows.GetByID(dbc, f.ID)
		if err != nil {
			return err
		}
		out.Flow = reloaded
		out.PreviousVersionID = res.PreviousVersionID
		out.ActivatedAt = res.ActivatedAt
		return nil
	})
	if err != nil {
		return domainagg.ActivateFlowVersionResult{}, err
	}
	if !out.AlreadyActive {
		a.deps.Base.Log.Info("flow version activated",
			"flow_id", out.Flow.ID, "original_id", out.Flow.OriginalID, "version", out.Flow.Version,
			"steps", out.StepsActivated, "components", out.ComponentsActive, "actor_id", in.ActorID)
	}
	return out, nil
}

// deactivateTree clears is_active on every still-active step and component owned by flowVersionID.
func (a *flowAuthoringAggregate) deactivateTree(dbc dbctx.Context, flowVersionID uuid.UUID) error {
	const op = "Flows.Authoring.DeactivateTree"
	steps, err := a.deps.Steps.ListByFlowVersion(dbc, flowVersionID)
	if err != nil {
		return err
	}
	stepIDs := make([]uuid.UUID, 0, len(steps))
	for _, s := range steps {
		stepIDs = append(stepIDs, s.ID)
	}
	comps, err := a.deps.Components.ListByStepVersions(dbc, stepIDs)
	if err != nil {
		return err
	}
	now := a.deps.Base.Now()
	updates := func() map[string]any {
		return map[string]any{"is_active": false, "status": flows.ContentStatusInactive, "updated_at": now}
	}
	for _, s := range steps {
		if !s.IsActive {
			continue
		}
		ok, err := a.deps.Base.CASGuard.UpdateByRevision(dbc, a.deps.Steps.Table(), s.ID, s.Revision, updates())
		if err != nil {
			return err
		}
		if !ok {
			return domainagg.NewEntityError(domainagg.CodeConcurrentActivation, op, s.OriginalID.String(), "step changed during activation")
		}
	}
	for _, c := range comps {
		if !c.IsActive {
			continue
		}
		ok, err := a.deps.Base.CASGuard.UpdateByRevision(dbc, a.deps.Components.Table(), c.ID, c.Revision, updates())
		if err != nil {
			return err
		}
		if !ok {
			return domainagg.NewEntityError(domainagg.CodeConcurrentActivation, op, c.OriginalID.String(), "component changed during activation")
		}
	}
	return nil
}

func (a *flowAuthoringAggregate) CreateFlowDraft(ctx context.Context, in domainagg.CreateFlowDraftInput) (*flows.Flow, error) {
	const op = "Flows.Authoring.CreateFlowDraft"
	if in.FlowOriginalID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing flow original id", nil)
	}

	var out *flows.Flow
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		latest, err := a.deps.Flows.GetLatest(dbc, in.FlowOriginalID)
		if err != nil {
			return err
		}
		if latest == nil {
			return domainagg.NewEntityError(domainagg.CodeNotFound, op, in.FlowOriginalID.String(), "flow not found")
		}
		if latest.Editable() {
			return domainagg.NewEntityError(domainagg.CodePreconditionFailed, op, latest.ID.String(), "an unpublished draft already exists")
		}
		src, err := a.deps.Flows.GetActive(dbc, in.FlowOriginalID)
		if err != nil {
			return err
		}
		if src == nil {
			src = latest
		}

		draft, err := a.flowVersions.CopyVersionTx(dbc, src, func(f *flows.Flow) error {
			f.Status = flows.FlowStatusDraft
			if in.ActorID != uuid.Nil {
				f.CreatedByID = in.ActorID
			}
			return nil
		})
		if err != nil {
			return err
		}

		steps, err := a.deps.Steps.ListByFlowVersion(dbc, src.ID)
		if err != nil {
			return err
		}
		for _, s := range steps {
			newStep, err := a.stepVersions.CopyVersionTx(dbc, s, func(cp *flows.FlowStep) error {
				cp.FlowVersionID = draft.ID
				cp.Status = flows.ContentStatusDraft
				return nil
			})
			if err != nil {
				return err
			}
			comps, err := a.deps.Components.ListByStepVersions(dbc, []uuid.UUID{s.ID})
			if err != nil {
				return err
			}
			for _, c := range comps {
				if _, err := a.componentVersions.CopyVersionTx(dbc, c, func(cp *flows.FlowStepComponent) error {
					cp.StepVersionID = newStep.ID
					cp.Status = flows.ContentStatusDraft
					return nil
				}); err != nil {
					return err
				}
			}
		}
		out = draft
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.deps.Base.Log.Info("flow draft created", "flow_id", out.ID, "version", out.Version, "actor_id", in.ActorID)
	return out, nil
}

func (a *flowAuthoringAggregate) ArchiveFlow(ctx context.Context, in domainagg.ArchiveFlowInput) (*flows.Flow, error) {
	const op = "Flows.Authoring.ArchiveFlow"
	if in.FlowOriginalID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing flow original id", nil)
	}

	var out *flows.Flow
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		active, err := a.flowVersions.DeactivateTx(dbc, in.FlowOriginalID, map[string]any{"status": flows.FlowStatusArchived})
		if err != nil {
			return err
		}
		if active == nil {
			return domainagg.NewEntityError(domainagg.CodeNoActiveVersion, op, in.FlowOriginalID.String(), "flow has no active version")
		}
		if err := a.deactivateTree(dbc, active.ID); err != nil {
			return err
		}
		if _, err := appendEvents(dbc, a.deps.Outbox, &events.FlowArchived{
			Base:           events.NewBase(a.deps.Base.Now()),
			FlowOriginalID: active.OriginalID,
			FlowVersionID:  active.ID,
			ActorID:        in.ActorID,
		}); err != nil {
			return err
		}
		out, err = a.deps.Flows.GetByID(dbc, active.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
