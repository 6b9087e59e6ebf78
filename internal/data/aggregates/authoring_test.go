package aggregates_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/domain/events"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/pointers"
)

func TestCreateFlowValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cases := []struct {
		name string
		in   domainagg.CreateFlowInput
	}{
		{"missing actor", domainagg.CreateFlowInput{Title: "Valid title", Description: "A long enough description."}},
		{"short title", domainagg.CreateFlowInput{ActorID: h.admin, Title: "ab", Description: "A long enough description."}},
		{"long title", domainagg.CreateFlowInput{ActorID: h.admin, Title: strings.Repeat("x", 201), Description: "A long enough description."}},
		{"short description", domainagg.CreateFlowInput{ActorID: h.admin, Title: "Valid title", Description: "short"}},
		{"priority", domainagg.CreateFlowInput{ActorID: h.admin, Title: "Valid title", Description: "A long enough description.", Priority: 11}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.authoring.CreateFlow(ctx, tc.in)
			requireCode(t, err, domainagg.CodeValidation)
		})
	}
}

func TestCreateFlowStartsDraftVersionOne(t *testing.T) {
	h := newHarness(t)
	b := h.draftFlow(t, flows.FlowSettings{MaxAttempts: 3})
	f := b.flow
	if f.Version != 1 || f.OriginalID != f.ID || f.IsActive || f.Status != flows.FlowStatusDraft {
		t.Fatalf("new flow meta: %+v status=%s", f.Meta, f.Status)
	}
	if got := f.FlowSettings(); got.MaxAttempts != 3 || got.RetryPolicy != flows.RetryPerComponent {
		t.Fatalf("settings: %+v", got)
	}
	if tags := flows.DecodeTags(f.Tags); len(tags) != 1 || tags[0] != "week-1" {
		t.Fatalf("tags: %v", tags)
	}
}

func TestUpdateFlowDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.draftFlow(t, flows.DefaultFlowSettings(), articleAndQuiz())

	updated, err := h.authoring.UpdateFlowDraft(ctx, domainagg.UpdateFlowDraftInput{
		FlowVersionID: b.flow.ID,
		ActorID:       h.admin,
		Title:         pointers.String("Onboarding essentials"),
		Priority:      pointers.Int(4),
	})
	if err != nil {
		t.Fatalf("UpdateFlowDraft: %v", err)
	}
	if updated.Title != "Onboarding essentials" || updated.Priority != 4 || updated.Description != b.flow.Description {
		t.Fatalf("partial update: %+v", updated)
	}

	_, err = h.authoring.UpdateFlowDraft(ctx, domainagg.UpdateFlowDraftInput{FlowVersionID: b.flow.ID, Title: pointers.String("x")})
	requireCode(t, err, domainagg.CodeValidation)

	if _, err := h.authoring.ActivateFlowVersion(ctx, domainagg.ActivateFlowVersionInput{FlowVersionID: b.flow.ID}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	_, err = h.authoring.UpdateFlowDraft(ctx, domainagg.UpdateFlowDraftInput{FlowVersionID: b.flow.ID, Title: pointers.String("Too late now")})
	requireCode(t, err, domainagg.CodeImmutableVersion)

	_, err = h.authoring.AddStep(ctx, domainagg.AddStepInput{FlowVersionID: b.flow.ID, Title: "Extra"})
	requireCode(t, err, domainagg.CodeImmutableVersion)

	_, err = h.authoring.AddComponent(ctx, domainagg.AddComponentInput{StepVersionID: b.steps[0].ID, Type: flows.ComponentVideo, Title: "Late"})
	requireCode(t, err, domainagg.CodeImmutableVersion)

	_, err = h.authoring.UpdateFlowDraft(ctx, domainagg.UpdateFlowDraftInput{FlowVersionID: uuid.New(), Title: pointers.String("Nobody home")})
	requireCode(t, err, domainagg.CodeNotFound)
}

func TestAddStepAndComponentMaintainCounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.draftFlow(t, flows.DefaultFlowSettings(),
		articleAndQuiz(),
		[]componentSpec{{typ: flows.ComponentLink, required: false}},
	)
	if b.steps[0].Sequence != 1 || b.steps[1].Sequence != 2 {
		t.Fatalf("step sequences: %d %d", b.steps[0].Sequence, b.steps[1].Sequence)
	}
	if b.components[0][1].Sequence != 2 {
		t.Fatalf("component sequence: %d", b.components[0][1].Sequence)
	}

	step, err := h.repos.Steps.GetByID(h.dbc(), b.steps[0].ID)
	if err != nil || step == nil {
		t.Fatalf("load step: %v", err)
	}
	if step.TotalComponents != 2 || step.RequiredComponents != 2 {
		t.Fatalf("step counts: total=%d required=%d", step.TotalComponents, step.RequiredComponents)
	}
	f, _ := h.repos.Flows.GetByID(h.dbc(), b.flow.ID)
	if f.TotalSteps != 2 {
		t.Fatalf("flow total_steps: %d", f.TotalSteps)
	}

	_, err = h.authoring.AddComponent(ctx, domainagg.AddComponentInput{StepVersionID: b.steps[0].ID, Type: "hologram", Title: "x"})
	requireCode(t, err, domainagg.CodeValidation)

	_, err = h.authoring.AddComponent(ctx, domainagg.AddComponentInput{
		StepVersionID: b.steps[0].ID,
		Type:          flows.ComponentQuiz,
		Title:         "Bad quiz",
		Settings:      map[string]any{flows.SettingPassThreshold: 140},
	})
	requireCode(t, err, domainagg.CodeValidation)
}

func TestAddComponentKeepsOptionalFlag(t *testing.T) {
	h := newHarness(t)
	b := h.draftFlow(t, flows.DefaultFlowSettings(), []componentSpec{
		{typ: flows.ComponentArticle, required: true},
		{typ: flows.ComponentLink, required: false},
	})
	optional := b.components[0][1]
	if optional.IsRequired {
		t.Fatalf("returned component flagged required")
	}
	stored, err := h.repos.Components.GetByID(h.dbc(), optional.ID)
	if err != nil || stored == nil {
		t.Fatalf("load component: %v", err)
	}
	if stored.IsRequired {
		t.Fatalf("optional component stored as required")
	}
	step, err := h.repos.Steps.GetByID(h.dbc(), b.steps[0].ID)
	if err != nil || step == nil {
		t.Fatalf("load step: %v", err)
	}
	if step.TotalComponents != 2 || step.RequiredComponents != 1 {
		t.Fatalf("step counts: total=%d required=%d", step.TotalComponents, step.RequiredComponents)
	}
}

func TestActivateFlowVersionRequiresSteps(t *testing.T) {
	h := newHarness(t)
	b := h.draftFlow(t, flows.DefaultFlowSettings())
	_, err := h.authoring.ActivateFlowVersion(context.Background(), domainagg.ActivateFlowVersionInput{FlowVersionID: b.flow.ID})
	requireCode(t, err, domainagg.CodePreconditionFailed)
}

func TestActivateFlowVersionCascadesToTree(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.draftFlow(t, flows.DefaultFlowSettings(), articleAndQuiz())

	res, err := h.authoring.ActivateFlowVersion(ctx, domainagg.ActivateFlowVersionInput{FlowVersionID: b.flow.ID, ActorID: h.admin})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if res.Flow.Status != flows.FlowStatusActive || !res.Flow.IsActive || res.StepsActivated != 1 || res.ComponentsActive != 2 {
		t.Fatalf("activation result: %+v", res)
	}
	for _, c := range b.components[0] {
		row, _ := h.repos.Components.GetByID(h.dbc(), c.ID)
		if row == nil || !row.IsActive || row.Status != flows.ContentStatusActive {
			t.Fatalf("component %s not activated", c.ID)
		}
	}
	again, err := h.authoring.ActivateFlowVersion(ctx, domainagg.ActivateFlowVersionInput{FlowVersionID: b.flow.ID})
	if err != nil || !again.AlreadyActive {
		t.Fatalf("second activation: %+v err=%v", again, err)
	}
	if got := h.eventCounts(t, b.flow.ID)[events.NameFlowVersionActivated]; got != 1 {
		t.Fatalf("activation events: want=1 got=%d", got)
	}
}

func TestCreateFlowDraftDeepCopiesAndSupersedes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	v1 := h.activeFlow(t, flows.DefaultFlowSettings(), articleAndQuiz())

	draft, err := h.authoring.CreateFlowDraft(ctx, domainagg.CreateFlowDraftInput{FlowOriginalID: v1.flow.OriginalID, ActorID: h.admin})
	if err != nil {
		t.Fatalf("CreateFlowDraft: %v", err)
	}
	if draft.Version != 2 || draft.Status != flows.FlowStatusDraft || draft.IsActive || draft.OriginalID != v1.flow.OriginalID {
		t.Fatalf("draft meta: %+v status=%s", draft.Meta, draft.Status)
	}

	_, err = h.authoring.CreateFlowDraft(ctx, domainagg.CreateFlowDraftInput{FlowOriginalID: v1.flow.OriginalID, ActorID: h.admin})
	requireCode(t, err, domainagg.CodePreconditionFailed)

	steps, err := h.repos.Steps.ListByFlowVersion(h.dbc(), draft.ID)
	if err != nil || len(steps) != 1 {
		t.Fatalf("copied steps: %d err=%v", len(steps), err)
	}
	s := steps[0]
	if s.ID == v1.steps[0].ID || s.OriginalID != v1.steps[0].OriginalID || s.Version != 2 || s.IsActive {
		t.Fatalf("copied step meta: %+v", s.Meta)
	}
	comps, err := h.repos.Components.ListByStepVersions(h.dbc(), []uuid.UUID{s.ID})
	if err != nil || len(comps) != 2 {
		t.Fatalf("copied components: %d err=%v", len(comps), err)
	}
	for i, c := range comps {
		if c.OriginalID != v1.components[0][i].OriginalID || c.Version != 2 || c.Status != flows.ContentStatusDraft {
			t.Fatalf("copied component %d: %+v", i, c)
		}
	}

	// The draft can grow before activation.
	extra, err := h.authoring.AddStep(ctx, domainagg.AddStepInput{FlowVersionID: draft.ID, Title: "Wrap-up"})
	if err != nil {
		t.Fatalf("AddStep on draft: %v", err)
	}
	if extra.Sequence != 2 {
		t.Fatalf("new step sequence: %d", extra.Sequence)
	}
	if _, err := h.authoring.AddComponent(ctx, domainagg.AddComponentInput{StepVersionID: extra.ID, Type: flows.ComponentSurvey, Title: "Feedback", IsRequired: true}); err != nil {
		t.Fatalf("AddComponent on draft: %v", err)
	}

	res, err := h.authoring.ActivateFlowVersion(ctx, domainagg.ActivateFlowVersionInput{FlowVersionID: draft.ID, ActorID: h.admin})
	if err != nil {
		t.Fatalf("activate draft: %v", err)
	}
	if res.PreviousVersionID == nil || *res.PreviousVersionID != v1.flow.ID {
		t.Fatalf("previous version: %v", res.PreviousVersionID)
	}
	old, _ := h.repos.Flows.GetByID(h.dbc(), v1.flow.ID)
	if old.IsActive || old.Status != flows.FlowStatusInactive {
		t.Fatalf("v1 should be inactive: active=%v status=%s", old.IsActive, old.Status)
	}
	oldStep, _ := h.repos.Steps.GetByID(h.dbc(), v1.steps[0].ID)
	if oldStep.IsActive || oldStep.Status != flows.ContentStatusInactive {
		t.Fatalf("v1 step should be inactive")
	}
	activeStep, _ := h.repos.Steps.GetActive(h.dbc(), v1.steps[0].OriginalID)
	if activeStep == nil || activeStep.ID != s.ID {
		t.Fatalf("copied step should be the active one")
	}

	// Roll back to v1.
	if _, err := h.authoring.ActivateFlowVersion(ctx, domainagg.ActivateFlowVersionInput{FlowVersionID: v1.flow.ID, ActorID: h.admin}); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	active, _ := h.repos.Flows.GetActive(h.dbc(), v1.flow.OriginalID)
	if active == nil || active.ID != v1.flow.ID || active.Status != flows.FlowStatusActive {
		t.Fatalf("v1 should be active again: %+v", active)
	}
	stale, _ := h.repos.Steps.GetByID(h.dbc(), extra.ID)
	if stale.IsActive {
		t.Fatalf("step only present in v2 must be deactivated on rollback")
	}
}

func TestArchiveFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.activeFlow(t, flows.DefaultFlowSettings(), articleAndQuiz())
	asg := h.assign(t, uuid.New(), b.flow.OriginalID)

	archived, err := h.authoring.ArchiveFlow(ctx, domainagg.ArchiveFlowInput{FlowOriginalID: b.flow.OriginalID, ActorID: h.admin})
	if err != nil {
		t.Fatalf("ArchiveFlow: %v", err)
	}
	if archived.IsActive || archived.Status != flows.FlowStatusArchived {
		t.Fatalf("archived flow: active=%v status=%s", archived.IsActive, archived.Status)
	}

	_, err = h.assignment.AssignFlow(ctx, domainagg.AssignFlowInput{UserID: uuid.New(), FlowID: b.flow.OriginalID, CreatedByID: h.admin})
	requireCode(t, err, domainagg.CodeNoActiveVersion)

	_, err = h.authoring.ArchiveFlow(ctx, domainagg.ArchiveFlowInput{FlowOriginalID: b.flow.OriginalID})
	requireCode(t, err, domainagg.CodeNoActiveVersion)

	// Existing assignments keep working against their snapshot.
	h.mustInteract(t, asg, b.components[0][0], flows.InteractionStartReading)
}
