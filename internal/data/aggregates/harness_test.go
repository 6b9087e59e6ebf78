package aggregates_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/buddybot-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/buddybot-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/buddybot-backend/internal/data/repos"
	repotest "github.com/yungbote/buddybot-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

type harness struct {
	db    *gorm.DB
	repos repos.Set
	hooks *aggtest.HooksRecorder
	base  aggregates.BaseDeps

	authoring  domainagg.FlowAuthoringAggregate
	assignment domainagg.FlowAssignmentAggregate
	progress   domainagg.FlowProgressAggregate

	admin uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	h := &harness{
		db:    db,
		repos: repos.NewSet(db, log),
		hooks: &aggtest.HooksRecorder{},
		admin: uuid.New(),
	}
	h.base = aggregates.BaseDeps{DB: db, Log: log, Hooks: h.hooks}
	h.rebuild()
	return h
}

// rebuild recreates the aggregates after h.base changed.
func (h *harness) rebuild() {
	h.authoring = aggregates.NewFlowAuthoringAggregate(aggregates.FlowAuthoringAggregateDeps{
		Base:       h.base,
		Flows:      h.repos.Flows,
		Steps:      h.repos.Steps,
		Components: h.repos.Components,
		Outbox:     h.repos.Outbox,
	})
	h.assignment = aggregates.NewFlowAssignmentAggregate(aggregates.FlowAssignmentAggregateDeps{
		Base:        h.base,
		Flows:       h.repos.Flows,
		Assignments: h.repos.Assignments,
		Outbox:      h.repos.Outbox,
	})
	h.progress = aggregates.NewFlowProgressAggregate(aggregates.FlowProgressAggregateDeps{
		Base:        h.base,
		Flows:       h.repos.Flows,
		Steps:       h.repos.Steps,
		Components:  h.repos.Components,
		Assignments: h.repos.Assignments,
		Progress:    h.repos.Progress,
		Outbox:      h.repos.Outbox,
	})
}

func (h *harness) dbc() dbctx.Context {
	return dbctx.Context{Ctx: context.Background()}
}

type componentSpec struct {
	typ      flows.ComponentType
	required bool
	settings map[string]any
}

type builtFlow struct {
	flow       *flows.Flow
	steps      []*flows.FlowStep
	components [][]*flows.FlowStepComponent
}

// draftFlow creates a draft with one step per entry of layout.
func (h *harness) draftFlow(t *testing.T, settings flows.FlowSettings, layout ...[]componentSpec) builtFlow {
	t.Helper()
	ctx := context.Background()
	f, err := h.authoring.CreateFlow(ctx, domainagg.CreateFlowInput{
		ActorID:     h.admin,
		Title:       "Onboarding basics",
		Description: "Everything a new hire needs in week one.",
		Category:    "onboarding",
		Tags:        []string{"week-1"},
		Settings:    settings,
	})
	if err != nil {
		t.Fatalf("CreateFlow: %v", err)
	}
	out := builtFlow{flow: f}
	for i, comps := range layout {
		step, err := h.authoring.AddStep(ctx, domainagg.AddStepInput{FlowVersionID: f.ID, Title: "Step"})
		if err != nil {
			t.Fatalf("AddStep %d: %v", i, err)
		}
		out.steps = append(out.steps, step)
		var built []*flows.FlowStepComponent
		for j, spec := range comps {
			c, err := h.authoring.AddComponent(ctx, domainagg.AddComponentInput{
				StepVersionID: step.ID,
				Type:          spec.typ,
				Title:         string(spec.typ),
				IsRequired:    spec.required,
				Settings:      spec.settings,
			})
			if err != nil {
				t.Fatalf("AddComponent %d/%d: %v", i, j, err)
			}
			built = append(built, c)
		}
		out.components = append(out.components, built)
	}
	return out
}

func (h *harness) activeFlow(t *testing.T, settings flows.FlowSettings, layout ...[]componentSpec) builtFlow {
	t.Helper()
	b := h.draftFlow(t, settings, layout...)
	res, err := h.authoring.ActivateFlowVersion(context.Background(), domainagg.ActivateFlowVersionInput{
		FlowVersionID: b.flow.ID,
		ActorID:       h.admin,
	})
	if err != nil {
		t.Fatalf("ActivateFlowVersion: %v", err)
	}
	b.flow = res.Flow
	return b
}

func (h *harness) assign(t *testing.T, userID uuid.UUID, flowOriginalID uuid.UUID) *flows.FlowAssignment {
	t.Helper()
	a, err := h.assignment.AssignFlow(context.Background(), domainagg.AssignFlowInput{
		UserID:      userID,
		FlowID:      flowOriginalID,
		CreatedByID: h.admin,
	})
	if err != nil {
		t.Fatalf("AssignFlow: %v", err)
	}
	return a
}

func (h *harness) interact(asg *flows.FlowAssignment, comp *flows.FlowStepComponent, it flows.InteractionType, opts ...func(*domainagg.RecordInteractionInput)) (domainagg.RecordInteractionResult, error) {
	in := domainagg.RecordInteractionInput{
		AssignmentID: asg.ID,
		ComponentID:  comp.ID,
		ActorID:      asg.UserID,
		Interaction:  it,
	}
	for _, o := range opts {
		o(&in)
	}
	return h.progress.RecordInteraction(context.Background(), in)
}

func (h *harness) mustInteract(t *testing.T, asg *flows.FlowAssignment, comp *flows.FlowStepComponent, it flows.InteractionType, opts ...func(*domainagg.RecordInteractionInput)) domainagg.RecordInteractionResult {
	t.Helper()
	res, err := h.interact(asg, comp, it, opts...)
	if err != nil {
		t.Fatalf("%s on %s: %v", it, comp.Type, err)
	}
	return res
}

func withScore(score float64) func(*domainagg.RecordInteractionInput) {
	return func(in *domainagg.RecordInteractionInput) { in.Score = &score }
}

func withMinutes(m int) func(*domainagg.RecordInteractionInput) {
	return func(in *domainagg.RecordInteractionInput) { in.TimeSpentMinutes = m }
}

func (h *harness) assignmentRow(t *testing.T, id uuid.UUID) *flows.FlowAssignment {
	t.Helper()
	row, err := h.repos.Assignments.GetByID(h.dbc(), id)
	if err != nil || row == nil {
		t.Fatalf("load assignment %s: row=%v err=%v", id, row, err)
	}
	return row
}

// eventCounts tallies outbox rows for aggregateID by event type.
func (h *harness) eventCounts(t *testing.T, aggregateID uuid.UUID) map[string]int {
	t.Helper()
	rows, err := h.repos.Outbox.ListByAggregate(h.dbc(), aggregateID)
	if err != nil {
		t.Fatalf("ListByAggregate: %v", err)
	}
	out := map[string]int{}
	for _, r := range rows {
		out[r.EventType]++
	}
	return out
}

func (h *harness) progressRows(t *testing.T, assignmentID uuid.UUID) []*flows.ComponentProgress {
	t.Helper()
	rows, err := h.repos.Progress.ListByAssignment(h.dbc(), assignmentID)
	if err != nil {
		t.Fatalf("ListByAssignment: %v", err)
	}
	return rows
}

func requireCode(t *testing.T, err error, code domainagg.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := domainagg.CodeOf(err); got != code {
		t.Fatalf("error code: want=%s got=%s (%v)", code, got, err)
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
