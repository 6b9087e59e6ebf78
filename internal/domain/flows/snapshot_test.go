package flows

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func snapshotFixture(sequential bool) (*Snapshot, []*FlowStepComponent) {
	flow := &Flow{ID: uuid.New(), Settings: EncodeFlowSettings(FlowSettings{RequireSequentialCompletion: sequential})}
	s1 := &FlowStep{ID: uuid.New(), Sequence: 1}
	s2 := &FlowStep{ID: uuid.New(), Sequence: 2}
	s3 := &FlowStep{ID: uuid.New(), Sequence: 3}
	comps := []*FlowStepComponent{
		{ID: uuid.New(), StepVersionID: s1.ID, Sequence: 2, IsRequired: true, Type: ComponentQuiz},
		{ID: uuid.New(), StepVersionID: s1.ID, Sequence: 1, IsRequired: true, Type: ComponentArticle},
		{ID: uuid.New(), StepVersionID: s2.ID, Sequence: 1, IsRequired: false, Type: ComponentLink},
		{ID: uuid.New(), StepVersionID: s3.ID, Sequence: 1, IsRequired: true, Type: ComponentTask},
		{ID: uuid.New(), StepVersionID: uuid.New(), Sequence: 1, IsRequired: true},
	}
	// Steps deliberately out of order.
	return NewSnapshot(flow, []*FlowStep{s3, s1, s2}, comps), comps
}

func TestNewSnapshotOrdersStepsAndComponents(t *testing.T) {
	snap, comps := snapshotFixture(false)
	if len(snap.Steps) != 3 || snap.Steps[0].Step.Sequence != 1 || snap.Steps[2].Step.Sequence != 3 {
		t.Fatalf("steps not ordered by sequence")
	}
	if got := snap.Steps[0].Components; len(got) != 2 || got[0].ID != comps[1].ID {
		t.Fatalf("step 1 components should be ordered by sequence: %+v", got)
	}
	if i, c := snap.Locate(comps[4].ID); i != -1 || c != nil {
		t.Fatalf("foreign component must not be located: %d", i)
	}
	if i, c := snap.Locate(comps[3].ID); i != 2 || c == nil {
		t.Fatalf("locate task: want=2 got=%d", i)
	}
}

func TestEvaluateSequentialLocking(t *testing.T) {
	snap, comps := snapshotFixture(true)
	rows := map[uuid.UUID]*ComponentProgress{}

	ev := snap.Evaluate(rows)
	if ev.RequiredTotal != 3 || ev.Percent() != 0 {
		t.Fatalf("fresh evaluation: %+v percent=%d", ev, ev.Percent())
	}
	if !ev.Unlocked(0) || ev.Unlocked(1) || ev.Unlocked(2) {
		t.Fatalf("only the first step should be unlocked")
	}
	if !ev.StepComplete(1) {
		t.Fatalf("a step without required components is complete")
	}

	now := time.Now()
	rows[comps[0].ID] = &ComponentProgress{Status: ProgressCompleted, CompletedAt: &now}
	rows[comps[1].ID] = &ComponentProgress{Status: ProgressCompleted, CompletedAt: &now}
	ev = snap.Evaluate(rows)
	if !ev.StepComplete(0) || !ev.Unlocked(1) || !ev.Unlocked(2) {
		t.Fatalf("completing step 1 should unlock steps 2 and 3")
	}
	if ev.Percent() != 67 {
		t.Fatalf("percent: want=67 got=%d", ev.Percent())
	}
	if ev.Complete() {
		t.Fatalf("flow is not complete yet")
	}
}

func TestEvaluateRetryCycleStillCounts(t *testing.T) {
	snap, comps := snapshotFixture(false)
	now := time.Now()
	rows := map[uuid.UUID]*ComponentProgress{
		comps[0].ID: {Status: ProgressInProgress, CompletedAt: &now},
		comps[1].ID: {Status: ProgressCompleted, CompletedAt: &now},
		comps[3].ID: {Status: ProgressCompleted, CompletedAt: &now},
	}
	ev := snap.Evaluate(rows)
	if !ev.Complete() || ev.Percent() != 100 {
		t.Fatalf("retried components keep counting: %+v", ev)
	}
	if !ev.Unlocked(2) {
		t.Fatalf("non-sequential flows never lock")
	}
}

func TestEvaluateNoRequiredComponents(t *testing.T) {
	snap := NewSnapshot(&Flow{}, nil, nil)
	ev := snap.Evaluate(nil)
	if ev.Percent() != 100 || !ev.Complete() {
		t.Fatalf("empty flow should report 100%%")
	}
}
