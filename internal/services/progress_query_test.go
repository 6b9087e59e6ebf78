package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/buddybot-backend/internal/data/repos"
	repotest "github.com/yungbote/buddybot-backend/internal/data/repos/testutil"
	types "github.com/yungbote/buddybot-backend/internal/domain"
	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

func sequentialFlow() *types.Flow {
	f := &types.Flow{ID: uuid.New(), Title: "Security basics"}
	f.Version = 2
	f.Settings = flows.EncodeFlowSettings(flows.FlowSettings{RequireSequentialCompletion: true})
	return f
}

func TestBuildAssignmentProgressLocksLaterSteps(t *testing.T) {
	flow := sequentialFlow()
	s1 := &types.FlowStep{ID: uuid.New(), FlowVersionID: flow.ID, Sequence: 1, Title: "Read"}
	s2 := &types.FlowStep{ID: uuid.New(), FlowVersionID: flow.ID, Sequence: 2, Title: "Quiz"}
	article := &types.FlowStepComponent{ID: uuid.New(), StepVersionID: s1.ID, Type: flows.ComponentArticle, IsRequired: true, Sequence: 1}
	link := &types.FlowStepComponent{ID: uuid.New(), StepVersionID: s1.ID, Type: flows.ComponentLink, IsRequired: false, Sequence: 2}
	quiz := &types.FlowStepComponent{ID: uuid.New(), StepVersionID: s2.ID, Type: flows.ComponentQuiz, IsRequired: true, Sequence: 1}
	snap := flows.NewSnapshot(flow, []*types.FlowStep{s2, s1}, []*types.FlowStepComponent{quiz, link, article})

	asg := &types.FlowAssignment{ID: uuid.New(), FlowVersionID: flow.ID, Status: flows.AssignmentInProgress}
	started := time.Now().UTC()
	rows := map[uuid.UUID]*types.ComponentProgress{
		article.ID: {ComponentID: article.ID, Status: flows.ProgressInProgress, Attempts: 1, TimeSpentMinutes: 6, StartedAt: &started},
	}

	got := buildAssignmentProgress(asg, snap, rows)
	if got.FlowTitle != "Security basics" || got.FlowVersion != 2 {
		t.Fatalf("flow header: %+v", got)
	}
	if got.ProgressPercent != 0 || got.RequiredTotal != 2 || got.RequiredDone != 0 || got.Complete {
		t.Fatalf("totals: %+v", got)
	}
	if len(got.Steps) != 2 || got.Steps[0].StepID != s1.ID {
		t.Fatalf("steps out of order")
	}
	if got.Steps[0].Locked || !got.Steps[1].Locked {
		t.Fatalf("lock state: step1=%v step2=%v", got.Steps[0].Locked, got.Steps[1].Locked)
	}
	comps := got.Steps[0].Components
	if len(comps) != 2 || comps[0].ComponentID != article.ID || comps[0].Status != flows.ProgressInProgress || comps[0].Attempts != 1 {
		t.Fatalf("article state: %+v", comps)
	}
	if comps[1].Status != flows.ProgressNotStarted {
		t.Fatalf("untouched component should read not_started: %s", comps[1].Status)
	}
	if got.TimeSpentMinutes != 6 {
		t.Fatalf("time spent: %d", got.TimeSpentMinutes)
	}

	done := started.Add(time.Minute)
	rows[article.ID].Status = flows.ProgressCompleted
	rows[article.ID].CompletedAt = &done
	got = buildAssignmentProgress(asg, snap, rows)
	if got.ProgressPercent != 50 || !got.Steps[0].Complete || got.Steps[1].Locked {
		t.Fatalf("after article: percent=%d step1=%v step2 locked=%v", got.ProgressPercent, got.Steps[0].Complete, got.Steps[1].Locked)
	}
}

func TestBuildAssignmentProgressKeepsStoredPercent(t *testing.T) {
	flow := sequentialFlow()
	step := &types.FlowStep{ID: uuid.New(), FlowVersionID: flow.ID, Sequence: 1}
	quiz := &types.FlowStepComponent{ID: uuid.New(), StepVersionID: step.ID, Type: flows.ComponentQuiz, IsRequired: true, Sequence: 1}
	snap := flows.NewSnapshot(flow, []*types.FlowStep{step}, []*types.FlowStepComponent{quiz})

	asg := &types.FlowAssignment{ID: uuid.New(), Status: flows.AssignmentCompleted, ProgressPercent: 100}
	got := buildAssignmentProgress(asg, snap, map[uuid.UUID]*types.ComponentProgress{})
	if got.ProgressPercent != 100 || !got.Complete {
		t.Fatalf("stored completion must win: %+v", got)
	}
}

func TestGetAssignmentProgressFromStore(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	set := repos.NewSet(db, repotest.Logger(t))
	svc := NewProgressQueryService(db, repotest.Logger(t), set)
	dbc := dbctx.Context{Ctx: ctx}

	flow := repotest.SeedFlow(t, ctx, db, uuid.Nil, 1, true)
	step := repotest.SeedStep(t, ctx, db, flow.ID, 1)
	comp := repotest.SeedComponent(t, ctx, db, step.ID, 1, flows.ComponentVideo, true)
	userID := uuid.New()
	asg := repotest.SeedAssignment(t, ctx, db, userID, flow, flows.AssignmentInProgress)

	if _, err := set.Progress.Create(dbc, &types.ComponentProgress{
		AssignmentID: asg.ID,
		ComponentID:  comp.ID,
		StepID:       step.ID,
		UserID:       userID,
		Status:       flows.ProgressPaused,
		Attempts:     1,
	}); err != nil {
		t.Fatalf("seed progress: %v", err)
	}

	got, err := svc.GetAssignmentProgress(dbc, asg.ID)
	if err != nil {
		t.Fatalf("GetAssignmentProgress: %v", err)
	}
	if got.Assignment.ID != asg.ID || len(got.Steps) != 1 || len(got.Steps[0].Components) != 1 {
		t.Fatalf("shape: %+v", got)
	}
	if got.Steps[0].Components[0].Status != flows.ProgressPaused {
		t.Fatalf("component status: %s", got.Steps[0].Components[0].Status)
	}

	_, err = svc.GetAssignmentProgress(dbc, uuid.New())
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("unknown assignment: %v", err)
	}
	_, err = svc.GetAssignmentProgress(dbc, uuid.Nil)
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("nil assignment id: %v", err)
	}

	row, err := svc.GetAssignment(dbc, asg.ID)
	if err != nil || row.UserID != userID {
		t.Fatalf("GetAssignment: row=%v err=%v", row, err)
	}
	_, err = svc.GetAssignment(dbc, uuid.New())
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("GetAssignment unknown: %v", err)
	}

	list, err := svc.ListUserAssignments(dbc, userID, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListUserAssignments: rows=%d err=%v", len(list), err)
	}
}
