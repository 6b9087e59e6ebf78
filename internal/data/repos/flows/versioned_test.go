package flows

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/buddybot-backend/internal/data/repos/testutil"
	domainflows "github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

func TestFlowRepoVersions(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewFlowRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	v1 := testutil.SeedFlow(t, ctx, tx, uuid.Nil, 1, false)
	v2 := testutil.SeedFlow(t, ctx, tx, v1.OriginalID, 2, true)
	v3 := testutil.SeedFlow(t, ctx, tx, v1.OriginalID, 3, false)
	other := testutil.SeedFlow(t, ctx, tx, uuid.Nil, 1, true)

	if v1.OriginalID != v1.ID {
		t.Fatalf("first version should own the original id")
	}

	got, err := repo.GetByID(dbc, v2.ID)
	if err != nil || got == nil || got.Version != 2 {
		t.Fatalf("GetByID: row=%v err=%v", got, err)
	}
	if missing, err := repo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByID(missing): row=%v err=%v", missing, err)
	}

	active, err := repo.GetActive(dbc, v1.OriginalID)
	if err != nil || active == nil || active.ID != v2.ID {
		t.Fatalf("GetActive: row=%v err=%v", active, err)
	}
	latest, err := repo.GetLatest(dbc, v1.OriginalID)
	if err != nil || latest == nil || latest.ID != v3.ID {
		t.Fatalf("GetLatest: row=%v err=%v", latest, err)
	}
	maxV, err := repo.MaxVersion(dbc, v1.OriginalID)
	if err != nil || maxV != 3 {
		t.Fatalf("MaxVersion: got=%d err=%v", maxV, err)
	}
	if n, err := repo.MaxVersion(dbc, uuid.New()); err != nil || n != 0 {
		t.Fatalf("MaxVersion(unknown): got=%d err=%v", n, err)
	}

	page, err := repo.ListVersions(dbc, v1.OriginalID, 0, 2)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(page) != 2 || page[0].Version != 1 || page[1].Version != 2 {
		t.Fatalf("first page: %d rows", len(page))
	}
	page, err = repo.ListVersions(dbc, v1.OriginalID, page[1].Version, 2)
	if err != nil || len(page) != 1 || page[0].ID != v3.ID {
		t.Fatalf("second page: rows=%d err=%v", len(page), err)
	}

	byIDs, err := repo.GetByIDs(dbc, []uuid.UUID{v1.ID, other.ID})
	if err != nil || len(byIDs) != 2 {
		t.Fatalf("GetByIDs: rows=%d err=%v", len(byIDs), err)
	}

	listed, err := repo.ListActive(dbc, "", 200)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	seen := map[uuid.UUID]bool{}
	for _, f := range listed {
		seen[f.ID] = true
	}
	if !seen[v2.ID] || !seen[other.ID] || seen[v1.ID] || seen[v3.ID] {
		t.Fatalf("ListActive returned inactive versions")
	}

	if err := repo.UpdateFields(dbc, v3.ID, map[string]interface{}{"title": "Onboarding v3"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, _ = repo.GetByID(dbc, v3.ID)
	if got.Title != "Onboarding v3" {
		t.Fatalf("UpdateFields not applied: %+v", got)
	}
}

func TestFlowRepoCreateRequiresVersioning(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewFlowRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	if _, err := repo.Create(dbc, []*domainflows.Flow{{Title: "no meta"}}); err == nil {
		t.Fatalf("expected error for missing original_id")
	}
	rows, err := repo.Create(dbc, nil)
	if err != nil || len(rows) != 0 {
		t.Fatalf("Create(nil): rows=%d err=%v", len(rows), err)
	}
}

func TestStepAndComponentOrdering(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	log := testutil.Logger(t)
	steps := NewFlowStepRepo(db, log)
	components := NewFlowComponentRepo(db, log)
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	f := testutil.SeedFlow(t, ctx, tx, uuid.Nil, 1, false)
	s2 := testutil.SeedStep(t, ctx, tx, f.ID, 2)
	s1 := testutil.SeedStep(t, ctx, tx, f.ID, 1)
	testutil.SeedStep(t, ctx, tx, uuid.New(), 1)

	c12 := testutil.SeedComponent(t, ctx, tx, s1.ID, 2, domainflows.ComponentQuiz, true)
	c11 := testutil.SeedComponent(t, ctx, tx, s1.ID, 1, domainflows.ComponentArticle, true)
	c21 := testutil.SeedComponent(t, ctx, tx, s2.ID, 1, domainflows.ComponentLink, false)

	gotSteps, err := steps.ListByFlowVersion(dbc, f.ID)
	if err != nil {
		t.Fatalf("ListByFlowVersion: %v", err)
	}
	if len(gotSteps) != 2 || gotSteps[0].ID != s1.ID || gotSteps[1].ID != s2.ID {
		t.Fatalf("steps out of order: %d rows", len(gotSteps))
	}

	gotComps, err := components.ListByStepVersions(dbc, []uuid.UUID{s1.ID, s2.ID})
	if err != nil {
		t.Fatalf("ListByStepVersions: %v", err)
	}
	if len(gotComps) != 3 {
		t.Fatalf("components: want=3 got=%d", len(gotComps))
	}
	bySeq := map[uuid.UUID][]uuid.UUID{}
	for _, c := range gotComps {
		bySeq[c.StepVersionID] = append(bySeq[c.StepVersionID], c.ID)
	}
	if ids := bySeq[s1.ID]; len(ids) != 2 || ids[0] != c11.ID || ids[1] != c12.ID {
		t.Fatalf("step 1 components out of order")
	}
	if ids := bySeq[s2.ID]; len(ids) != 1 || ids[0] != c21.ID {
		t.Fatalf("step 2 components: %v", ids)
	}

	empty, err := components.ListByStepVersions(dbc, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("ListByStepVersions(nil): rows=%d err=%v", len(empty), err)
	}
}
