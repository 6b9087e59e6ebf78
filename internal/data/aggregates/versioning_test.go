package aggregates_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/buddybot-backend/internal/data/aggregates"
	"github.com/yungbote/buddybot-backend/internal/data/repos"
	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

// staleFlowRepo hands out rows whose revision no longer matches the stored
// one, as if another writer committed between our read and our compare-and-set.
type staleFlowRepo struct {
	repos.FlowRepo
	staleID uuid.UUID
}

func (r staleFlowRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*flows.Flow, error) {
	row, err := r.FlowRepo.GetByID(dbc, id)
	if row != nil && id == r.staleID {
		row.Revision++
	}
	return row, err
}

func (h *harness) flowVersions(repo repos.FlowRepo) *aggregates.VersionManager[flows.Flow, *flows.Flow] {
	return aggregates.NewVersionManager(aggregates.VersionManagerDeps[flows.Flow, *flows.Flow]{
		Base: h.base,
		Repo: repo,
		Name: "Flow",
	})
}

func collectHistory(t *testing.T, vm *aggregates.VersionManager[flows.Flow, *flows.Flow], originalID uuid.UUID) []*flows.Flow {
	t.Helper()
	var out []*flows.Flow
	for f, err := range vm.History(context.Background(), originalID) {
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		out = append(out, f)
	}
	return out
}

func activeCount(versions []*flows.Flow) int {
	n := 0
	for _, v := range versions {
		if v.IsActive {
			n++
		}
	}
	return n
}

func TestVersionManagerCreateActivateAndRollback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.activeFlow(t, flows.DefaultFlowSettings(), articleAndQuiz())
	vm := h.flowVersions(h.repos.Flows)

	v2, err := vm.CreateNewVersion(ctx, b.flow.OriginalID, func(f *flows.Flow) error {
		f.Title = "Onboarding basics, revised"
		return nil
	})
	if err != nil {
		t.Fatalf("CreateNewVersion: %v", err)
	}
	if v2.Version != 2 || v2.IsActive || v2.OriginalID != b.flow.OriginalID || v2.ID == b.flow.ID {
		t.Fatalf("new version meta: %+v", v2.Meta)
	}
	if v2.Title != "Onboarding basics, revised" {
		t.Fatalf("mutate not applied: %q", v2.Title)
	}

	res, err := vm.Activate(ctx, v2.ID)
	if err != nil {
		t.Fatalf("Activate v2: %v", err)
	}
	if res.PreviousVersionID == nil || *res.PreviousVersionID != b.flow.ID || res.Version != 2 {
		t.Fatalf("activation result: %+v", res)
	}
	active, err := vm.GetActive(ctx, b.flow.OriginalID)
	if err != nil || active.ID != v2.ID {
		t.Fatalf("GetActive: want=%s got=%v err=%v", v2.ID, active, err)
	}

	again, err := vm.Activate(ctx, v2.ID)
	if err != nil || !again.AlreadyActive {
		t.Fatalf("re-activation should be a no-op: %+v err=%v", again, err)
	}

	if _, err := vm.Activate(ctx, b.flow.ID); err != nil {
		t.Fatalf("rollback to v1: %v", err)
	}
	history := collectHistory(t, vm, b.flow.OriginalID)
	if len(history) != 2 || history[0].Version != 1 || history[1].Version != 2 {
		t.Fatalf("history order: %d entries", len(history))
	}
	if activeCount(history) != 1 || !history[0].IsActive {
		t.Fatalf("exactly v1 should be active after rollback")
	}
	if history[0].Revision < 3 {
		t.Fatalf("every activation flip bumps the revision: got=%d", history[0].Revision)
	}
}

func TestVersionManagerHistoryIsRestartable(t *testing.T) {
	h := newHarness(t)
	b := h.activeFlow(t, flows.DefaultFlowSettings(), articleAndQuiz())
	vm := h.flowVersions(h.repos.Flows)
	for i := 0; i < 3; i++ {
		if _, err := vm.CreateNewVersion(context.Background(), b.flow.OriginalID, nil); err != nil {
			t.Fatalf("CreateNewVersion %d: %v", i, err)
		}
	}
	first := collectHistory(t, vm, b.flow.OriginalID)
	second := collectHistory(t, vm, b.flow.OriginalID)
	if len(first) != 4 || len(second) != 4 {
		t.Fatalf("history lengths: %d %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Version != i+1 {
			t.Fatalf("history mismatch at %d", i)
		}
	}

	// stopping early is allowed
	n := 0
	for range vm.History(context.Background(), b.flow.OriginalID) {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("early break: n=%d", n)
	}
}

func TestVersionManagerLostActivationRaceRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.activeFlow(t, flows.DefaultFlowSettings(), articleAndQuiz())
	v2, err := h.flowVersions(h.repos.Flows).CreateNewVersion(ctx, b.flow.OriginalID, nil)
	if err != nil {
		t.Fatalf("CreateNewVersion: %v", err)
	}

	vm := h.flowVersions(staleFlowRepo{FlowRepo: h.repos.Flows, staleID: v2.ID})
	_, err = vm.Activate(ctx, v2.ID)
	requireCode(t, err, domainagg.CodeConcurrentActivation)

	history := collectHistory(t, vm, b.flow.OriginalID)
	if activeCount(history) != 1 || history[0].ID != b.flow.ID || !history[0].IsActive {
		t.Fatalf("losing activation must leave v1 active")
	}
	stored, err := h.repos.Flows.GetByID(h.dbc(), v2.ID)
	if err != nil || stored == nil || stored.IsActive {
		t.Fatalf("v2 must stay inactive: %+v err=%v", stored, err)
	}
	if h.hooks.RaceCount() == 0 {
		t.Fatalf("conflict hook not called")
	}
}

func TestVersionManagerErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	vm := h.flowVersions(h.repos.Flows)

	_, err := vm.GetActive(ctx, uuid.New())
	requireCode(t, err, domainagg.CodeNoActiveVersion)

	_, err = vm.Activate(ctx, uuid.New())
	requireCode(t, err, domainagg.CodeNotFound)

	_, err = vm.CreateNewVersion(ctx, uuid.New(), nil)
	requireCode(t, err, domainagg.CodeNotFound)

	b := h.draftFlow(t, flows.DefaultFlowSettings())
	_, err = vm.GetActive(ctx, b.flow.OriginalID)
	requireCode(t, err, domainagg.CodeNoActiveVersion)
}
