package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/buddybot-backend/internal/data/repos/testutil"
	types "github.com/yungbote/buddybot-backend/internal/domain"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

func newEvent(aggregateID uuid.UUID, name string, occurredAt time.Time) *types.OutboxEvent {
	return &types.OutboxEvent{
		ID:            uuid.New(),
		EventType:     name,
		AggregateID:   aggregateID,
		SchemaVersion: 1,
		Payload:       datatypes.JSON([]byte(`{"ok":true}`)),
		OccurredAt:    occurredAt,
		CreatedAt:     occurredAt,
		NextAttemptAt: occurredAt,
	}
}

func TestOutboxRepoClaimLifecycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewOutboxRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	// a fixed past clock keeps rows from other tests out of the claim window
	now := time.Date(2001, 3, 4, 9, 0, 0, 0, time.UTC)
	agg := uuid.New()
	early := newEvent(agg, "ComponentCompleted", now.Add(-2*time.Minute))
	late := newEvent(agg, "StepCompleted", now.Add(-time.Minute))
	future := newEvent(agg, "FlowCompleted", now.Add(-30*time.Second))
	future.NextAttemptAt = now.Add(time.Hour)

	created, err := repo.Create(dbc, []*types.OutboxEvent{early, late, future})
	if err != nil || len(created) != 3 {
		t.Fatalf("Create: rows=%d err=%v", len(created), err)
	}
	for _, ev := range created {
		if ev.Status != flows.OutboxPending {
			t.Fatalf("new events start pending: %s", ev.Status)
		}
	}

	lease := 30 * time.Second
	claimed, err := repo.ClaimDue(dbc, now, 10, lease)
	if err != nil {
		t.Fatalf("ClaimDue: %v", err)
	}
	if len(claimed) != 2 || claimed[0].ID != early.ID || claimed[1].ID != late.ID {
		t.Fatalf("claimed: want [early late] got %d rows", len(claimed))
	}
	for _, ev := range claimed {
		if ev.Attempts != 1 || !ev.NextAttemptAt.Equal(now.Add(lease)) {
			t.Fatalf("lease not applied: attempts=%d next=%s", ev.Attempts, ev.NextAttemptAt)
		}
	}

	// leased rows stay invisible until the lease expires
	again, err := repo.ClaimDue(dbc, now.Add(time.Second), 10, lease)
	if err != nil || len(again) != 0 {
		t.Fatalf("second claim within lease: rows=%d err=%v", len(again), err)
	}

	if err := repo.MarkDispatched(dbc, early.ID, now); err != nil {
		t.Fatalf("MarkDispatched: %v", err)
	}
	if err := repo.MarkAttemptFailed(dbc, late.ID, "bus unavailable", now.Add(5*time.Second), false); err != nil {
		t.Fatalf("MarkAttemptFailed: %v", err)
	}

	retried, err := repo.ClaimDue(dbc, now.Add(10*time.Second), 10, lease)
	if err != nil || len(retried) != 1 || retried[0].ID != late.ID || retried[0].Attempts != 2 {
		t.Fatalf("retry claim: rows=%d err=%v", len(retried), err)
	}
	if retried[0].LastError != "bus unavailable" {
		t.Fatalf("last error: %q", retried[0].LastError)
	}

	if err := repo.MarkAttemptFailed(dbc, late.ID, "gave up", now.Add(time.Hour), true); err != nil {
		t.Fatalf("MarkAttemptFailed(terminal): %v", err)
	}

	failed, err := repo.ListByStatus(dbc, flows.OutboxFailed, 10)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if !containsEvent(failed, late.ID) {
		t.Fatalf("terminal failure not listed")
	}
	dispatched, err := repo.ListByStatus(dbc, flows.OutboxDispatched, 1000)
	if err != nil || !containsEvent(dispatched, early.ID) {
		t.Fatalf("dispatched not listed: err=%v", err)
	}

	all, err := repo.ListByAggregate(dbc, agg)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListByAggregate: rows=%d err=%v", len(all), err)
	}
	if all[0].EventType != "ComponentCompleted" || all[2].EventType != "FlowCompleted" {
		t.Fatalf("ListByAggregate order: %s .. %s", all[0].EventType, all[2].EventType)
	}
	for _, ev := range all {
		switch ev.ID {
		case early.ID:
			if ev.Status != flows.OutboxDispatched || ev.DispatchedAt == nil || ev.LastError != "" {
				t.Fatalf("dispatched row: %+v", ev)
			}
		case late.ID:
			if ev.Status != flows.OutboxFailed || ev.LastError != "gave up" {
				t.Fatalf("failed row: %+v", ev)
			}
		case future.ID:
			if ev.Status != flows.OutboxPending || ev.Attempts != 0 {
				t.Fatalf("future row touched: %+v", ev)
			}
		}
	}
}

func TestOutboxRepoClaimRespectsLimit(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewOutboxRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	now := time.Date(2001, 3, 4, 9, 0, 0, 0, time.UTC)
	agg := uuid.New()
	var rows []*types.OutboxEvent
	for i := 0; i < 5; i++ {
		rows = append(rows, newEvent(agg, "FlowAssigned", now.Add(-time.Duration(5-i)*time.Second)))
	}
	if _, err := repo.Create(dbc, rows); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := repo.ClaimDue(dbc, now, 2, time.Minute)
	if err != nil || len(first) != 2 {
		t.Fatalf("first claim: rows=%d err=%v", len(first), err)
	}
	second, err := repo.ClaimDue(dbc, now, 10, time.Minute)
	if err != nil || len(second) != 3 {
		t.Fatalf("second claim: rows=%d err=%v", len(second), err)
	}
	for _, ev := range second {
		if ev.ID == first[0].ID || ev.ID == first[1].ID {
			t.Fatalf("event %s claimed twice", ev.ID)
		}
	}
}

func containsEvent(rows []*types.OutboxEvent, id uuid.UUID) bool {
	for _, r := range rows {
		if r.ID == id {
			return true
		}
	}
	return false
}
