package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/buddybot-backend/internal/domain"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
)

// SeedFlow inserts a flow version row. A nil originalID starts a new logical flow.
func SeedFlow(tb testing.TB, ctx context.Context, tx *gorm.DB, originalID uuid.UUID, version int, active bool) *types.Flow {
	tb.Helper()
	id := uuid.New()
	if originalID == uuid.Nil {
		originalID = id
	}
	now := time.Now().UTC()
	f := &types.Flow{
		ID:          id,
		Title:       "Onboarding",
		Description: "Welcome to the team",
		Status:      flows.FlowStatusDraft,
		Tags:        flows.EncodeTags([]string{"onboarding"}),
		Settings:    flows.EncodeFlowSettings(flows.DefaultFlowSettings()),
		CreatedByID: uuid.New(),
	}
	f.InitNext(originalID, version-1, now)
	if active {
		f.IsActive = true
		f.Status = flows.FlowStatusActive
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed flow: %v", err)
	}
	return f
}

func SeedStep(tb testing.TB, ctx context.Context, tx *gorm.DB, flowVersionID uuid.UUID, sequence int) *types.FlowStep {
	tb.Helper()
	id := uuid.New()
	s := &types.FlowStep{
		ID:            id,
		FlowVersionID: flowVersionID,
		Sequence:      sequence,
		Title:         "Step",
		Status:        flows.ContentStatusDraft,
	}
	s.InitFirst(id, time.Now().UTC())
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed step: %v", err)
	}
	return s
}

func SeedComponent(tb testing.TB, ctx context.Context, tx *gorm.DB, stepVersionID uuid.UUID, sequence int, typ flows.ComponentType, required bool) *types.FlowStepComponent {
	tb.Helper()
	id := uuid.New()
	c := &types.FlowStepComponent{
		ID:            id,
		StepVersionID: stepVersionID,
		Type:          typ,
		Title:         string(typ),
		Status:        flows.ContentStatusDraft,
		IsRequired:    required,
		Sequence:      sequence,
		Settings:      flows.EncodeComponentSettings(nil),
	}
	c.InitFirst(id, time.Now().UTC())
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed component: %v", err)
	}
	return c
}

func SeedAssignment(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, flow *types.Flow, status flows.AssignmentStatus) *types.FlowAssignment {
	tb.Helper()
	now := time.Now().UTC()
	a := &types.FlowAssignment{
		ID:             uuid.New(),
		UserID:         userID,
		FlowVersionID:  flow.ID,
		FlowOriginalID: flow.OriginalID,
		AssignedByID:   uuid.New(),
		Status:         status,
		Revision:       1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed assignment: %v", err)
	}
	return a
}
