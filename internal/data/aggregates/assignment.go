package aggregates

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/buddybot-backend/internal/data/repos"
	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/domain/events"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

type FlowAssignmentAggregateDeps struct {
	Base BaseDeps

	Flows       repos.FlowRepo
	Assignments repos.FlowAssignmentRepo
	Outbox      repos.OutboxRepo
}

type flowAssignmentAggregate struct {
	deps FlowAssignmentAggregateDeps
}

func NewFlowAssignmentAggregate(deps FlowAssignmentAggregateDeps) domainagg.FlowAssignmentAggregate {
	deps.Base = deps.Base.withDefaults()
	deps.Base.Log = deps.Base.Log.With("aggregate", "FlowAssignment")
	return &flowAssignmentAggregate{deps: deps}
}

func (a *flowAssignmentAggregate) Contract() domainagg.Contract {
	return domainagg.FlowAssignmentAggregateContract
}

func (a *flowAssignmentAggregate) AssignFlow(ctx context.Context, in domainagg.AssignFlowInput) (*flows.FlowAssignment, error) {
	const op = "Flows.Assignment.AssignFlow"
	if in.UserID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing user_id", nil)
	}
	if in.FlowID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing flow_id", nil)
	}
	if in.CreatedByID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing created_by_id", nil)
	}
	if in.BuddyID != nil && *in.BuddyID == in.UserID {
		return nil, domainagg.NewEntityError(domainagg.CodeValidation, op, in.UserID.String(), "buddy must differ from the assignee")
	}
	now := a.deps.Base.Now()
	if in.Deadline != nil && !in.Deadline.After(now) {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "deadline must be in the future", nil)
	}
	var buddyID *uuid.UUID
	if in.BuddyID != nil && *in.BuddyID != uuid.Nil {
		b := *in.BuddyID
		buddyID = &b
	}

	var out *flows.FlowAssignment
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		active, err := a.deps.Flows.GetActive(dbc, in.FlowID)
		if err != nil {
			return err
		}
		if active == nil {
			return domainagg.NewEntityError(domainagg.CodeNoActiveVersion, op, in.FlowID.String(), "flow has no active version")
		}
		existing, err := a.deps.Assignments.FindOpen(dbc, in.UserID, active.OriginalID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domainagg.NewEntityError(domainagg.CodeDuplicateAssignment, op, existing.ID.String(), "user already has an open assignment for this flow")
		}

		row := &flows.FlowAssignment{
			ID:             uuid.New(),
			UserID:         in.UserID,
			FlowVersionID:  active.ID,
			FlowOriginalID: active.OriginalID,
			AssignedByID:   in.CreatedByID,
			BuddyID:        buddyID,
			Notes:          strings.TrimSpace(in.Notes),
			Status:         flows.AssignmentAssigned,
			Revision:       1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if in.Deadline != nil {
			d := in.Deadline.UTC()
			row.Deadline = &d
		}
		if _, err := a.deps.Assignments.Create(dbc, []*flows.FlowAssignment{row}); err != nil {
			// The open-assignment unique index catches a racing AssignFlow.
			return asConcurrencyError(op, err, domainagg.CodeDuplicateAssignment, in.UserID.String(), "user already has an open assignment for this flow")
		}
		if _, err := appendEvents(dbc, a.deps.Outbox, &events.FlowAssigned{
			Base:           events.NewBase(now),
			AssignmentID:   row.ID,
			UserID:         row.UserID,
			FlowOriginalID: row.FlowOriginalID,
			FlowVersionID:  row.FlowVersionID,
			AssignedByID:   row.AssignedByID,
			BuddyID:        row.BuddyID,
			Deadline:       row.Deadline,
		}); err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.deps.Base.Log.Info("flow assigned",
		"assignment_id", out.ID, "user_id", out.UserID, "flow_version_id", out.FlowVersionID, "assigned_by_id", out.AssignedByID)
	return out, nil
}

func (a *flowAssignmentAggregate) CancelAssignment(ctx context.Context, in domainagg.CancelAssignmentInput) (*flows.FlowAssignment, error) {
	const op = "Flows.Assignment.CancelAssignment"
	if in.AssignmentID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing assignment_id", nil)
	}

	var out *flows.FlowAssignment
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		row, err := a.deps.Assignments.GetByID(dbc, in.AssignmentID)
		if err != nil {
			return err
		}
		if row == nil {
			return domainagg.NewEntityError(domainagg.CodeNotFound, op, in.AssignmentID.String(), "assignment not found")
		}
		if !row.Open() {
			return domainagg.NewTransitionError(op, row.ID.String(), fmt.Sprintf("%s -> cancelled", row.Status),
				fmt.Errorf("assignment is already %s", row.Status))
		}
		now := a.deps.Base.Now()
		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, row.TableName(), row.ID, flows.OpenAssignmentStatuses, map[string]any{
			"status":        flows.AssignmentCancelled,
			"cancelled_at":  now,
			"cancel_reason": strings.TrimSpace(in.Reason),
			"updated_at":    now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return domainagg.NewEntityError(domainagg.CodeConcurrentModification, op, row.ID.String(), "assignment changed concurrently")
		}
		if _, err := appendEvents(dbc, a.deps.Outbox, &events.FlowAssignmentCancelled{
			Base:         events.NewBase(now),
			AssignmentID: row.ID,
			UserID:       row.UserID,
			ActorID:      in.ActorID,
			Reason:       strings.TrimSpace(in.Reason),
		}); err != nil {
			return err
		}
		out, err = a.deps.Assignments.GetByID(dbc, row.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
