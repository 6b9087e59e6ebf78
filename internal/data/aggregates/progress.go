package aggregates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/buddybot-backend/internal/data/repos"
	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/domain/events"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

type FlowProgressAggregateDeps struct {
	Base BaseDeps

	Flows       repos.FlowRepo
	Steps       repos.FlowStepRepo
	Components  repos.FlowComponentRepo
	Assignments repos.FlowAssignmentRepo
	Progress    repos.ComponentProgressRepo
	Outbox      repos.OutboxRepo
}

type flowProgressAggregate struct {
	deps FlowProgressAggregateDeps
}

func NewFlowProgressAggregate(deps FlowProgressAggregateDeps) domainagg.FlowProgressAggregate {
	deps.Base = deps.Base.withDefaults()
	deps.Base.Log = deps.Base.Log.With("aggregate", "FlowProgress")
	return &flowProgressAggregate{deps: deps}
}

func (a *flowProgressAggregate) Contract() domainagg.Contract {
	return domainagg.FlowProgressAggregateContract
}

func (a *flowProgressAggregate) RecordInteraction(ctx context.Context, in domainagg.RecordInteractionInput) (domainagg.RecordInteractionResult, error) {
	const op = "Flows.Progress.RecordInteraction"
	if in.AssignmentID == uuid.Nil {
		return domainagg.RecordInteractionResult{}, domainagg.NewError(domainagg.CodeValidation, op, "missing assignment_id", nil)
	}
	if in.ComponentID == uuid.Nil {
		return domainagg.RecordInteractionResult{}, domainagg.NewError(domainagg.CodeValidation, op, "missing component_id", nil)
	}
	interaction, ok := flows.ParseInteractionType(string(in.Interaction))
	if !ok {
		return domainagg.RecordInteractionResult{}, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("unknown interaction %q", in.Interaction), nil)
	}
	if in.TimeSpentMinutes < 0 {
		return domainagg.RecordInteractionResult{}, domainagg.NewError(domainagg.CodeValidation, op, "time_spent_minutes must be >= 0", nil)
	}
	if (in.Score != nil && *in.Score < 0) || (in.MaxScore != nil && *in.MaxScore < 0) {
		return domainagg.RecordInteractionResult{}, domainagg.NewError(domainagg.CodeValidation, op, "score and max_score must be >= 0", nil)
	}
	at := in.At
	if at.IsZero() {
		at = a.deps.Base.Now()
	}
	at = at.UTC()

	var out domainagg.RecordInteractionResult
	err := executeWriteRetrying(ctx, a.deps.Base, a.Contract(), op, domainagg.CodeConcurrentModification, in.ComponentID.String(),
		func(dbc dbctx.Context) error {
			res, err := a.record(dbc, op, in, interaction, at)
			if err != nil {
				return err
			}
			out = res
			return nil
		})
	a.deps.Base.Hooks.Interaction(interaction, aggregateErrorStatus(err))
	if err != nil {
		return domainagg.RecordInteractionResult{}, err
	}
	if out.StepCompleted || out.AssignmentStatus == flows.AssignmentCompleted {
		a.deps.Base.Log.Info("progress milestone",
			"assignment_id", in.AssignmentID,
			"component_id", in.ComponentID,
			"percent", out.FlowPercentAfter,
			"assignment_status", out.AssignmentStatus,
			"events", out.EmittedEvents,
		)
	}
	return out, nil
}

// record runs one attempt. It must not keep state between attempts.
func (a *flowProgressAggregate) record(dbc dbctx.Context, op string, in domainagg.RecordInteractionInput, interaction flows.InteractionType, at time.Time) (domainagg.RecordInteractionResult, error) {
	var out domainagg.RecordInteractionResult

	asg, err := a.deps.Assignments.GetByID(dbc, in.AssignmentID)
	if err != nil {
		return out, err
	}
	if asg == nil {
		return out, domainagg.NewEntityError(domainagg.CodeNotFound, op, in.AssignmentID.String(), "assignment not found")
	}
	if asg.Status == flows.AssignmentCancelled {
		return out, domainagg.NewTransitionError(op, asg.ID.String(), fmt.Sprintf("%s -> %s", asg.Status, interaction),
			errors.New("assignment is cancelled"))
	}

	snap, err := a.loadSnapshot(dbc, op, asg.FlowVersionID)
	if err != nil {
		return out, err
	}
	stepIdx, comp := snap.Locate(in.ComponentID)
	if comp == nil {
		return out, domainagg.NewEntityError(domainagg.CodeComponentNotInSnapshot, op, in.ComponentID.String(),
			"component is not part of the assigned flow version")
	}
	step := snap.Steps[stepIdx].Step

	rows, err := a.progressRows(dbc, asg.ID)
	if err != nil {
		return out, err
	}
	cur := rows[comp.ID]
	settings := snap.Settings()

	before := snap.Evaluate(rows)
	percentBefore := max(asg.ProgressPercent, before.Percent())
	out.FlowPercentBefore = percentBefore
	out.FlowPercentAfter = percentBefore
	out.AssignmentStatus = asg.Status

	if !before.Unlocked(stepIdx) {
		if interaction == flows.InteractionView {
			out.Preview = true
			out.Progress = cur
			return out, nil
		}
		return out, domainagg.NewEntityError(domainagg.CodeStepLocked, op, comp.ID.String(),
			fmt.Sprintf("step %d is locked until earlier steps are complete", step.Sequence))
	}

	// A step without required components is complete from the start; it only turns
	// stale once the whole flow is done.
	stepFinished := before.StepRequired[stepIdx] > 0 && before.StepComplete(stepIdx)
	if (stepFinished || asg.Status == flows.AssignmentCompleted) && interaction != flows.InteractionRetry && !cur.InRetryCycle() {
		return out, domainagg.NewEntityError(domainagg.CodeStaleInteraction, op, comp.ID.String(),
			"step is already complete")
	}

	cs := comp.ComponentSettings()
	tin := flows.TransitionInput{
		Interaction:   interaction,
		Status:        flows.ProgressNotStarted,
		ComponentType: comp.Type,
		Required:      comp.IsRequired,
		AllowSkipping: settings.AllowSkipping,
		RetryAllowed:  cs.RetryAllowed(settings),
		MaxAttempts:   cs.MaxAttempts(settings),
		PassThreshold: cs.PassThreshold(comp.Type),
	}
	if cur != nil {
		tin.Status = cur.Status
		tin.Attempts = cur.Attempts
	}
	var g grade
	if interaction == flows.InteractionSubmitQuizAnswer || interaction == flows.InteractionSubmitTaskAnswer {
		g = gradeSubmission(in, cs)
		if g.percent == nil && comp.Type.Scored() {
			return out, domainagg.NewEntityError(domainagg.CodeValidation, op, comp.ID.String(),
				"submission needs score or answers graded against an answer key")
		}
		tin.ScorePercent = g.percent
	}

	tr, err := flows.Apply(tin)
	if err != nil {
		var te *flows.TransitionError
		if errors.As(err, &te) {
			entity := comp.ID.String()
			if cur != nil {
				entity = cur.ID.String()
			}
			return out, domainagg.NewTransitionError(op, entity, te.Transition(), te)
		}
		return out, err
	}
	if !tr.Changed && in.TimeSpentMinutes == 0 && len(in.Data) == 0 {
		out.Progress = cur
		return out, nil
	}

	next, err := a.persistComponent(dbc, asg, comp, cur, tr, g, in, at)
	if err != nil {
		return out, err
	}
	rows[comp.ID] = next

	after := snap.Evaluate(rows)
	percentAfter := max(percentBefore, after.Percent())
	stepDone := !before.StepComplete(stepIdx) && after.StepComplete(stepIdx)
	flowDone := after.Complete() && asg.Status != flows.AssignmentCompleted

	status := asg.Status
	updates := map[string]any{}
	if percentAfter != asg.ProgressPercent {
		updates["progress_percent"] = percentAfter
	}
	if asg.Status == flows.AssignmentAssigned {
		status = flows.AssignmentInProgress
		updates["status"] = status
		updates["started_at"] = at
	}
	if flowDone {
		status = flows.AssignmentCompleted
		updates["status"] = status
		updates["completed_at"] = at
	}
	// Completions always bump the assignment revision so two racing completions
	// cannot both derive the same step transition.
	if tr.Completed || tr.Skipped || len(updates) > 0 {
		ok, err := a.deps.Base.CASGuard.UpdateByRevision(dbc, asg.TableName(), asg.ID, asg.Revision, updates)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, ConflictError("assignment changed concurrently")
		}
	}

	var evs []events.Event
	if tr.Completed {
		evs = append(evs, &events.ComponentCompleted{
			Base:             events.NewBase(at),
			AssignmentID:     asg.ID,
			UserID:           asg.UserID,
			StepID:           step.ID,
			ComponentID:      comp.ID,
			ComponentType:    string(comp.Type),
			Score:            next.Score,
			MaxScore:         next.MaxScore,
			Passed:           tr.Passed || !tr.Scored,
			TimeSpentMinutes: next.TimeSpentMinutes,
			Attempts:         next.Attempts,
			ProgressBefore:   percentBefore,
			ProgressAfter:    percentAfter,
		})
	}
	if tr.Skipped {
		evs = append(evs, &events.ComponentSkipped{
			Base:           events.NewBase(at),
			AssignmentID:   asg.ID,
			UserID:         asg.UserID,
			StepID:         step.ID,
			ComponentID:    comp.ID,
			ProgressBefore: percentBefore,
			ProgressAfter:  percentAfter,
		})
	}
	if stepDone {
		evs = append(evs, &events.StepCompleted{
			Base:         events.NewBase(at),
			AssignmentID: asg.ID,
			UserID:       asg.UserID,
			StepID:       step.ID,
			Sequence:     step.Sequence,
		})
	}
	if settings.RequireSequentialCompletion {
		for i := stepIdx + 1; i < len(snap.Steps); i++ {
			if before.Unlocked(i) || !after.Unlocked(i) {
				continue
			}
			evs = append(evs, &events.StepUnlocked{
				Base:         events.NewBase(at),
				AssignmentID: asg.ID,
				UserID:       asg.UserID,
				StepID:       snap.Steps[i].Step.ID,
				Sequence:     snap.Steps[i].Step.Sequence,
			})
		}
	}
	if flowDone {
		evs = append(evs, &events.FlowCompleted{
			Base:          events.NewBase(at),
			AssignmentID:  asg.ID,
			UserID:        asg.UserID,
			FlowVersionID: asg.FlowVersionID,
			CompletedAt:   at,
		})
	}
	names, err := appendEvents(dbc, a.deps.Outbox, evs...)
	if err != nil {
		return out, err
	}

	out.Progress = next
	out.StepCompleted = stepDone
	out.FlowPercentAfter = percentAfter
	out.AssignmentStatus = status
	out.EmittedEvents = names
	return out, nil
}

func (a *flowProgressAggregate) loadSnapshot(dbc dbctx.Context, op string, flowVersionID uuid.UUID) (*flows.Snapshot, error) {
	flow, err := a.deps.Flows.GetByID(dbc, flowVersionID)
	if err != nil {
		return nil, err
	}
	if flow == nil {
		return nil, domainagg.NewEntityError(domainagg.CodeNotFound, op, flowVersionID.String(), "assigned flow version not found")
	}
	steps, err := a.deps.Steps.ListByFlowVersion(dbc, flow.ID)
	if err != nil {
		return nil, err
	}
	stepIDs := make([]uuid.UUID, 0, len(steps))
	for _, s := range steps {
		stepIDs = append(stepIDs, s.ID)
	}
	comps, err := a.deps.Components.ListByStepVersions(dbc, stepIDs)
	if err != nil {
		return nil, err
	}
	return flows.NewSnapshot(flow, steps, comps), nil
}

func (a *flowProgressAggregate) progressRows(dbc dbctx.Context, assignmentID uuid.UUID) (map[uuid.UUID]*flows.ComponentProgress, error) {
	list, err := a.deps.Progress.ListByAssignment(dbc, assignmentID)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*flows.ComponentProgress, len(list))
	for _, r := range list {
		out[r.ComponentID] = r
	}
	return out, nil
}

// persistComponent creates the progress row on first touch or CASes the existing one.
// A racing first touch surfaces as a unique violation and a lost CAS as a conflict;
// both make the caller retry.
func (a *flowProgressAggregate) persistComponent(
	dbc dbctx.Context,
	asg *flows.FlowAssignment,
	comp *flows.FlowStepComponent,
	cur *flows.ComponentProgress,
	tr flows.TransitionResult,
	g grade,
	in domainagg.RecordInteractionInput,
	at time.Time,
) (*flows.ComponentProgress, error) {
	if cur == nil {
		row := &flows.ComponentProgress{
			ID:               uuid.New(),
			AssignmentID:     asg.ID,
			ComponentID:      comp.ID,
			StepID:           comp.StepVersionID,
			UserID:           asg.UserID,
			Status:           tr.Status,
			Attempts:         tr.Attempts,
			TimeSpentMinutes: in.TimeSpentMinutes,
			Data:             flows.MergeData(nil, in.Data),
			Revision:         1,
			CreatedAt:        at,
			UpdatedAt:        at,
		}
		if tr.Started {
			row.StartedAt = &at
		}
		if tr.Completed {
			row.CompletedAt = &at
		}
		if tr.Scored {
			row.Score, row.MaxScore = g.score, g.max
		}
		if _, err := a.deps.Progress.Create(dbc, row); err != nil {
			return nil, err
		}
		return row, nil
	}

	updates := map[string]any{
		"status":             tr.Status,
		"attempts":           tr.Attempts,
		"time_spent_minutes": cur.TimeSpentMinutes + in.TimeSpentMinutes,
	}
	if len(in.Data) > 0 {
		updates["data"] = flows.MergeData(cur.Data, in.Data)
	}
	if tr.Started && cur.StartedAt == nil {
		updates["started_at"] = at
	}
	if tr.ResetScore {
		updates["score"] = nil
		updates["max_score"] = nil
	}
	if tr.Scored {
		updates["score"] = g.score
		updates["max_score"] = g.max
	}
	if tr.Completed {
		updates["completed_at"] = at
	}
	ok, err := a.deps.Base.CASGuard.UpdateByRevision(dbc, cur.TableName(), cur.ID, cur.Revision, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ConflictError("component progress changed concurrently")
	}
	return a.deps.Progress.GetByAssignmentAndComponent(dbc, asg.ID, comp.ID)
}

type grade struct {
	percent *float64
	score   *float64
	max     *float64
}

// gradeSubmission prefers a caller-supplied score; otherwise answers are graded
// against the component answer key.
func gradeSubmission(in domainagg.RecordInteractionInput, cs flows.ComponentSettings) grade {
	if in.Score != nil {
		score := *in.Score
		pct := flows.NormalizeScore(score, in.MaxScore)
		g := grade{percent: &pct, score: &score}
		if in.MaxScore != nil {
			m := *in.MaxScore
			g.max = &m
		}
		return g
	}
	key := cs.Map(flows.SettingAnswerKey)
	if len(key) == 0 || in.Answers == nil {
		return grade{}
	}
	matched, total := flows.ScoreAnswers(key, in.Answers)
	pct := flows.NormalizeScore(matched, &total)
	return grade{percent: &pct, score: &matched, max: &total}
}
