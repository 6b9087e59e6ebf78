package services

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/buddybot-backend/internal/data/repos"
	types "github.com/yungbote/buddybot-backend/internal/domain"
	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

type ComponentState struct {
	ComponentID      uuid.UUID            `json:"component_id"`
	OriginalID       uuid.UUID            `json:"original_id"`
	Type             flows.ComponentType  `json:"type"`
	Title            string               `json:"title"`
	Sequence         int                  `json:"sequence"`
	Required         bool                 `json:"required"`
	Status           flows.ProgressStatus `json:"status"`
	Attempts         int                  `json:"attempts"`
	TimeSpentMinutes int                  `json:"time_spent_minutes"`
	Score            *float64             `json:"score,omitempty"`
	MaxScore         *float64             `json:"max_score,omitempty"`
	StartedAt        *time.Time           `json:"started_at,omitempty"`
	CompletedAt      *time.Time           `json:"completed_at,omitempty"`
}

type StepState struct {
	StepID        uuid.UUID        `json:"step_id"`
	OriginalID    uuid.UUID        `json:"original_id"`
	Title         string           `json:"title"`
	Sequence      int              `json:"sequence"`
	Locked        bool             `json:"locked"`
	Complete      bool             `json:"complete"`
	RequiredTotal int              `json:"required_total"`
	RequiredDone  int              `json:"required_done"`
	Components    []ComponentState `json:"components"`
}

// AssignmentProgress is the derived view of one assignment against its bound version.
type AssignmentProgress struct {
	Assignment       *types.FlowAssignment `json:"assignment"`
	FlowTitle        string                `json:"flow_title"`
	FlowVersion      int                   `json:"flow_version"`
	ProgressPercent  int                   `json:"progress_percent"`
	Complete         bool                  `json:"complete"`
	RequiredTotal    int                   `json:"required_total"`
	RequiredDone     int                   `json:"required_done"`
	TimeSpentMinutes int                   `json:"time_spent_minutes"`
	Steps            []StepState           `json:"steps"`
}

type ProgressQueryService interface {
	GetAssignment(dbc dbctx.Context, assignmentID uuid.UUID) (*types.FlowAssignment, error)
	GetAssignmentProgress(dbc dbctx.Context, assignmentID uuid.UUID) (*AssignmentProgress, error)
	ListUserAssignments(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.FlowAssignment, error)
}

type progressQueryService struct {
	db          *gorm.DB
	log         *logger.Logger
	flows       repos.FlowRepo
	steps       repos.FlowStepRepo
	components  repos.FlowComponentRepo
	assignments repos.FlowAssignmentRepo
	progress    repos.ComponentProgressRepo
}

func NewProgressQueryService(db *gorm.DB, baseLog *logger.Logger, set repos.Set) ProgressQueryService {
	return &progressQueryService{
		db:          db,
		log:         baseLog.With("service", "ProgressQueryService"),
		flows:       set.Flows,
		steps:       set.Steps,
		components:  set.Components,
		assignments: set.Assignments,
		progress:    set.Progress,
	}
}

func (s *progressQueryService) GetAssignment(dbc dbctx.Context, assignmentID uuid.UUID) (*types.FlowAssignment, error) {
	const op = "Services.ProgressQuery.GetAssignment"
	if assignmentID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "assignment_id is required", nil)
	}
	asg, err := s.assignments.GetByID(dbc, assignmentID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if asg == nil {
		return nil, domainagg.NewEntityError(domainagg.CodeNotFound, op, assignmentID.String(), "assignment not found")
	}
	return asg, nil
}

func (s *progressQueryService) GetAssignmentProgress(dbc dbctx.Context, assignmentID uuid.UUID) (*AssignmentProgress, error) {
	const op = "Services.ProgressQuery.GetAssignmentProgress"
	if assignmentID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "assignment_id is required", nil)
	}
	asg, err := s.assignments.GetByID(dbc, assignmentID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if asg == nil {
		return nil, domainagg.NewEntityError(domainagg.CodeNotFound, op, assignmentID.String(), "assignment not found")
	}
	snap, err := loadTree(dbc, s.flows, s.steps, s.components, asg.FlowVersionID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if snap == nil {
		return nil, domainagg.NewEntityError(domainagg.CodeNotFound, op, asg.FlowVersionID.String(), "assigned flow version not found")
	}
	list, err := s.progress.ListByAssignment(dbc, asg.ID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	rows := make(map[uuid.UUID]*types.ComponentProgress, len(list))
	for _, r := range list {
		rows[r.ComponentID] = r
	}
	return buildAssignmentProgress(asg, snap, rows), nil
}

func buildAssignmentProgress(asg *types.FlowAssignment, snap *flows.Snapshot, rows map[uuid.UUID]*types.ComponentProgress) *AssignmentProgress {
	ev := snap.Evaluate(rows)
	out := &AssignmentProgress{
		Assignment:    asg,
		FlowTitle:     snap.Flow.Title,
		FlowVersion:   snap.Flow.Version,
		RequiredTotal: ev.RequiredTotal,
		RequiredDone:  ev.RequiredDone,
		Complete:      ev.Complete() || asg.Status == flows.AssignmentCompleted,
		Steps:         make([]StepState, 0, len(snap.Steps)),
	}
	// the stored percent never goes down, so it wins over a recomputation
	out.ProgressPercent = max(asg.ProgressPercent, ev.Percent())

	for i, st := range snap.Steps {
		ss := StepState{
			StepID:        st.Step.ID,
			OriginalID:    st.Step.OriginalID,
			Title:         st.Step.Title,
			Sequence:      st.Step.Sequence,
			Locked:        !ev.Unlocked(i),
			Complete:      ev.StepComplete(i),
			RequiredTotal: ev.StepRequired[i],
			RequiredDone:  ev.StepRequiredDone[i],
			Components:    make([]ComponentState, 0, len(st.Components)),
		}
		for _, c := range st.Components {
			cs := ComponentState{
				ComponentID: c.ID,
				OriginalID:  c.OriginalID,
				Type:        c.Type,
				Title:       c.Title,
				Sequence:    c.Sequence,
				Required:    c.IsRequired,
				Status:      flows.ProgressNotStarted,
			}
			if p := rows[c.ID]; p != nil {
				cs.Status = p.Status
				cs.Attempts = p.Attempts
				cs.TimeSpentMinutes = p.TimeSpentMinutes
				cs.Score = p.Score
				cs.MaxScore = p.MaxScore
				cs.StartedAt = p.StartedAt
				cs.CompletedAt = p.CompletedAt
				out.TimeSpentMinutes += p.TimeSpentMinutes
			}
			ss.Components = append(ss.Components, cs)
		}
		out.Steps = append(out.Steps, ss)
	}
	return out
}

func (s *progressQueryService) ListUserAssignments(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.FlowAssignment, error) {
	const op = "Services.ProgressQuery.ListUserAssignments"
	if userID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "user_id is required", nil)
	}
	out, err := s.assignments.ListByUser(dbc, userID, limit)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	return out, nil
}
