package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/http/response"
	"github.com/yungbote/buddybot-backend/internal/services"
)

type ProgressHandler struct {
	progress aggregates.FlowProgressAggregate
	query    services.ProgressQueryService
}

func NewProgressHandler(progress aggregates.FlowProgressAggregate, query services.ProgressQueryService) *ProgressHandler {
	return &ProgressHandler{progress: progress, query: query}
}

type interactionRequest struct {
	Interaction      string         `json:"interaction"`
	Score            *float64       `json:"score"`
	MaxScore         *float64       `json:"max_score"`
	Answers          map[string]any `json:"answers"`
	TimeSpentMinutes int            `json:"time_spent_minutes"`
	Data             map[string]any `json:"data"`
}

// POST /api/assignments/:id/components/:componentId/interactions
func (h *ProgressHandler) RecordInteraction(c *gin.Context) {
	actor := requireActor(c)
	if actor == nil {
		return
	}
	assignmentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	componentID, ok := uuidParam(c, "componentId")
	if !ok {
		return
	}
	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	it, known := flows.ParseInteractionType(req.Interaction)
	if !known {
		response.RespondError(c, http.StatusBadRequest, string(aggregates.CodeValidation), errors.New("unknown interaction"))
		return
	}

	asg, err := h.query.GetAssignment(dbcFrom(c), assignmentID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	// only the learner moves their own progress
	if asg.UserID != actor.UserID {
		response.RespondError(c, http.StatusForbidden, "forbidden", errors.New("assignment belongs to another user"))
		return
	}

	res, err := h.progress.RecordInteraction(c.Request.Context(), aggregates.RecordInteractionInput{
		AssignmentID:     assignmentID,
		ComponentID:      componentID,
		ActorID:          actor.UserID,
		Interaction:      it,
		Score:            req.Score,
		MaxScore:         req.MaxScore,
		Answers:          req.Answers,
		TimeSpentMinutes: req.TimeSpentMinutes,
		Data:             req.Data,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"progress":            res.Progress,
		"preview":             res.Preview,
		"step_completed":      res.StepCompleted,
		"flow_percent_before": res.FlowPercentBefore,
		"flow_percent_after":  res.FlowPercentAfter,
		"assignment_status":   res.AssignmentStatus,
		"events":              res.EmittedEvents,
	})
}
