package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/http/response"
	"github.com/yungbote/buddybot-backend/internal/services"
)

type AssignmentHandler struct {
	assignment aggregates.FlowAssignmentAggregate
	progress   services.ProgressQueryService
}

func NewAssignmentHandler(assignment aggregates.FlowAssignmentAggregate, progress services.ProgressQueryService) *AssignmentHandler {
	return &AssignmentHandler{assignment: assignment, progress: progress}
}

type assignRequest struct {
	UserID   uuid.UUID  `json:"user_id"`
	FlowID   uuid.UUID  `json:"flow_id"`
	BuddyID  *uuid.UUID `json:"buddy_id"`
	Deadline *time.Time `json:"deadline"`
	Notes    string     `json:"notes"`
}

// POST /api/assignments
func (h *AssignmentHandler) Assign(c *gin.Context) {
	actor := requireActor(c)
	if actor == nil {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	asg, err := h.assignment.AssignFlow(c.Request.Context(), aggregates.AssignFlowInput{
		UserID:      req.UserID,
		FlowID:      req.FlowID,
		CreatedByID: actor.UserID,
		BuddyID:     req.BuddyID,
		Deadline:    req.Deadline,
		Notes:       req.Notes,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"assignment": asg})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// POST /api/assignments/:id/cancel
func (h *AssignmentHandler) Cancel(c *gin.Context) {
	actor := requireActor(c)
	if actor == nil {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req cancelRequest
	// the body is optional
	_ = c.ShouldBindJSON(&req)
	asg, err := h.assignment.CancelAssignment(c.Request.Context(), aggregates.CancelAssignmentInput{
		AssignmentID: id,
		ActorID:      actor.UserID,
		Reason:       req.Reason,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"assignment": asg})
}

// GET /api/assignments/:id/progress
func (h *AssignmentHandler) GetProgress(c *gin.Context) {
	actor := requireActor(c)
	if actor == nil {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	view, err := h.progress.GetAssignmentProgress(dbcFrom(c), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if !actor.IsAdmin() && view.Assignment.UserID != actor.UserID {
		response.RespondError(c, http.StatusForbidden, "forbidden", errors.New("assignment belongs to another user"))
		return
	}
	response.RespondOK(c, gin.H{"progress": view})
}

// GET /api/me/assignments
func (h *AssignmentHandler) ListMine(c *gin.Context) {
	actor := requireActor(c)
	if actor == nil {
		return
	}
	list, err := h.progress.ListUserAssignments(dbcFrom(c), actor.UserID, intQuery(c, "limit", 50))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"assignments": list})
}
