package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/http/response"
	"github.com/yungbote/buddybot-backend/internal/pkg/ctxutil"
	"github.com/yungbote/buddybot-backend/internal/services"
)

type FlowHandler struct {
	authoring aggregates.FlowAuthoringAggregate
	query     services.FlowQueryService
}

func NewFlowHandler(authoring aggregates.FlowAuthoringAggregate, query services.FlowQueryService) *FlowHandler {
	return &FlowHandler{authoring: authoring, query: query}
}

type createFlowRequest struct {
	Title                    string              `json:"title"`
	Description              string              `json:"description"`
	Category                 string              `json:"category"`
	Tags                     []string            `json:"tags"`
	Priority                 int                 `json:"priority"`
	IsRequired               bool                `json:"is_required"`
	EstimatedDurationMinutes int                 `json:"estimated_duration_minutes"`
	Settings                 *flows.FlowSettings `json:"settings"`
}

// POST /api/flows
func (h *FlowHandler) CreateFlow(c *gin.Context) {
	actor := requireActor(c)
	if actor == nil {
		return
	}
	var req createFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	settings := flows.DefaultFlowSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}
	flow, err := h.authoring.CreateFlow(c.Request.Context(), aggregates.CreateFlowInput{
		ActorID:                  actor.UserID,
		Title:                    req.Title,
		Description:              req.Description,
		Category:                 req.Category,
		Tags:                     req.Tags,
		Priority:                 req.Priority,
		IsRequired:               req.IsRequired,
		EstimatedDurationMinutes: req.EstimatedDurationMinutes,
		Settings:                 settings,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"flow": flow})
}

type updateDraftRequest struct {
	Title                    *string             `json:"title"`
	Description              *string             `json:"description"`
	Category                 *string             `json:"category"`
	Tags                     *[]string           `json:"tags"`
	Priority                 *int                `json:"priority"`
	IsRequired               *bool               `json:"is_required"`
	EstimatedDurationMinutes *int                `json:"estimated_duration_minutes"`
	Settings                 *flows.FlowSettings `json:"settings"`
}

// PATCH /api/flow-versions/:id
func (h *FlowHandler) UpdateDraft(c *gin.Context) {
	actor := requireActor(c)
	if actor == nil {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	flow, err := h.authoring.UpdateFlowDraft(c.Request.Context(), aggregates.UpdateFlowDraftInput{
		FlowVersionID:            id,
		ActorID:                  actor.UserID,
		Title:                    req.Title,
		Description:              req.Description,
		Category:                 req.Category,
		Tags:                     req.Tags,
		Priority:                 req.Priority,
		IsRequired:               req.IsRequired,
		EstimatedDurationMinutes: req.EstimatedDurationMinutes,
		Settings:                 req.Settings,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"flow": flow})
}

type addStepRequest struct {
	Title                    string `json:"title"`
	Description              string `json:"description"`
	EstimatedDurationMinutes int    `json:"estimated_duration_minutes"`
}

// POST /api/flow-versions/:id/steps
func (h *FlowHandler) AddStep(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req addStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	step, err := h.authoring.AddStep(c.Request.Context(), aggregates.AddStepInput{
		FlowVersionID:            id,
		Title:                    req.Title,
		Description:              req.Description,
		EstimatedDurationMinutes: req.EstimatedDurationMinutes,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"step": step})
}

type addComponentRequest struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	IsRequired *bool          `json:"is_required"`
	Settings   map[string]any `json:"settings"`
}

// POST /api/flow-steps/:id/components
func (h *FlowHandler) AddComponent(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req addComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	typ, known := flows.ParseComponentType(req.Type)
	if !known {
		response.RespondError(c, http.StatusBadRequest, string(aggregates.CodeValidation), errors.New("unknown component type"))
		return
	}
	required := true
	if req.IsRequired != nil {
		required = *req.IsRequired
	}
	comp, err := h.authoring.AddComponent(c.Request.Context(), aggregates.AddComponentInput{
		StepVersionID: id,
		Type:          typ,
		Title:         req.Title,
		IsRequired:    required,
		Settings:      req.Settings,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"component": comp})
}

// POST /api/flow-versions/:id/activate
func (h *FlowHandler) Activate(c *gin.Context) {
	actor := requireActor(c)
	if actor == nil {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	res, err := h.authoring.ActivateFlowVersion(c.Request.Context(), aggregates.ActivateFlowVersionInput{
		FlowVersionID: id,
		ActorID:       actor.UserID,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"flow":                res.Flow,
		"previous_version_id": res.PreviousVersionID,
		"already_active":      res.AlreadyActive,
		"steps_activated":     res.StepsActivated,
		"components_active":   res.ComponentsActive,
		"activated_at":        res.ActivatedAt,
	})
}

// POST /api/flows/:id/drafts
func (h *FlowHandler) CreateDraft(c *gin.Context) {
	actor := requireActor(c)
	if actor == nil {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	draft, err := h.authoring.CreateFlowDraft(c.Request.Context(), aggregates.CreateFlowDraftInput{
		FlowOriginalID: id,
		ActorID:        actor.UserID,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"flow": draft})
}

// POST /api/flows/:id/archive
func (h *FlowHandler) Archive(c *gin.Context) {
	actor := requireActor(c)
	if actor == nil {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	flow, err := h.authoring.ArchiveFlow(c.Request.Context(), aggregates.ArchiveFlowInput{
		FlowOriginalID: id,
		ActorID:        actor.UserID,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"flow": flow})
}

// GET /api/flows/:id/versions?after=&limit=
func (h *FlowHandler) ListVersions(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	after := intQuery(c, "after", 0)
	limit := intQuery(c, "limit", 50)
	versions, err := h.query.ListFlowVersions(dbcFrom(c), id, after, limit)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	next := 0
	if len(versions) > 0 && len(versions) == limit {
		next = versions[len(versions)-1].Version
	}
	response.RespondOK(c, gin.H{"versions": versions, "next_after": next})
}

// GET /api/flows/:id/active
func (h *FlowHandler) GetActive(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	actor := ctxutil.GetActor(c.Request.Context())
	tree, err := h.query.GetActiveFlow(dbcFrom(c), id, actor.IsAdmin())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"flow": tree})
}

// GET /api/flow-versions/:id
func (h *FlowHandler) GetVersion(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	tree, err := h.query.GetFlowVersion(dbcFrom(c), id, true)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"flow": tree})
}

// GET /api/flows?category=
func (h *FlowHandler) ListActive(c *gin.Context) {
	list, err := h.query.ListActiveFlows(dbcFrom(c), c.Query("category"), intQuery(c, "limit", 100))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"flows": list})
}
