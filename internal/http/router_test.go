package http

import (
	"bytes"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/buddybot-backend/internal/data/aggregates"
	"github.com/yungbote/buddybot-backend/internal/data/repos"
	repotest "github.com/yungbote/buddybot-backend/internal/data/repos/testutil"
	httpH "github.com/yungbote/buddybot-backend/internal/http/handlers"
	httpMW "github.com/yungbote/buddybot-backend/internal/http/middleware"
	"github.com/yungbote/buddybot-backend/internal/observability"
	"github.com/yungbote/buddybot-backend/internal/pkg/ctxutil"
	"github.com/yungbote/buddybot-backend/internal/services"
)

const testSecret = "router-test-secret"

type apiClient struct {
	t      *testing.T
	engine *gin.Engine
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := repotest.DB(t)
	log := repotest.Logger(t)
	set := repos.NewSet(db, log)
	base := aggregates.BaseDeps{DB: db, Log: log}

	authoring := aggregates.NewFlowAuthoringAggregate(aggregates.FlowAuthoringAggregateDeps{
		Base: base, Flows: set.Flows, Steps: set.Steps, Components: set.Components, Outbox: set.Outbox,
	})
	assignment := aggregates.NewFlowAssignmentAggregate(aggregates.FlowAssignmentAggregateDeps{
		Base: base, Flows: set.Flows, Assignments: set.Assignments, Outbox: set.Outbox,
	})
	progress := aggregates.NewFlowProgressAggregate(aggregates.FlowProgressAggregateDeps{
		Base: base, Flows: set.Flows, Steps: set.Steps, Components: set.Components,
		Assignments: set.Assignments, Progress: set.Progress, Outbox: set.Outbox,
	})
	progressQuery := services.NewProgressQueryService(db, log, set)

	engine := NewRouter(RouterConfig{
		Log:               log,
		Metrics:           observability.New(),
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, testSecret),
		FlowHandler:       httpH.NewFlowHandler(authoring, services.NewFlowQueryService(db, log, set)),
		AssignmentHandler: httpH.NewAssignmentHandler(assignment, progressQuery),
		ProgressHandler:   httpH.NewProgressHandler(progress, progressQuery),
		HealthHandler:     httpH.NewHealthHandler(db),
	})
	return &apiClient{t: t, engine: engine}
}

func (a *apiClient) token(userID uuid.UUID, role string) string {
	a.t.Helper()
	tok, err := httpMW.SignActorToken(testSecret, userID, role, time.Hour)
	require.NoError(a.t, err)
	return tok
}

// do sends body as JSON and decodes the response into a generic map.
func (a *apiClient) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec.Code, out
}

func field(t *testing.T, m map[string]any, path ...string) any {
	t.Helper()
	var cur any = m
	for _, p := range path {
		obj, ok := cur.(map[string]any)
		require.Truef(t, ok, "path %v: %v is not an object", path, cur)
		cur = obj[p]
	}
	return cur
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	code, _ := field(t, body, "error", "code").(string)
	return code
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	api := newAPI(t)

	req := httptest.NewRequest(nethttp.MethodGet, "/healthcheck", nil)
	rec := httptest.NewRecorder()
	api.engine.ServeHTTP(rec, req)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req = httptest.NewRequest(nethttp.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	api.engine.ServeHTTP(rec, req)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ready"`)

	req = httptest.NewRequest(nethttp.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	api.engine.ServeHTTP(rec, req)
	require.Equal(t, nethttp.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "buddybot_api_requests_total")
}

func TestAuthAndRoles(t *testing.T) {
	api := newAPI(t)

	status, body := api.do(nethttp.MethodGet, "/api/flows", "", nil)
	require.Equal(t, nethttp.StatusUnauthorized, status)
	require.Equal(t, "unauthorized", errorCode(t, body))

	status, _ = api.do(nethttp.MethodGet, "/api/flows", "not-a-jwt", nil)
	require.Equal(t, nethttp.StatusUnauthorized, status)

	wrongKey, err := httpMW.SignActorToken("other-secret", uuid.New(), ctxutil.RoleAdmin, time.Hour)
	require.NoError(t, err)
	status, _ = api.do(nethttp.MethodGet, "/api/flows", wrongKey, nil)
	require.Equal(t, nethttp.StatusUnauthorized, status)

	expired, err := httpMW.SignActorToken(testSecret, uuid.New(), ctxutil.RoleAdmin, -time.Minute)
	require.NoError(t, err)
	status, _ = api.do(nethttp.MethodGet, "/api/flows", expired, nil)
	require.Equal(t, nethttp.StatusUnauthorized, status)

	learner := api.token(uuid.New(), ctxutil.RoleUser)
	status, body = api.do(nethttp.MethodGet, "/api/flows", learner, nil)
	require.Equal(t, nethttp.StatusOK, status)
	require.Contains(t, body, "flows")

	status, body = api.do(nethttp.MethodPost, "/api/flows", learner, map[string]any{"title": "Onboarding"})
	require.Equal(t, nethttp.StatusForbidden, status)
	require.Equal(t, "forbidden", errorCode(t, body))
}

func TestAuthoringValidationOverHTTP(t *testing.T) {
	api := newAPI(t)
	admin := api.token(uuid.New(), ctxutil.RoleAdmin)

	status, body := api.do(nethttp.MethodPost, "/api/flows", admin, map[string]any{
		"title": "x", "description": "Everything a new hire needs.",
	})
	require.Equal(t, nethttp.StatusBadRequest, status)
	require.Equal(t, "validation", errorCode(t, body))

	status, _ = api.do(nethttp.MethodPost, "/api/flow-versions/not-a-uuid/activate", admin, nil)
	require.Equal(t, nethttp.StatusBadRequest, status)

	status, body = api.do(nethttp.MethodPost, "/api/flow-versions/"+uuid.NewString()+"/activate", admin, nil)
	require.Equal(t, nethttp.StatusNotFound, status)
	require.Equal(t, "not_found", errorCode(t, body))

	status, body = api.do(nethttp.MethodGet, "/api/flows/"+uuid.NewString()+"/active", admin, nil)
	require.Equal(t, nethttp.StatusNotFound, status)
	require.Equal(t, "no_active_version", errorCode(t, body))

	status, _ = api.do(nethttp.MethodPost, "/api/flow-steps/"+uuid.NewString()+"/components", admin, map[string]any{
		"type": "hologram", "title": "Nope",
	})
	require.Equal(t, nethttp.StatusBadRequest, status)
}

func TestFlowLifecycleOverHTTP(t *testing.T) {
	api := newAPI(t)
	adminID, learnerID := uuid.New(), uuid.New()
	admin := api.token(adminID, ctxutil.RoleAdmin)
	learner := api.token(learnerID, ctxutil.RoleUser)
	stranger := api.token(uuid.New(), ctxutil.RoleUser)

	status, body := api.do(nethttp.MethodPost, "/api/flows", admin, map[string]any{
		"title":       "Engineering onboarding",
		"description": "Accounts, tooling and the first pull request.",
		"category":    "engineering",
		"tags":        []string{"week-1"},
	})
	require.Equal(t, nethttp.StatusCreated, status, body)
	flowID := field(t, body, "flow", "id").(string)
	originalID := field(t, body, "flow", "original_id").(string)
	require.Equal(t, "draft", field(t, body, "flow", "status"))

	status, body = api.do(nethttp.MethodPatch, "/api/flow-versions/"+flowID, admin, map[string]any{"priority": 4})
	require.Equal(t, nethttp.StatusOK, status, body)
	require.EqualValues(t, 4, field(t, body, "flow", "priority"))

	status, body = api.do(nethttp.MethodPost, "/api/flow-versions/"+flowID+"/steps", admin, map[string]any{"title": "Accounts"})
	require.Equal(t, nethttp.StatusCreated, status, body)
	stepID := field(t, body, "step", "id").(string)

	status, body = api.do(nethttp.MethodPost, "/api/flow-steps/"+stepID+"/components", admin, map[string]any{
		"type": "link", "title": "Request laptop",
	})
	require.Equal(t, nethttp.StatusCreated, status, body)
	componentID := field(t, body, "component", "id").(string)
	require.Equal(t, true, field(t, body, "component", "is_required"))

	status, body = api.do(nethttp.MethodPost, "/api/flow-versions/"+flowID+"/activate", admin, nil)
	require.Equal(t, nethttp.StatusOK, status, body)
	require.Equal(t, false, field(t, body, "already_active"))
	require.EqualValues(t, 1, field(t, body, "steps_activated"))

	status, body = api.do(nethttp.MethodPatch, "/api/flow-versions/"+flowID, admin, map[string]any{"priority": 5})
	require.Equal(t, nethttp.StatusConflict, status)
	require.Equal(t, "immutable_version", errorCode(t, body))

	status, body = api.do(nethttp.MethodGet, "/api/flows/"+originalID+"/active", learner, nil)
	require.Equal(t, nethttp.StatusOK, status, body)
	require.Equal(t, flowID, field(t, body, "flow", "id"))

	status, body = api.do(nethttp.MethodPost, "/api/assignments", admin, map[string]any{
		"user_id": learnerID, "flow_id": originalID, "notes": "welcome aboard",
	})
	require.Equal(t, nethttp.StatusCreated, status, body)
	assignmentID := field(t, body, "assignment", "id").(string)

	status, body = api.do(nethttp.MethodPost, "/api/assignments", admin, map[string]any{
		"user_id": learnerID, "flow_id": originalID,
	})
	require.Equal(t, nethttp.StatusConflict, status)
	require.Equal(t, "duplicate_assignment", errorCode(t, body))

	interactions := "/api/assignments/" + assignmentID + "/components/" + componentID + "/interactions"
	status, _ = api.do(nethttp.MethodPost, interactions, stranger, map[string]any{"interaction": "view"})
	require.Equal(t, nethttp.StatusForbidden, status)

	status, _ = api.do(nethttp.MethodPost, interactions, learner, map[string]any{"interaction": "teleport"})
	require.Equal(t, nethttp.StatusBadRequest, status)

	status, body = api.do(nethttp.MethodPost, interactions, learner, map[string]any{"interaction": "view", "time_spent_minutes": 3})
	require.Equal(t, nethttp.StatusOK, status, body)
	require.Equal(t, "in_progress", field(t, body, "assignment_status"))

	status, body = api.do(nethttp.MethodPost, interactions, learner, map[string]any{"interaction": "mark_complete"})
	require.Equal(t, nethttp.StatusOK, status, body)
	require.Equal(t, "completed", field(t, body, "assignment_status"))
	require.EqualValues(t, 100, field(t, body, "flow_percent_after"))
	require.Equal(t, true, field(t, body, "step_completed"))

	status, body = api.do(nethttp.MethodGet, "/api/assignments/"+assignmentID+"/progress", learner, nil)
	require.Equal(t, nethttp.StatusOK, status, body)
	require.EqualValues(t, 100, field(t, body, "progress", "progress_percent"))
	require.Equal(t, true, field(t, body, "progress", "complete"))
	require.EqualValues(t, 3, field(t, body, "progress", "time_spent_minutes"))

	status, _ = api.do(nethttp.MethodGet, "/api/assignments/"+assignmentID+"/progress", stranger, nil)
	require.Equal(t, nethttp.StatusForbidden, status)
	status, _ = api.do(nethttp.MethodGet, "/api/assignments/"+assignmentID+"/progress", admin, nil)
	require.Equal(t, nethttp.StatusOK, status)

	status, body = api.do(nethttp.MethodPost, "/api/assignments/"+assignmentID+"/cancel", admin, map[string]any{"reason": "done"})
	require.Equal(t, nethttp.StatusConflict, status)
	require.Equal(t, "invalid_transition", errorCode(t, body))

	status, body = api.do(nethttp.MethodGet, "/api/me/assignments", learner, nil)
	require.Equal(t, nethttp.StatusOK, status)
	require.Len(t, body["assignments"], 1)

	status, body = api.do(nethttp.MethodPost, "/api/flows/"+originalID+"/drafts", admin, nil)
	require.Equal(t, nethttp.StatusCreated, status, body)
	require.EqualValues(t, 2, field(t, body, "flow", "version"))

	status, body = api.do(nethttp.MethodGet, "/api/flows/"+originalID+"/versions", admin, nil)
	require.Equal(t, nethttp.StatusOK, status)
	require.Len(t, body["versions"], 2)

	status, body = api.do(nethttp.MethodPost, "/api/flows/"+originalID+"/archive", admin, nil)
	require.Equal(t, nethttp.StatusOK, status, body)
	require.Equal(t, "archived", field(t, body, "flow", "status"))

	status, body = api.do(nethttp.MethodPost, "/api/assignments", admin, map[string]any{
		"user_id": uuid.New(), "flow_id": originalID,
	})
	require.Equal(t, nethttp.StatusNotFound, status)
	require.Equal(t, "no_active_version", errorCode(t, body))
}
