package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/buddybot-backend/internal/http/handlers"
	httpMW "github.com/yungbote/buddybot-backend/internal/http/middleware"
	"github.com/yungbote/buddybot-backend/internal/observability"
	"github.com/yungbote/buddybot-backend/internal/pkg/ctxutil"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	CORSOrigins    []string
	TracingEnabled bool
	ServiceName    string

	AuthMiddleware *httpMW.AuthMiddleware

	FlowHandler       *httpH.FlowHandler
	AssignmentHandler *httpH.AssignmentHandler
	ProgressHandler   *httpH.ProgressHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingEnabled {
		name := cfg.ServiceName
		if name == "" {
			name = "buddybot"
		}
		r.Use(otelgin.Middleware(name))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	admin := api.Group("/")
	if cfg.AuthMiddleware != nil {
		admin.Use(cfg.AuthMiddleware.RequireRole(ctxutil.RoleAdmin))
	}

	// Flows
	if cfg.FlowHandler != nil {
		api.GET("/flows", cfg.FlowHandler.ListActive)
		api.GET("/flows/:id/active", cfg.FlowHandler.GetActive)

		admin.POST("/flows", cfg.FlowHandler.CreateFlow)
		admin.POST("/flows/:id/drafts", cfg.FlowHandler.CreateDraft)
		admin.POST("/flows/:id/archive", cfg.FlowHandler.Archive)
		admin.GET("/flows/:id/versions", cfg.FlowHandler.ListVersions)
		admin.GET("/flow-versions/:id", cfg.FlowHandler.GetVersion)
		admin.PATCH("/flow-versions/:id", cfg.FlowHandler.UpdateDraft)
		admin.POST("/flow-versions/:id/steps", cfg.FlowHandler.AddStep)
		admin.POST("/flow-versions/:id/activate", cfg.FlowHandler.Activate)
		admin.POST("/flow-steps/:id/components", cfg.FlowHandler.AddComponent)
	}

	// Assignments
	if cfg.AssignmentHandler != nil {
		api.GET("/me/assignments", cfg.AssignmentHandler.ListMine)
		api.GET("/assignments/:id/progress", cfg.AssignmentHandler.GetProgress)

		admin.POST("/assignments", cfg.AssignmentHandler.Assign)
		admin.POST("/assignments/:id/cancel", cfg.AssignmentHandler.Cancel)
	}

	// Progress
	if cfg.ProgressHandler != nil {
		api.POST("/assignments/:id/components/:componentId/interactions", cfg.ProgressHandler.RecordInteraction)
	}

	return r
}
