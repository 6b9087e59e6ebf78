package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/buddybot-backend/internal/data/aggregates"
	"github.com/yungbote/buddybot-backend/internal/data/db"
	"github.com/yungbote/buddybot-backend/internal/data/repos"
	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/events/bus"
	"github.com/yungbote/buddybot-backend/internal/events/dispatch"
	httpapi "github.com/yungbote/buddybot-backend/internal/http"
	httpH "github.com/yungbote/buddybot-backend/internal/http/handlers"
	httpMW "github.com/yungbote/buddybot-backend/internal/http/middleware"
	"github.com/yungbote/buddybot-backend/internal/observability"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
	"github.com/yungbote/buddybot-backend/internal/services"
)

type Aggregates struct {
	Authoring  domainagg.FlowAuthoringAggregate
	Assignment domainagg.FlowAssignmentAggregate
	Progress   domainagg.FlowProgressAggregate
}

type Services struct {
	FlowQuery     services.FlowQueryService
	ProgressQuery services.ProgressQueryService
}

type App struct {
	Log        *logger.Logger
	DB         *gorm.DB
	Cfg        Config
	Metrics    *observability.Metrics
	Repos      repos.Set
	Aggregates Aggregates
	Services   Services
	Bus        bus.Bus
	Dispatcher *dispatch.Dispatcher
	Dedupe     dispatch.Dedupe
	Consumers  []Consumer

	redis        *goredis.Client
	otelShutdown func(context.Context) error
}

func NewLogger(mode string) (*logger.Logger, error) {
	if mode == "" {
		mode = "development"
	}
	log, err := logger.New(mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

// OpenDB connects to the configured store and migrates it.
func OpenDB(log *logger.Logger, cfg Config) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case "sqlite":
		svc, err := db.NewSQLiteService(log, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := svc.AutoMigrateAll(); err != nil {
			return nil, fmt.Errorf("sqlite automigrate: %w", err)
		}
		return svc.DB(), nil
	default:
		svc, err := db.NewPostgresService(log, cfg.Postgres())
		if err != nil {
			return nil, err
		}
		if err := svc.AutoMigrateAll(); err != nil {
			return nil, fmt.Errorf("postgres automigrate: %w", err)
		}
		return svc.DB(), nil
	}
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	theDB, err := OpenDB(log, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithDB(ctx, log, cfg, theDB)
}

// NewWithDB wires everything on top of an already migrated database.
func NewWithDB(ctx context.Context, log *logger.Logger, cfg Config, theDB *gorm.DB) (*App, error) {
	a := &App{Log: log, DB: theDB, Cfg: cfg}
	if cfg.MetricsEnabled {
		a.Metrics = observability.Init(log)
	}
	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel())

	a.Repos = repos.NewSet(theDB, log)
	a.Aggregates = wireAggregates(theDB, log, a.Metrics, a.Repos)
	a.Services = Services{
		FlowQuery:     services.NewFlowQueryService(theDB, log, a.Repos),
		ProgressQuery: services.NewProgressQueryService(theDB, log, a.Repos),
	}

	if cfg.RedisAddr != "" {
		a.redis = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr, DialTimeout: 5 * time.Second})
		b, err := bus.NewRedisBus(log, a.redis, cfg.RedisChannel)
		if err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("init event bus: %w", err)
		}
		a.Bus = b
		a.Dedupe = dispatch.NewRedisDedupe(a.redis, "")
	} else {
		log.Warn("REDIS_ADDR not set; using in-process event bus")
		a.Bus = bus.NewMemoryBus()
		a.Dedupe = dispatch.NewMemoryDedupe()
	}
	a.Dispatcher = dispatch.NewDispatcher(log, a.Repos.Outbox, a.Bus, a.Metrics, cfg.Dispatch())
	a.Consumers = defaultConsumers(log)
	return a, nil
}

func wireAggregates(theDB *gorm.DB, log *logger.Logger, metrics *observability.Metrics, set repos.Set) Aggregates {
	base := aggregates.BaseDeps{
		DB:    theDB,
		Log:   log,
		Hooks: aggregates.NewObservabilityHooks(metrics),
	}
	return Aggregates{
		Authoring: aggregates.NewFlowAuthoringAggregate(aggregates.FlowAuthoringAggregateDeps{
			Base:       base,
			Flows:      set.Flows,
			Steps:      set.Steps,
			Components: set.Components,
			Outbox:     set.Outbox,
		}),
		Assignment: aggregates.NewFlowAssignmentAggregate(aggregates.FlowAssignmentAggregateDeps{
			Base:        base,
			Flows:       set.Flows,
			Assignments: set.Assignments,
			Outbox:      set.Outbox,
		}),
		Progress: aggregates.NewFlowProgressAggregate(aggregates.FlowProgressAggregateDeps{
			Base:        base,
			Flows:       set.Flows,
			Steps:       set.Steps,
			Components:  set.Components,
			Assignments: set.Assignments,
			Progress:    set.Progress,
			Outbox:      set.Outbox,
		}),
	}
}

// FlowVersions exposes version history and rollback for flows outside the authoring aggregate.
func (a *App) FlowVersions() *aggregates.VersionManager[flows.Flow, *flows.Flow] {
	return aggregates.NewVersionManager(aggregates.VersionManagerDeps[flows.Flow, *flows.Flow]{
		Base: aggregates.BaseDeps{DB: a.DB, Log: a.Log, Hooks: aggregates.NewObservabilityHooks(a.Metrics)},
		Repo: a.Repos.Flows,
		Name: "Flow",
	})
}

func (a *App) Server() *httpapi.Server {
	return httpapi.NewServer(httpapi.RouterConfig{
		Log:               a.Log,
		Metrics:           a.Metrics,
		CORSOrigins:       a.Cfg.AllowedOrigins(),
		TracingEnabled:    a.Cfg.OtelEnabled,
		AuthMiddleware:    httpMW.NewAuthMiddleware(a.Log, a.Cfg.JWTSecretKey),
		FlowHandler:       httpH.NewFlowHandler(a.Aggregates.Authoring, a.Services.FlowQuery),
		AssignmentHandler: httpH.NewAssignmentHandler(a.Aggregates.Assignment, a.Services.ProgressQuery),
		ProgressHandler:   httpH.NewProgressHandler(a.Aggregates.Progress, a.Services.ProgressQuery),
		HealthHandler:     httpH.NewHealthHandler(a.DB),
	})
}

// Run serves HTTP, dispatches the outbox and runs the event consumers until ctx ends.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return errors.New("app not initialized")
	}
	if a.Cfg.JWTSecretKey == "" {
		return errors.New("JWT_SECRET_KEY is required to serve")
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("http server listening", "addr", a.Cfg.HTTPAddr)
		return a.Server().Run(gctx, a.Cfg.HTTPAddr)
	})
	g.Go(func() error {
		return a.Dispatcher.Start(gctx)
	})
	g.Go(func() error {
		return a.StartConsumers(gctx)
	})
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			a.Log.Warn("event bus close failed", "error", err)
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
