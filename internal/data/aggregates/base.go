package aggregates

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard
	Tracer   trace.Tracer
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = discardHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.Log == nil {
		d.Log = logger.NewNop()
	}
	if d.Tracer == nil {
		d.Tracer = otel.Tracer("buddybot/aggregates")
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}
	ctx, span := deps.Tracer.Start(ctx, op)
	defer span.End()

	err := deps.Runner.InTx(ctx, fn)
	mapped := MapError(op, err)

	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		if isConcurrencyCode(domainagg.CodeOf(mapped)) {
			deps.Hooks.RaceLost(op)
		}
		if domainagg.IsCode(mapped, domainagg.CodeRetryable) {
			deps.Hooks.Retried(op)
		}
		span.SetStatus(codes.Error, status)
		if !domainagg.Recoverable(mapped) {
			deps.Log.Error("aggregate write failed", "op", op, "error", mapped)
		}
	}
	span.SetAttributes(attribute.String("aggregate.status", status))
	deps.Hooks.WriteDone(op, status, time.Since(start))
	return mapped
}

// executeWriteRetrying runs fn in a fresh transaction up to contract.MaxAttempts() times while
// it keeps losing optimistic races. Once attempts are exhausted the conflict is reported as
// exhaustedCode. fn must rebuild all of its output on every call.
func executeWriteRetrying(ctx context.Context, deps BaseDeps, contract domainagg.Contract, op string, exhaustedCode domainagg.ErrorCode, entityID string, fn func(dbc dbctx.Context) error) error {
	deps = deps.withDefaults()
	attempts := contract.MaxAttempts()
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			deps.Hooks.Retried(op)
			deps.Log.Debug("retrying aggregate write after conflict", "op", op, "attempt", i+1)
		}
		err = executeWrite(ctx, deps, op, fn)
		if err == nil || !domainagg.IsCode(err, domainagg.CodeConflict) {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return asConcurrencyError(op, err, exhaustedCode, entityID, "row changed concurrently")
}

func isConcurrencyCode(code domainagg.ErrorCode) bool {
	switch code {
	case domainagg.CodeConflict, domainagg.CodeConcurrentActivation, domainagg.CodeConcurrentModification:
		return true
	}
	return false
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
