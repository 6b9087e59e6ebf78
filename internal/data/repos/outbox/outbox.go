package outbox

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/buddybot-backend/internal/domain"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

type OutboxRepo interface {
	Create(dbc dbctx.Context, rows []*types.OutboxEvent) ([]*types.OutboxEvent, error)
	// ClaimDue leases up to limit pending rows whose next attempt is due. Leased rows
	// become due again after lease, so a crashed dispatcher never loses an event.
	ClaimDue(dbc dbctx.Context, now time.Time, limit int, lease time.Duration) ([]*types.OutboxEvent, error)
	MarkDispatched(dbc dbctx.Context, id uuid.UUID, at time.Time) error
	MarkAttemptFailed(dbc dbctx.Context, id uuid.UUID, lastErr string, nextAttemptAt time.Time, terminal bool) error
	ListByAggregate(dbc dbctx.Context, aggregateID uuid.UUID) ([]*types.OutboxEvent, error)
	ListByStatus(dbc dbctx.Context, status flows.OutboxStatus, limit int) ([]*types.OutboxEvent, error)
}

type outboxRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOutboxRepo(db *gorm.DB, baseLog *logger.Logger) OutboxRepo {
	return &outboxRepo{db: db, log: baseLog.With("repo", "OutboxRepo")}
}

func (r *outboxRepo) Create(dbc dbctx.Context, rows []*types.OutboxEvent) ([]*types.OutboxEvent, error) {
	if len(rows) == 0 {
		return []*types.OutboxEvent{}, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if row.Status == "" {
			row.Status = flows.OutboxPending
		}
		if row.NextAttemptAt.IsZero() {
			row.NextAttemptAt = now
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if row.UpdatedAt.IsZero() {
			row.UpdatedAt = row.CreatedAt
		}
	}
	if err := dbc.Handle(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *outboxRepo) ClaimDue(dbc dbctx.Context, now time.Time, limit int, lease time.Duration) ([]*types.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	var claimed []*types.OutboxEvent
	err := dbc.Handle(r.db).Transaction(func(txx *gorm.DB) error {
		q := txx.Where("status = ? AND next_attempt_at <= ?", flows.OutboxPending, now)
		if txx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		var rows []*types.OutboxEvent
		if err := q.Order("created_at ASC").Limit(limit).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		leaseUntil := now.Add(lease)
		if err := txx.Model(&types.OutboxEvent{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"attempts":        gorm.Expr("attempts + 1"),
				"next_attempt_at": leaseUntil,
				"updated_at":      now,
			}).Error; err != nil {
			return err
		}
		for _, row := range rows {
			row.Attempts++
			row.NextAttemptAt = leaseUntil
		}
		claimed = rows
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *outboxRepo) MarkDispatched(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	return dbc.Handle(r.db).
		Model(&types.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        flows.OutboxDispatched,
			"dispatched_at": at,
			"last_error":    "",
			"updated_at":    at,
		}).Error
}

func (r *outboxRepo) MarkAttemptFailed(dbc dbctx.Context, id uuid.UUID, lastErr string, nextAttemptAt time.Time, terminal bool) error {
	updates := map[string]interface{}{
		"last_error":      lastErr,
		"next_attempt_at": nextAttemptAt,
		"updated_at":      time.Now().UTC(),
	}
	if terminal {
		updates["status"] = flows.OutboxFailed
	}
	return dbc.Handle(r.db).
		Model(&types.OutboxEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *outboxRepo) ListByAggregate(dbc dbctx.Context, aggregateID uuid.UUID) ([]*types.OutboxEvent, error) {
	var out []*types.OutboxEvent
	if err := dbc.Handle(r.db).
		Where("aggregate_id = ?", aggregateID).
		Order("occurred_at ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *outboxRepo) ListByStatus(dbc dbctx.Context, status flows.OutboxStatus, limit int) ([]*types.OutboxEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var out []*types.OutboxEvent
	if err := dbc.Handle(r.db).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
