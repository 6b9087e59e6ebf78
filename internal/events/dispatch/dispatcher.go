package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yungbote/buddybot-backend/internal/data/repos"
	types "github.com/yungbote/buddybot-backend/internal/domain"
	"github.com/yungbote/buddybot-backend/internal/domain/events"
	"github.com/yungbote/buddybot-backend/internal/events/bus"
	"github.com/yungbote/buddybot-backend/internal/observability"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

type Config struct {
	PollInterval  time.Duration
	BatchSize     int
	MaxAttempts   int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Lease         time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = 10 * time.Minute
	}
	if c.Lease <= 0 {
		c.Lease = 30 * time.Second
	}
	return c
}

type Stats struct {
	Claimed    int
	Dispatched int
	Failed     int
	GaveUp     int
}

// Dispatcher publishes committed outbox rows to the bus.
type Dispatcher struct {
	log     *logger.Logger
	outbox  repos.OutboxRepo
	bus     bus.Bus
	metrics *observability.Metrics
	cfg     Config

	// Now is swappable for tests.
	Now func() time.Time
}

func NewDispatcher(baseLog *logger.Logger, outbox repos.OutboxRepo, b bus.Bus, metrics *observability.Metrics, cfg Config) *Dispatcher {
	return &Dispatcher{
		log:     baseLog.With("component", "OutboxDispatcher"),
		outbox:  outbox,
		bus:     b,
		metrics: metrics,
		cfg:     cfg.withDefaults(),
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start polls until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.log.Info("Starting outbox dispatcher",
		"poll_interval", d.cfg.PollInterval.String(),
		"batch_size", d.cfg.BatchSize,
		"max_attempts", d.cfg.MaxAttempts,
	)
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("Outbox dispatcher stopped")
			return nil
		case <-ticker.C:
			// drain full batches before waiting for the next tick
			for {
				stats, err := d.DispatchOnce(ctx)
				if err != nil {
					if ctx.Err() == nil {
						d.log.Warn("Outbox dispatch failed", "error", err)
					}
					break
				}
				if stats.Claimed < d.cfg.BatchSize {
					break
				}
			}
		}
	}
}

// DispatchOnce claims one batch and publishes it.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	now := d.Now()
	dbc := dbctx.Context{Ctx: ctx}

	rows, err := d.outbox.ClaimDue(dbc, now, d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return stats, err
	}
	stats.Claimed = len(rows)
	d.metrics.AddOutboxClaimed(len(rows))

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			// unpublished rows become due again when their lease expires
			return stats, err
		}
		pubErr := d.bus.Publish(ctx, envelopeFor(row))
		if pubErr == nil {
			if err := d.outbox.MarkDispatched(dbc, row.ID, d.Now()); err != nil {
				// the event was published; a second publish after lease expiry is tolerated by consumers
				d.log.Warn("MarkDispatched failed", "event_id", row.ID, "error", err)
				continue
			}
			stats.Dispatched++
			d.metrics.IncOutboxDispatched(row.EventType)
			continue
		}

		terminal := row.Attempts >= d.cfg.MaxAttempts
		next := now.Add(d.backoff(row.Attempts))
		if err := d.outbox.MarkAttemptFailed(dbc, row.ID, pubErr.Error(), next, terminal); err != nil {
			d.log.Warn("MarkAttemptFailed failed", "event_id", row.ID, "error", err)
		}
		stats.Failed++
		if terminal {
			stats.GaveUp++
			d.log.Error("Outbox event gave up",
				"event_id", row.ID,
				"event_type", row.EventType,
				"attempts", row.Attempts,
				"error", pubErr,
			)
		} else {
			d.log.Warn("Outbox publish failed",
				"event_id", row.ID,
				"event_type", row.EventType,
				"attempts", row.Attempts,
				"next_attempt_at", next,
				"error", pubErr,
			)
		}
		d.metrics.IncOutboxFailed(row.EventType, terminal)
	}
	return stats, nil
}

func (d *Dispatcher) backoff(attempts int) time.Duration {
	delay := d.cfg.RetryDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= d.cfg.MaxRetryDelay {
			return d.cfg.MaxRetryDelay
		}
	}
	return delay
}

func envelopeFor(row *types.OutboxEvent) events.Envelope {
	return events.Envelope{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateID:   row.AggregateID,
		SchemaVersion: row.SchemaVersion,
		OccurredAt:    row.OccurredAt,
		Payload:       json.RawMessage(row.Payload),
	}
}
