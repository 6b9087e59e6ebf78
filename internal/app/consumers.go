package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yungbote/buddybot-backend/internal/domain/events"
	"github.com/yungbote/buddybot-backend/internal/events/dispatch"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

// Consumer is a named subscriber. Names scope the dedupe keys.
type Consumer struct {
	Name   string
	Handle dispatch.HandlerFunc
}

func defaultConsumers(log *logger.Logger) []Consumer {
	return []Consumer{
		{Name: "activity-log", Handle: activityLog(log.With("consumer", "activity-log"))},
	}
}

// activityLog writes one structured line per milestone so onboarding can be audited from the logs.
func activityLog(log *logger.Logger) dispatch.HandlerFunc {
	return func(_ context.Context, env events.Envelope) error {
		fields := []interface{}{
			"event_id", env.EventID,
			"event_type", env.EventType,
			"aggregate_id", env.AggregateID,
			"occurred_at", env.OccurredAt,
		}
		switch env.EventType {
		case events.NameFlowAssigned:
			var ev events.FlowAssigned
			if err := json.Unmarshal(env.Payload, &ev); err != nil {
				return fmt.Errorf("decode %s: %w", env.EventType, err)
			}
			fields = append(fields, "user_id", ev.UserID, "flow_version_id", ev.FlowVersionID)
		case events.NameFlowCompleted:
			var ev events.FlowCompleted
			if err := json.Unmarshal(env.Payload, &ev); err != nil {
				return fmt.Errorf("decode %s: %w", env.EventType, err)
			}
			fields = append(fields, "user_id", ev.UserID, "flow_version_id", ev.FlowVersionID)
		}
		log.Info("domain event", fields...)
		return nil
	}
}

// AttachConsumers subscribes every consumer behind the idempotency guard until ctx ends.
func (a *App) AttachConsumers(ctx context.Context) error {
	for _, c := range a.Consumers {
		h := dispatch.IdempotentHandler(c.Name, a.Dedupe, a.Cfg.EventDedupeTTL, a.Metrics, a.Log, c.Handle)
		if err := dispatch.Attach(ctx, a.Bus, a.Log.With("consumer", c.Name), h); err != nil {
			return fmt.Errorf("attach consumer %s: %w", c.Name, err)
		}
	}
	return nil
}

func (a *App) StartConsumers(ctx context.Context) error {
	if err := a.AttachConsumers(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
