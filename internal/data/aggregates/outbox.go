package aggregates

import (
	"gorm.io/datatypes"

	"github.com/yungbote/buddybot-backend/internal/data/repos"
	types "github.com/yungbote/buddybot-backend/internal/domain"
	"github.com/yungbote/buddybot-backend/internal/domain/events"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

// appendEvents writes events into the outbox inside the caller's transaction.
// They become visible to the dispatcher only once that transaction commits.
func appendEvents(dbc dbctx.Context, outbox repos.OutboxRepo, evs ...events.Event) ([]string, error) {
	if len(evs) == 0 {
		return nil, nil
	}
	if outbox == nil {
		return nil, InvariantError("outbox repo not configured")
	}
	rows := make([]*types.OutboxEvent, 0, len(evs))
	names := make([]string, 0, len(evs))
	for _, ev := range evs {
		env, err := events.NewEnvelope(ev)
		if err != nil {
			return nil, err
		}
		rows = append(rows, &types.OutboxEvent{
			ID:            env.EventID,
			EventType:     env.EventType,
			AggregateID:   env.AggregateID,
			SchemaVersion: env.SchemaVersion,
			Payload:       datatypes.JSON(env.Payload),
			OccurredAt:    env.OccurredAt,
			Status:        flows.OutboxPending,
			NextAttemptAt: env.OccurredAt,
		})
		names = append(names, env.EventType)
	}
	if _, err := outbox.Create(dbc, rows); err != nil {
		return nil, err
	}
	return names, nil
}
