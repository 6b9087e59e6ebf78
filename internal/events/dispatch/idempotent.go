package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/buddybot-backend/internal/domain/events"
	"github.com/yungbote/buddybot-backend/internal/events/bus"
	"github.com/yungbote/buddybot-backend/internal/observability"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

// Dedupe remembers which event ids a consumer has already handled.
type Dedupe interface {
	// Claim returns false when key was claimed before and has not expired.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisDedupe struct {
	rdb    *goredis.Client
	prefix string
}

func NewRedisDedupe(rdb *goredis.Client, prefix string) *RedisDedupe {
	if prefix == "" {
		prefix = "buddybot:consumed"
	}
	return &RedisDedupe{rdb: rdb, prefix: prefix}
}

func (d *RedisDedupe) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.rdb.SetNX(ctx, d.prefix+":"+key, 1, ttl).Result()
}

func (d *RedisDedupe) Release(ctx context.Context, key string) error {
	return d.rdb.Del(ctx, d.prefix+":"+key).Err()
}

type MemoryDedupe struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryDedupe() *MemoryDedupe {
	return &MemoryDedupe{seen: map[string]time.Time{}, now: time.Now}
}

func (d *MemoryDedupe) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if exp, ok := d.seen[key]; ok && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	d.seen[key] = exp
	return true, nil
}

func (d *MemoryDedupe) Release(_ context.Context, key string) error {
	d.mu.Lock()
	delete(d.seen, key)
	d.mu.Unlock()
	return nil
}

type HandlerFunc func(ctx context.Context, env events.Envelope) error

// IdempotentHandler runs fn at most once per (consumer, event id) while the dedupe key lives.
// A failed run releases the key so a redelivery can try again.
func IdempotentHandler(consumer string, dedupe Dedupe, ttl time.Duration, metrics *observability.Metrics, log *logger.Logger, fn HandlerFunc) HandlerFunc {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("consumer", consumer)
	return func(ctx context.Context, env events.Envelope) error {
		key := fmt.Sprintf("%s:%s", consumer, env.EventID)
		first, err := dedupe.Claim(ctx, key, ttl)
		if err != nil {
			metrics.IncEventConsumed(env.EventType, "error")
			return fmt.Errorf("dedupe claim: %w", err)
		}
		if !first {
			metrics.IncEventConsumed(env.EventType, "duplicate")
			log.Debug("duplicate event skipped", "event_id", env.EventID, "event_type", env.EventType)
			return nil
		}
		if err := fn(ctx, env); err != nil {
			if relErr := dedupe.Release(ctx, key); relErr != nil {
				log.Warn("dedupe release failed", "event_id", env.EventID, "error", relErr)
			}
			metrics.IncEventConsumed(env.EventType, "error")
			return err
		}
		metrics.IncEventConsumed(env.EventType, "handled")
		return nil
	}
}

// Attach feeds every envelope forwarded by b into h. Handler errors are logged;
// redelivery comes from the outbox, not from the bus.
func Attach(ctx context.Context, b bus.Bus, log *logger.Logger, h HandlerFunc) error {
	return b.StartForwarder(ctx, func(env events.Envelope) {
		if err := h(ctx, env); err != nil {
			log.Warn("event handler failed", "event_id", env.EventID, "event_type", env.EventType, "error", err)
		}
	})
}
