package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/buddybot-backend/internal/domain/events"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

const DefaultChannelPrefix = "buddybot.events"

// RedisBus publishes each envelope on "<prefix>.<event_type>" so external
// consumers can subscribe to a single event type. Forwarders pattern-subscribe
// to every type under the prefix.
//
// The client is shared with other components and is not closed by the bus.
type RedisBus struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string

	mu     sync.Mutex
	subs   []*goredis.PubSub
	closed bool
}

func NewRedisBus(log *logger.Logger, rdb *goredis.Client, prefix string) (*RedisBus, error) {
	if log == nil {
		return nil, errors.New("logger required")
	}
	if rdb == nil {
		return nil, errors.New("redis client required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisBus{log: log.With("component", "RedisBus"), rdb: rdb, prefix: prefix}, nil
}

func (b *RedisBus) Channel(eventType string) string {
	return b.prefix + "." + eventType
}

func (b *RedisBus) Publish(ctx context.Context, env events.Envelope) error {
	if strings.TrimSpace(env.EventType) == "" {
		return errors.New("envelope has no event_type")
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.EventType, err)
	}
	return b.rdb.Publish(ctx, b.Channel(env.EventType), raw).Err()
}

// StartForwarder returns once the subscription is confirmed. Delivery runs on
// its own goroutine until ctx ends or the bus is closed.
func (b *RedisBus) StartForwarder(ctx context.Context, onMsg func(env events.Envelope)) error {
	if onMsg == nil {
		return errors.New("onMsg callback required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("redis bus closed")
	}
	sub := b.rdb.PSubscribe(ctx, b.prefix+".*")
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	go b.forward(ctx, sub, onMsg)
	return nil
}

func (b *RedisBus) forward(ctx context.Context, sub *goredis.PubSub, onMsg func(events.Envelope)) {
	defer sub.Close()
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			var env events.Envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				b.log.Warn("dropping undecodable event", "channel", m.Channel, "error", err)
				continue
			}
			if b.Channel(env.EventType) != m.Channel {
				b.log.Warn("event type does not match channel", "channel", m.Channel, "event_type", env.EventType)
			}
			onMsg(env)
		}
	}
}

// Close ends every forwarder started on this bus.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	var errs []error
	for _, s := range b.subs {
		if err := s.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	b.subs = nil
	return errors.Join(errs...)
}
