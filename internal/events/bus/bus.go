// Package bus carries committed flow events from the outbox dispatcher to
// in-process and remote consumers.
package bus

import (
	"context"

	"github.com/yungbote/buddybot-backend/internal/domain/events"
)

// Bus delivers at least once. Consumers dedupe on Envelope.EventID.
type Bus interface {
	Publish(ctx context.Context, env events.Envelope) error
	// StartForwarder registers onMsg for every envelope published after it returns.
	StartForwarder(ctx context.Context, onMsg func(env events.Envelope)) error
	Close() error
}

var (
	_ Bus = (*MemoryBus)(nil)
	_ Bus = (*RedisBus)(nil)
)
