package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/buddybot-backend/internal/domain/events"
)

// MemoryBus delivers synchronously to every forwarder registered in this process.
// It backs local runs and tests.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(events.Envelope)
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: map[int]func(events.Envelope){}}
}

func (b *MemoryBus) Publish(ctx context.Context, env events.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("memory bus closed")
	}
	handlers := make([]func(events.Envelope), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(env)
	}
	return nil
}

func (b *MemoryBus) StartForwarder(ctx context.Context, onMsg func(env events.Envelope)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("memory bus closed")
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = onMsg
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = map[int]func(events.Envelope){}
	return nil
}
