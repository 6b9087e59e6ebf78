package events

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is bumped whenever an event payload changes incompatibly.
const SchemaVersion = 1

// Event is an immutable record of something that already happened.
type Event interface {
	EventID() uuid.UUID
	EventName() string
	OccurredAt() time.Time
	SchemaVersion() int
	// AggregateID is the row the event is about (flow version or assignment).
	AggregateID() uuid.UUID
}

// Base carries the envelope fields every event shares.
type Base struct {
	ID      uuid.UUID `json:"event_id"`
	At      time.Time `json:"occurred_at"`
	Version int       `json:"schema_version"`
}

func NewBase(at time.Time) Base {
	if at.IsZero() {
		at = time.Now()
	}
	return Base{ID: uuid.New(), At: at.UTC(), Version: SchemaVersion}
}

func (b Base) EventID() uuid.UUID    { return b.ID }
func (b Base) OccurredAt() time.Time { return b.At }
func (b Base) SchemaVersion() int    { return b.Version }

// Envelope is the wire shape used on the bus.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	SchemaVersion int             `json:"schema_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(ev Event) (Envelope, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", ev.EventName(), err)
	}
	return Envelope{
		EventID:       ev.EventID(),
		EventType:     ev.EventName(),
		AggregateID:   ev.AggregateID(),
		SchemaVersion: ev.SchemaVersion(),
		OccurredAt:    ev.OccurredAt(),
		Payload:       raw,
	}, nil
}

var registry = map[string]func() Event{}

func register(name string, fn func() Event) {
	if _, dup := registry[name]; dup {
		panic("duplicate event registration: " + name)
	}
	registry[name] = fn
}

// Decode rebuilds a typed event from an envelope.
func Decode(env Envelope) (Event, error) {
	fn, ok := registry[env.EventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", env.EventType)
	}
	ev := fn()
	if err := json.Unmarshal(env.Payload, ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.EventType, err)
	}
	return ev, nil
}

// Names lists registered event names in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
