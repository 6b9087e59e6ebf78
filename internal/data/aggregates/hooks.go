package aggregates

import (
	"strings"
	"time"

	"github.com/yungbote/buddybot-backend/internal/domain/flows"
	"github.com/yungbote/buddybot-backend/internal/observability"
)

// Hooks receives write outcomes from the flow aggregates.
// Implementations must be safe for concurrent use.
type Hooks interface {
	// WriteDone fires once per transaction attempt with the mapped outcome
	// ("success" or an error code).
	WriteDone(op, outcome string, took time.Duration)
	// RaceLost fires when an attempt failed on a revision or activation race.
	RaceLost(op string)
	// Retried fires before each extra attempt of a retrying write.
	Retried(op string)
	// Interaction fires once per RecordInteraction call, after retries.
	Interaction(kind flows.InteractionType, outcome string)
}

type discardHooks struct{}

func (discardHooks) WriteDone(string, string, time.Duration)   {}
func (discardHooks) RaceLost(string)                           {}
func (discardHooks) Retried(string)                            {}
func (discardHooks) Interaction(flows.InteractionType, string) {}

// promHooks forwards hook signals to the prometheus collectors.
type promHooks struct {
	m *observability.Metrics
}

// NewObservabilityHooks returns hooks that feed m. A nil m discards everything.
func NewObservabilityHooks(m *observability.Metrics) Hooks {
	if m == nil {
		return discardHooks{}
	}
	return promHooks{m: m}
}

func (h promHooks) WriteDone(op, outcome string, took time.Duration) {
	h.m.ObserveAggregateOperation(opLabel(op), outcome, took)
}

func (h promHooks) RaceLost(op string) { h.m.IncAggregateConflict(opLabel(op)) }

func (h promHooks) Retried(op string) { h.m.IncAggregateRetry(opLabel(op)) }

func (h promHooks) Interaction(kind flows.InteractionType, outcome string) {
	h.m.IncInteraction(string(kind), outcome)
}

// opLabel keeps label cardinality bounded to the "Flows.<Aggregate>.<Op>" names.
func opLabel(op string) string {
	op = strings.TrimSpace(op)
	if op == "" {
		return "unknown"
	}
	return op
}
