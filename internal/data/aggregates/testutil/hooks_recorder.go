package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/buddybot-backend/internal/data/aggregates"
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
)

// HooksRecorder keeps every hook signal so tests can assert on write outcomes.
type HooksRecorder struct {
	mu sync.Mutex

	Writes       []WriteOutcome
	Races        []string
	Retries      []string
	Interactions map[flows.InteractionType][]string
}

type WriteOutcome struct {
	Op      string
	Outcome string
	Took    time.Duration
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) WriteDone(op, outcome string, took time.Duration) {
	h.mu.Lock()
	h.Writes = append(h.Writes, WriteOutcome{Op: op, Outcome: outcome, Took: took})
	h.mu.Unlock()
}

func (h *HooksRecorder) RaceLost(op string) {
	h.mu.Lock()
	h.Races = append(h.Races, op)
	h.mu.Unlock()
}

func (h *HooksRecorder) Retried(op string) {
	h.mu.Lock()
	h.Retries = append(h.Retries, op)
	h.mu.Unlock()
}

func (h *HooksRecorder) Interaction(kind flows.InteractionType, outcome string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Interactions == nil {
		h.Interactions = map[flows.InteractionType][]string{}
	}
	h.Interactions[kind] = append(h.Interactions[kind], outcome)
}

// Outcomes lists the recorded outcomes of op, oldest first.
func (h *HooksRecorder) Outcomes(op string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, w := range h.Writes {
		if w.Op == op {
			out = append(out, w.Outcome)
		}
	}
	return out
}

func (h *HooksRecorder) RaceCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Races)
}

func (h *HooksRecorder) RetryCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Retries)
}
