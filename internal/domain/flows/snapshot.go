package flows

import (
	"sort"

	"github.com/google/uuid"
)

// SnapshotStep is one step version of an assignment snapshot with its components in sequence order.
type SnapshotStep struct {
	Step       *FlowStep
	Components []*FlowStepComponent
}

// Snapshot is the frozen content tree an assignment progresses through.
type Snapshot struct {
	Flow  *Flow
	Steps []SnapshotStep
}

// NewSnapshot groups components under their owning steps. Components whose step is
// not part of steps are dropped.
func NewSnapshot(flow *Flow, steps []*FlowStep, components []*FlowStepComponent) *Snapshot {
	ordered := append([]*FlowStep(nil), steps...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })

	idx := make(map[uuid.UUID]int, len(ordered))
	s := &Snapshot{Flow: flow, Steps: make([]SnapshotStep, len(ordered))}
	for i, st := range ordered {
		idx[st.ID] = i
		s.Steps[i] = SnapshotStep{Step: st}
	}
	for _, c := range components {
		if c == nil {
			continue
		}
		i, ok := idx[c.StepVersionID]
		if !ok {
			continue
		}
		s.Steps[i].Components = append(s.Steps[i].Components, c)
	}
	for i := range s.Steps {
		cs := s.Steps[i].Components
		sort.SliceStable(cs, func(a, b int) bool { return cs[a].Sequence < cs[b].Sequence })
	}
	return s
}

// Locate returns the step index and component for componentID, or -1 and nil.
func (s *Snapshot) Locate(componentID uuid.UUID) (int, *FlowStepComponent) {
	if s == nil {
		return -1, nil
	}
	for i, st := range s.Steps {
		for _, c := range st.Components {
			if c.ID == componentID {
				return i, c
			}
		}
	}
	return -1, nil
}

func (s *Snapshot) Settings() FlowSettings {
	if s == nil || s.Flow == nil {
		return DefaultFlowSettings()
	}
	return s.Flow.FlowSettings()
}

// Evaluation is the derived step and flow state of one assignment.
type Evaluation struct {
	StepRequired     []int
	StepRequiredDone []int
	RequiredTotal    int
	RequiredDone     int
	sequential       bool
}

// Evaluate derives step completion and flow totals from progress rows keyed by component id.
func (s *Snapshot) Evaluate(rows map[uuid.UUID]*ComponentProgress) Evaluation {
	ev := Evaluation{sequential: s.Settings().RequireSequentialCompletion}
	if s == nil {
		return ev
	}
	ev.StepRequired = make([]int, len(s.Steps))
	ev.StepRequiredDone = make([]int, len(s.Steps))
	for i, st := range s.Steps {
		for _, c := range st.Components {
			if !c.IsRequired {
				continue
			}
			ev.StepRequired[i]++
			if rows[c.ID].CountsAsDone() {
				ev.StepRequiredDone[i]++
			}
		}
		ev.RequiredTotal += ev.StepRequired[i]
		ev.RequiredDone += ev.StepRequiredDone[i]
	}
	return ev
}

// StepComplete is true once every required component of step i counts as done.
// A step with no required components is complete.
func (e Evaluation) StepComplete(i int) bool {
	if i < 0 || i >= len(e.StepRequired) {
		return false
	}
	return e.StepRequiredDone[i] >= e.StepRequired[i]
}

// Unlocked reports whether step i accepts interactions. Without sequential
// completion every step is unlocked.
func (e Evaluation) Unlocked(i int) bool {
	if !e.sequential {
		return true
	}
	for j := 0; j < i && j < len(e.StepRequired); j++ {
		if !e.StepComplete(j) {
			return false
		}
	}
	return true
}

func (e Evaluation) Complete() bool {
	for i := range e.StepRequired {
		if !e.StepComplete(i) {
			return false
		}
	}
	return true
}

func (e Evaluation) Percent() int {
	return ProgressPercent(e.RequiredDone, e.RequiredTotal)
}
