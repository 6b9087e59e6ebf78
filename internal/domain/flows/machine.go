package flows

import (
	"fmt"
	"math"
)

// TransitionError is returned when an interaction is illegal for the current progress state.
type TransitionError struct {
	From        ProgressStatus
	Interaction InteractionType
	Reason      string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot apply %s from %s: %s", e.Interaction, e.From, e.Reason)
}

// Transition is the compact form "<from> -> <interaction>" used in error context.
func (e *TransitionError) Transition() string {
	return fmt.Sprintf("%s -> %s", e.From, e.Interaction)
}

// TransitionInput is everything the state machine needs about one component.
type TransitionInput struct {
	Interaction   InteractionType
	Status        ProgressStatus
	ComponentType ComponentType
	Required      bool
	AllowSkipping bool
	RetryAllowed  bool
	// MaxAttempts of 0 means unlimited.
	MaxAttempts   int
	Attempts      int
	ScorePercent  *float64
	PassThreshold float64
}

type TransitionResult struct {
	Status   ProgressStatus
	Attempts int
	// Changed is false for idempotent interactions that leave the row untouched.
	Changed    bool
	Started    bool
	Completed  bool
	Skipped    bool
	Passed     bool
	Scored     bool
	ResetScore bool
}

// Apply runs one interaction through the component state machine.
func Apply(in TransitionInput) (TransitionResult, error) {
	if in.Status == "" {
		in.Status = ProgressNotStarted
	}
	out := TransitionResult{Status: in.Status, Attempts: in.Attempts}
	fail := func(reason string) (TransitionResult, error) {
		return TransitionResult{}, &TransitionError{From: in.Status, Interaction: in.Interaction, Reason: reason}
	}

	switch in.Interaction {
	case InteractionView, InteractionStartReading:
		switch in.Status {
		case ProgressNotStarted:
			out.Status = ProgressInProgress
			out.Attempts = 1
			out.Started = true
			out.Changed = true
		case ProgressPaused:
			if in.Interaction == InteractionView {
				return out, nil
			}
			out.Status = ProgressInProgress
			out.Changed = true
		case ProgressInProgress:
			return out, nil
		default:
			if in.Interaction == InteractionView {
				return out, nil
			}
			return fail("component already finished")
		}

	case InteractionPause:
		if in.Status != ProgressInProgress {
			return fail("only in-progress components can be paused")
		}
		out.Status = ProgressPaused
		out.Changed = true

	case InteractionResume:
		if in.Status != ProgressPaused {
			return fail("only paused components can be resumed")
		}
		out.Status = ProgressInProgress
		out.Changed = true

	case InteractionRetry:
		if !in.Status.Terminal() {
			return fail("only completed or skipped components can be retried")
		}
		if !in.RetryAllowed {
			return fail("retry not allowed")
		}
		if in.MaxAttempts > 0 && in.Attempts >= in.MaxAttempts {
			return fail("attempts exhausted")
		}
		out.Status = ProgressInProgress
		out.Attempts = in.Attempts + 1
		out.ResetScore = true
		out.Changed = true

	case InteractionSubmitQuizAnswer, InteractionSubmitTaskAnswer:
		want := ComponentQuiz
		if in.Interaction == InteractionSubmitTaskAnswer {
			want = ComponentTask
		}
		if in.ComponentType != want {
			return fail(fmt.Sprintf("component type %s does not accept %s", in.ComponentType, in.Interaction))
		}
		if in.Status != ProgressInProgress {
			return fail("answers are only accepted while in progress")
		}
		if in.ScorePercent == nil {
			return fail("missing score")
		}
		out.Scored = true
		out.Changed = true
		out.Passed = *in.ScorePercent >= in.PassThreshold
		exhausted := in.MaxAttempts > 0 && in.Attempts >= in.MaxAttempts
		if out.Passed || exhausted {
			out.Status = ProgressCompleted
			out.Completed = true
		} else {
			out.Attempts = in.Attempts + 1
		}

	case InteractionFinishReading:
		if in.ComponentType != ComponentArticle {
			return fail("finish_reading applies to articles only")
		}
		if in.Status != ProgressInProgress {
			return fail("article is not in progress")
		}
		out.Status = ProgressCompleted
		out.Completed = true
		out.Changed = true

	case InteractionMarkComplete:
		switch in.ComponentType {
		case ComponentVideo, ComponentFile, ComponentLink, ComponentInteractive, ComponentSurvey:
		default:
			return fail(fmt.Sprintf("component type %s cannot be marked complete", in.ComponentType))
		}
		if in.Status != ProgressInProgress {
			return fail("component is not in progress")
		}
		out.Status = ProgressCompleted
		out.Completed = true
		out.Changed = true

	case InteractionSkip:
		if in.Status != ProgressNotStarted && in.Status != ProgressInProgress {
			return fail("only not-started or in-progress components can be skipped")
		}
		if !in.AllowSkipping {
			return fail("flow does not allow skipping")
		}
		if in.Required {
			return fail("required components cannot be skipped")
		}
		out.Status = ProgressSkipped
		out.Skipped = true
		out.Changed = true

	default:
		return fail("unknown interaction")
	}
	return out, nil
}

// ProgressPercent is round(100*completed/total), half away from zero. No required work yields 100.
func ProgressPercent(completed, total int) int {
	if total <= 0 {
		return 100
	}
	if completed < 0 {
		completed = 0
	}
	if completed > total {
		completed = total
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// NormalizeScore converts score/max to a 0..100 percentage. Without a positive max
// the score is taken as a percentage already.
func NormalizeScore(score float64, maxScore *float64) float64 {
	pct := score
	if maxScore != nil && *maxScore > 0 {
		pct = 100 * score / *maxScore
	}
	return math.Max(0, math.Min(100, pct))
}

// ScoreAnswers compares answers with an answer key and returns matched and total keys.
func ScoreAnswers(answerKey, answers map[string]any) (matched, total float64) {
	for k, want := range answerKey {
		total++
		got, ok := answers[k]
		if ok && fmt.Sprint(got) == fmt.Sprint(want) {
			matched++
		}
	}
	return matched, total
}
