package flows

import "strings"

type FlowStatus string

const (
	FlowStatusDraft    FlowStatus = "draft"
	FlowStatusActive   FlowStatus = "active"
	FlowStatusInactive FlowStatus = "inactive"
	FlowStatusArchived FlowStatus = "archived"
)

// ContentStatus is shared by steps and components.
type ContentStatus string

const (
	ContentStatusDraft    ContentStatus = "draft"
	ContentStatusActive   ContentStatus = "active"
	ContentStatusInactive ContentStatus = "inactive"
)

type ComponentType string

const (
	ComponentArticle     ComponentType = "article"
	ComponentVideo       ComponentType = "video"
	ComponentQuiz        ComponentType = "quiz"
	ComponentTask        ComponentType = "task"
	ComponentSurvey      ComponentType = "survey"
	ComponentFile        ComponentType = "file"
	ComponentLink        ComponentType = "link"
	ComponentInteractive ComponentType = "interactive"
)

var componentTypes = map[ComponentType]struct{}{
	ComponentArticle: {}, ComponentVideo: {}, ComponentQuiz: {}, ComponentTask: {},
	ComponentSurvey: {}, ComponentFile: {}, ComponentLink: {}, ComponentInteractive: {},
}

func ParseComponentType(raw string) (ComponentType, bool) {
	t := ComponentType(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := componentTypes[t]
	return t, ok
}

// Scored reports whether the type carries a score/max-score pair.
func (t ComponentType) Scored() bool {
	return t == ComponentQuiz || t == ComponentTask
}

type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "assigned"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentCancelled  AssignmentStatus = "cancelled"
)

// OpenAssignmentStatuses block a second assignment of the same flow to the same user.
var OpenAssignmentStatuses = []string{string(AssignmentAssigned), string(AssignmentInProgress)}

type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressPaused     ProgressStatus = "paused"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressSkipped    ProgressStatus = "skipped"
)

func (s ProgressStatus) Terminal() bool {
	return s == ProgressCompleted || s == ProgressSkipped
}

type InteractionType string

const (
	InteractionView             InteractionType = "view"
	InteractionStartReading     InteractionType = "start_reading"
	InteractionFinishReading    InteractionType = "finish_reading"
	InteractionSubmitQuizAnswer InteractionType = "submit_quiz_answer"
	InteractionSubmitTaskAnswer InteractionType = "submit_task_answer"
	InteractionMarkComplete     InteractionType = "mark_complete"
	InteractionRetry            InteractionType = "retry"
	InteractionSkip             InteractionType = "skip"
	InteractionPause            InteractionType = "pause"
	InteractionResume           InteractionType = "resume"
)

var interactionTypes = map[InteractionType]struct{}{
	InteractionView: {}, InteractionStartReading: {}, InteractionFinishReading: {},
	InteractionSubmitQuizAnswer: {}, InteractionSubmitTaskAnswer: {}, InteractionMarkComplete: {},
	InteractionRetry: {}, InteractionSkip: {}, InteractionPause: {}, InteractionResume: {},
}

func ParseInteractionType(raw string) (InteractionType, bool) {
	t := InteractionType(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := interactionTypes[t]
	return t, ok
}

type RetryPolicy string

const (
	// RetryNever disables retry regardless of component settings.
	RetryNever RetryPolicy = "never"
	// RetryPerComponent defers to the component "allow_retry" setting.
	RetryPerComponent RetryPolicy = "per_component"
	// RetryAlways allows retry on every component.
	RetryAlways RetryPolicy = "always"
)
