package domain

import (
	"github.com/yungbote/buddybot-backend/internal/domain/flows"
)

type Flow = flows.Flow
type FlowStep = flows.FlowStep
type FlowStepComponent = flows.FlowStepComponent
type FlowAssignment = flows.FlowAssignment
type ComponentProgress = flows.ComponentProgress
type OutboxEvent = flows.OutboxEvent

type FlowSettings = flows.FlowSettings
type ComponentSettings = flows.ComponentSettings

type FlowStatus = flows.FlowStatus
type ContentStatus = flows.ContentStatus
type ComponentType = flows.ComponentType
type AssignmentStatus = flows.AssignmentStatus
type ProgressStatus = flows.ProgressStatus
type InteractionType = flows.InteractionType
