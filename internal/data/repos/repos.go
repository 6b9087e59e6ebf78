package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/buddybot-backend/internal/data/repos/flows"
	"github.com/yungbote/buddybot-backend/internal/data/repos/outbox"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

type FlowRepo = flows.FlowRepo
type FlowStepRepo = flows.FlowStepRepo
type FlowComponentRepo = flows.FlowComponentRepo
type FlowAssignmentRepo = flows.FlowAssignmentRepo
type ComponentProgressRepo = flows.ComponentProgressRepo

type OutboxRepo = outbox.OutboxRepo

func NewFlowRepo(db *gorm.DB, baseLog *logger.Logger) FlowRepo { return flows.NewFlowRepo(db, baseLog) }
func NewFlowStepRepo(db *gorm.DB, baseLog *logger.Logger) FlowStepRepo {
	return flows.NewFlowStepRepo(db, baseLog)
}
func NewFlowComponentRepo(db *gorm.DB, baseLog *logger.Logger) FlowComponentRepo {
	return flows.NewFlowComponentRepo(db, baseLog)
}
func NewFlowAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) FlowAssignmentRepo {
	return flows.NewFlowAssignmentRepo(db, baseLog)
}
func NewComponentProgressRepo(db *gorm.DB, baseLog *logger.Logger) ComponentProgressRepo {
	return flows.NewComponentProgressRepo(db, baseLog)
}

func NewOutboxRepo(db *gorm.DB, baseLog *logger.Logger) OutboxRepo {
	return outbox.NewOutboxRepo(db, baseLog)
}

// Set bundles every repo the flow aggregates and services need.
type Set struct {
	Flows       FlowRepo
	Steps       FlowStepRepo
	Components  FlowComponentRepo
	Assignments FlowAssignmentRepo
	Progress    ComponentProgressRepo
	Outbox      OutboxRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Flows:       NewFlowRepo(db, baseLog),
		Steps:       NewFlowStepRepo(db, baseLog),
		Components:  NewFlowComponentRepo(db, baseLog),
		Assignments: NewFlowAssignmentRepo(db, baseLog),
		Progress:    NewComponentProgressRepo(db, baseLog),
		Outbox:      NewOutboxRepo(db, baseLog),
	}
}
