package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/buddybot-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Authoring tree (versioned)
		&types.Flow{},
		&types.FlowStep{},
		&types.FlowStepComponent{},

		// Assignment + progress
		&types.FlowAssignment{},
		&types.ComponentProgress{},

		// Transactional outbox
		&types.OutboxEvent{},
	)
}

// EnsureFlowIndexes creates the partial/composite unique indexes the aggregates rely on.
// Statements are valid on both Postgres and SQLite.
func EnsureFlowIndexes(db *gorm.DB) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"idx_flow_original_version", `CREATE UNIQUE INDEX IF NOT EXISTS idx_flow_original_version ON flow(original_id, version);`},
		{"idx_flow_one_active", `CREATE UNIQUE INDEX IF NOT EXISTS idx_flow_one_active ON flow(original_id) WHERE is_active = true;`},
		{"idx_flow_step_original_version", `CREATE UNIQUE INDEX IF NOT EXISTS idx_flow_step_original_version ON flow_step(original_id, version);`},
		{"idx_flow_step_one_active", `CREATE UNIQUE INDEX IF NOT EXISTS idx_flow_step_one_active ON flow_step(original_id) WHERE is_active = true;`},
		{"idx_flow_step_sequence", `CREATE UNIQUE INDEX IF NOT EXISTS idx_flow_step_sequence ON flow_step(flow_version_id, sequence);`},
		{"idx_flow_component_original_version", `CREATE UNIQUE INDEX IF NOT EXISTS idx_flow_component_original_version ON flow_step_component(original_id, version);`},
		{"idx_flow_component_one_active", `CREATE UNIQUE INDEX IF NOT EXISTS idx_flow_component_one_active ON flow_step_component(original_id) WHERE is_active = true;`},
		{"idx_flow_component_sequence", `CREATE UNIQUE INDEX IF NOT EXISTS idx_flow_component_sequence ON flow_step_component(step_version_id, sequence);`},
		{"idx_flow_assignment_open", `
			CREATE UNIQUE INDEX IF NOT EXISTS idx_flow_assignment_open
			ON flow_assignment(user_id, flow_original_id)
			WHERE status IN ('assigned', 'in_progress');
		`},
		{"idx_component_progress_pair", `CREATE UNIQUE INDEX IF NOT EXISTS idx_component_progress_pair ON component_progress(assignment_id, component_id);`},
		{"idx_outbox_event_pending", `CREATE INDEX IF NOT EXISTS idx_outbox_event_pending ON outbox_event(status, next_attempt_at);`},
	}
	for _, st := range stmts {
		if err := db.Exec(st.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", st.name, err)
		}
	}
	return nil
}
