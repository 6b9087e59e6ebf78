package aggregates

import (
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

// CASGuard performs compare-and-set updates on versioned flow rows.
// Every applied update bumps revision, so writers that read the same
// revision cannot both succeed.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

// UpdateByRevision applies updates when the row still carries expectedRevision.
// false means another writer got there first.
func (g CASGuard) UpdateByRevision(dbc dbctx.Context, table string, id uuid.UUID, expectedRevision int, updates map[string]any) (bool, error) {
	if expectedRevision <= 0 {
		return false, ValidationError("expectedRevision must be > 0")
	}
	return g.apply(dbc, table, id, updates, "revision = ?", expectedRevision)
}

// UpdateByStatus applies updates when the row is still in one of allowed.
func (g CASGuard) UpdateByStatus(dbc dbctx.Context, table string, id uuid.UUID, allowed []string, updates map[string]any) (bool, error) {
	if len(allowed) == 0 {
		return false, ValidationError("allowed statuses must not be empty")
	}
	return g.apply(dbc, table, id, updates, "status IN ?", allowed)
}

func (g CASGuard) apply(dbc dbctx.Context, table string, id uuid.UUID, updates map[string]any, cond string, arg any) (bool, error) {
	var conn *gorm.DB
	switch {
	case dbc.Tx != nil:
		conn = dbc.Tx
	case g.db != nil:
		conn = g.db
	default:
		return false, ValidationError("guarded update needs a transaction or db")
	}
	table = strings.TrimSpace(table)
	if table == "" || id == uuid.Nil {
		return false, ValidationError("guarded update needs a table and row id")
	}

	set := maps.Clone(updates)
	if set == nil {
		set = map[string]any{}
	}
	set["revision"] = gorm.Expr("revision + 1")
	if _, ok := set["updated_at"]; !ok {
		set["updated_at"] = time.Now().UTC()
	}
	res := conn.WithContext(dbc.Ctx).Table(table).Where("id = ?", id).Where(cond, arg).Updates(set)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RequireCASSuccess turns a lost compare-and-set into a conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}
