package flows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/buddybot-backend/internal/domain/versioning"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

// Row constrains T to versioned rows addressed through *T.
type Row[T any] interface {
	*T
	versioning.Entity
}

// VersionedRepo holds the queries every versioned table shares.
// Writes that must be conditional go through the aggregate CAS guard instead.
type VersionedRepo[T any, PT Row[T]] interface {
	Table() string
	Create(dbc dbctx.Context, rows []PT) ([]PT, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (PT, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]PT, error)
	GetActive(dbc dbctx.Context, originalID uuid.UUID) (PT, error)
	GetLatest(dbc dbctx.Context, originalID uuid.UUID) (PT, error)
	MaxVersion(dbc dbctx.Context, originalID uuid.UUID) (int, error)
	ListVersions(dbc dbctx.Context, originalID uuid.UUID, afterVersion int, limit int) ([]PT, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type versionedRepo[T any, PT Row[T]] struct {
	db    *gorm.DB
	log   *logger.Logger
	table string
}

func newVersionedRepo[T any, PT Row[T]](db *gorm.DB, baseLog *logger.Logger, name string) *versionedRepo[T, PT] {
	var zero T
	return &versionedRepo[T, PT]{
		db:    db,
		log:   baseLog.With("repo", name),
		table: PT(&zero).TableName(),
	}
}

func (r *versionedRepo[T, PT]) Table() string { return r.table }

func (r *versionedRepo[T, PT]) Create(dbc dbctx.Context, rows []PT) ([]PT, error) {
	if len(rows) == 0 {
		return []PT{}, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.GetID() == uuid.Nil {
			row.SetID(uuid.New())
		}
		meta := row.Versioning()
		if meta.OriginalID == uuid.Nil || meta.Version <= 0 {
			return nil, fmt.Errorf("%s: original_id and version are required", r.table)
		}
		if meta.Revision <= 0 {
			meta.Revision = 1
		}
		if meta.CreatedAt.IsZero() {
			meta.CreatedAt = now
		}
		if meta.UpdatedAt.IsZero() {
			meta.UpdatedAt = meta.CreatedAt
		}
	}
	if err := dbc.Handle(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *versionedRepo[T, PT]) GetByID(dbc dbctx.Context, id uuid.UUID) (PT, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []PT
	if err := dbc.Handle(r.db).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *versionedRepo[T, PT]) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]PT, error) {
	if len(ids) == 0 {
		return []PT{}, nil
	}
	var out []PT
	if err := dbc.Handle(r.db).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *versionedRepo[T, PT]) GetActive(dbc dbctx.Context, originalID uuid.UUID) (PT, error) {
	if originalID == uuid.Nil {
		return nil, nil
	}
	var out []PT
	if err := dbc.Handle(r.db).
		Where("original_id = ? AND is_active = ?", originalID, true).
		Order("version DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *versionedRepo[T, PT]) GetLatest(dbc dbctx.Context, originalID uuid.UUID) (PT, error) {
	if originalID == uuid.Nil {
		return nil, nil
	}
	var out []PT
	if err := dbc.Handle(r.db).
		Where("original_id = ?", originalID).
		Order("version DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *versionedRepo[T, PT]) MaxVersion(dbc dbctx.Context, originalID uuid.UUID) (int, error) {
	if originalID == uuid.Nil {
		return 0, nil
	}
	var maxVersion int
	if err := dbc.Handle(r.db).
		Table(r.table).
		Where("original_id = ?", originalID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&maxVersion).Error; err != nil {
		return 0, err
	}
	return maxVersion, nil
}

// ListVersions pages versions in ascending order starting after afterVersion.
func (r *versionedRepo[T, PT]) ListVersions(dbc dbctx.Context, originalID uuid.UUID, afterVersion int, limit int) ([]PT, error) {
	if originalID == uuid.Nil {
		return []PT{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []PT
	if err := dbc.Handle(r.db).
		Where("original_id = ? AND version > ?", originalID, afterVersion).
		Order("version ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *versionedRepo[T, PT]) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.Handle(r.db).
		Table(r.table).
		Where("id = ?", id).
		Updates(updates).Error
}
