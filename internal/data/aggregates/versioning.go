package aggregates

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"

	flowrepos "github.com/yungbote/buddybot-backend/internal/data/repos/flows"
	types "github.com/yungbote/buddybot-backend/internal/domain"
	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

const historyPageSize = 100

type VersionManagerDeps[T any, PT flowrepos.Row[T]] struct {
	Base BaseDeps
	Repo flowrepos.VersionedRepo[T, PT]
	// Name labels operations, e.g. "Flow" yields "Versioning.Flow.Activate".
	Name string
}

// ActivateOptions carries extra column updates written together with the is_active flip.
type ActivateOptions struct {
	TargetUpdates   map[string]any
	PreviousUpdates map[string]any
}

// VersionManager implements domainagg.VersionManager over any versioned table.
// The *Tx methods run inside a caller-owned transaction so other aggregates can compose them.
type VersionManager[T any, PT flowrepos.Row[T]] struct {
	deps VersionManagerDeps[T, PT]
}

var _ domainagg.VersionManager[types.Flow] = (*VersionManager[types.Flow, *types.Flow])(nil)

func NewVersionManager[T any, PT flowrepos.Row[T]](deps VersionManagerDeps[T, PT]) *VersionManager[T, PT] {
	deps.Base = deps.Base.withDefaults()
	if strings.TrimSpace(deps.Name) == "" {
		deps.Name = deps.Repo.Table()
	}
	deps.Base.Log = deps.Base.Log.With("aggregate", "VersionManager", "entity", deps.Name)
	return &VersionManager[T, PT]{deps: deps}
}

func (m *VersionManager[T, PT]) Contract() domainagg.Contract {
	return domainagg.VersionManagerContract
}

func (m *VersionManager[T, PT]) op(name string) string {
	return "Versioning." + m.deps.Name + "." + name
}

func (m *VersionManager[T, PT]) CreateNewVersion(ctx context.Context, originalID uuid.UUID, mutate func(*T) error) (*T, error) {
	op := m.op("CreateNewVersion")
	var out PT
	err := executeWrite(ctx, m.deps.Base, op, func(dbc dbctx.Context) error {
		row, err := m.CreateNewVersionTx(dbc, originalID, mutate)
		if err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return (*T)(out), nil
}

// CreateNewVersionTx copies the active version, or the latest one when none is active,
// into an inactive row numbered max(version)+1. The copy gets a fresh id; slices it shares
// with the source must be replaced rather than edited in place by mutate.
func (m *VersionManager[T, PT]) CreateNewVersionTx(dbc dbctx.Context, originalID uuid.UUID, mutate func(*T) error) (PT, error) {
	op := m.op("CreateNewVersion")
	if originalID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing original_id", nil)
	}
	src, err := m.deps.Repo.GetActive(dbc, originalID)
	if err != nil {
		return nil, err
	}
	if src == nil {
		if src, err = m.deps.Repo.GetLatest(dbc, originalID); err != nil {
			return nil, err
		}
	}
	if src == nil {
		return nil, domainagg.NewEntityError(domainagg.CodeNotFound, op, originalID.String(), fmt.Sprintf("%s not found", m.deps.Name))
	}
	return m.CopyVersionTx(dbc, src, mutate)
}

// CopyVersionTx appends a new inactive version of src's original id with src's content.
func (m *VersionManager[T, PT]) CopyVersionTx(dbc dbctx.Context, src PT, mutate func(*T) error) (PT, error) {
	op := m.op("CreateNewVersion")
	if src == nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing source version", nil)
	}
	originalID := src.Versioning().OriginalID
	maxVersion, err := m.deps.Repo.MaxVersion(dbc, originalID)
	if err != nil {
		return nil, err
	}

	clone := *(*T)(src)
	next := PT(&clone)
	next.SetID(uuid.New())
	next.Versioning().InitNext(originalID, maxVersion, m.deps.Base.Now())
	if mutate != nil {
		if err := mutate((*T)(next)); err != nil {
			return nil, err
		}
	}
	if _, err := m.deps.Repo.Create(dbc, []PT{next}); err != nil {
		return nil, asConcurrencyError(op, err, domainagg.CodeConcurrentModification, originalID.String(), "another version was created concurrently")
	}
	return next, nil
}

func (m *VersionManager[T, PT]) Activate(ctx context.Context, versionID uuid.UUID) (domainagg.ActivationResult, error) {
	var out domainagg.ActivationResult
	err := executeWrite(ctx, m.deps.Base, m.op("Activate"), func(dbc dbctx.Context) error {
		res, err := m.ActivateTx(dbc, versionID, ActivateOptions{})
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// ActivateTx flips is_active onto versionID and off the previously active sibling.
// Both writes are compare-and-set on revision; losing either one, or tripping the
// one-active-per-original unique index, is a concurrent activation. An already active
// target is a no-op.
func (m *VersionManager[T, PT]) ActivateTx(dbc dbctx.Context, versionID uuid.UUID, opts ActivateOptions) (domainagg.ActivationResult, error) {
	op := m.op("Activate")
	var out domainagg.ActivationResult
	if versionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing version id", nil)
	}
	target, err := m.deps.Repo.GetByID(dbc, versionID)
	if err != nil {
		return out, err
	}
	if target == nil {
		return out, domainagg.NewEntityError(domainagg.CodeNotFound, op, versionID.String(), fmt.Sprintf("%s version not found", m.deps.Name))
	}
	meta := target.Versioning()
	now := m.deps.Base.Now()
	out = domainagg.ActivationResult{
		OriginalID:  meta.OriginalID,
		VersionID:   target.GetID(),
		Version:     meta.Version,
		ActivatedAt: now,
	}
	if meta.IsActive {
		out.AlreadyActive = true
		return out, nil
	}

	prev, err := m.deps.Repo.GetActive(dbc, meta.OriginalID)
	if err != nil {
		return out, err
	}
	table := m.deps.Repo.Table()
	if prev != nil && prev.GetID() != target.GetID() {
		updates := mergeUpdates(map[string]any{"is_active": false, "updated_at": now}, opts.PreviousUpdates)
		ok, err := m.deps.Base.CASGuard.UpdateByRevision(dbc, table, prev.GetID(), prev.Versioning().Revision, updates)
		if err == nil {
			err = RequireCASSuccess(ok, "previous active version changed")
		}
		if err != nil {
			return out, m.activationError(op, meta.OriginalID, err)
		}
		prevID := prev.GetID()
		out.PreviousVersionID = &prevID
	}

	updates := mergeUpdates(map[string]any{"is_active": true, "updated_at": now}, opts.TargetUpdates)
	ok, err := m.deps.Base.CASGuard.UpdateByRevision(dbc, table, target.GetID(), meta.Revision, updates)
	if err == nil {
		err = RequireCASSuccess(ok, "target version changed")
	}
	if err != nil {
		return out, m.activationError(op, meta.OriginalID, err)
	}
	return out, nil
}

// DeactivateTx clears is_active on the active version of originalID, if any.
func (m *VersionManager[T, PT]) DeactivateTx(dbc dbctx.Context, originalID uuid.UUID, extra map[string]any) (PT, error) {
	op := m.op("Deactivate")
	active, err := m.deps.Repo.GetActive(dbc, originalID)
	if err != nil || active == nil {
		return nil, err
	}
	updates := mergeUpdates(map[string]any{"is_active": false, "updated_at": m.deps.Base.Now()}, extra)
	ok, err := m.deps.Base.CASGuard.UpdateByRevision(dbc, m.deps.Repo.Table(), active.GetID(), active.Versioning().Revision, updates)
	if err == nil {
		err = RequireCASSuccess(ok, "active version changed")
	}
	if err != nil {
		return nil, asConcurrencyError(op, err, domainagg.CodeConcurrentModification, originalID.String(), "active version changed concurrently")
	}
	return active, nil
}

func (m *VersionManager[T, PT]) activationError(op string, originalID uuid.UUID, err error) error {
	return asConcurrencyError(op, err, domainagg.CodeConcurrentActivation, originalID.String(), "another activation won the race")
}

func (m *VersionManager[T, PT]) GetActive(ctx context.Context, originalID uuid.UUID) (*T, error) {
	op := m.op("GetActive")
	row, err := m.deps.Repo.GetActive(dbctx.Context{Ctx: ctx}, originalID)
	if err != nil {
		return nil, MapError(op, err)
	}
	if row == nil {
		return nil, domainagg.NewEntityError(domainagg.CodeNoActiveVersion, op, originalID.String(), fmt.Sprintf("%s has no active version", m.deps.Name))
	}
	return (*T)(row), nil
}

// History pages through versions lazily. Ranging again re-reads from the store.
func (m *VersionManager[T, PT]) History(ctx context.Context, originalID uuid.UUID) iter.Seq2[*T, error] {
	op := m.op("History")
	return func(yield func(*T, error) bool) {
		dbc := dbctx.Context{Ctx: ctx}
		after := 0
		for {
			page, err := m.deps.Repo.ListVersions(dbc, originalID, after, historyPageSize)
			if err != nil {
				yield(nil, MapError(op, err))
				return
			}
			for _, row := range page {
				if !yield((*T)(row), nil) {
					return
				}
				after = row.Versioning().Version
			}
			if len(page) < historyPageSize {
				return
			}
		}
	}
}

func mergeUpdates(base, extra map[string]any) map[string]any {
	for k, v := range extra {
		base[k] = v
	}
	return base
}
