package aggregates

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

// TxRunner scopes one aggregate write to a single database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

// NewGormTxRunner opens transactions on db. If db is itself a transaction the
// write nests as a savepoint.
func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) (err error) {
	const op = "Flows.Tx"
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "no database configured", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// gorm has already rolled back by the time the panic reaches us.
	defer func() {
		if p := recover(); p != nil {
			err = domainagg.NewError(domainagg.CodeInternal, op, fmt.Sprintf("write panicked: %v", p), nil)
		}
	}()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}
