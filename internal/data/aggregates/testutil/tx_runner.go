package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/buddybot-backend/internal/data/aggregates"
	"github.com/yungbote/buddybot-backend/internal/pkg/dbctx"
)

// InjectedTxRunner wraps a runner and injects begin/commit failures.
//
// With Inner set, the body runs inside a real transaction and an injected commit
// failure is returned from inside it, so the store rolls the body's writes back.
type InjectedTxRunner struct {
	mu sync.Mutex

	Inner aggregates.TxRunner

	FailBegin  error
	FailCommit error
	// FailCommitOnCall restricts FailCommit to the n-th InTx call (1-based). 0 means every call.
	FailCommitOnCall int

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	call := r.BeginCalls
	failBegin := r.FailBegin
	failCommit := r.FailCommit
	if r.FailCommitOnCall > 0 && r.FailCommitOnCall != call {
		failCommit = nil
	}
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	body := func(dbc dbctx.Context) error {
		if fn != nil {
			if err := fn(dbc); err != nil {
				return err
			}
		}
		return failCommit
	}

	var err error
	if r.Inner != nil {
		err = r.Inner.InTx(ctx, body)
	} else {
		err = body(dbctx.Context{Ctx: ctx})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.RollbackCalls++
		return err
	}
	r.CommitCalls++
	return nil
}
