package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/buddybot-backend/internal/domain/aggregates"
)

// kind tags an error raised inside a write body with the code MapError gives it.
type kind struct {
	code domainagg.ErrorCode
	msg  string
}

func (k *kind) Error() string { return k.msg }

// ErrConflict marks a lost compare-and-set. Retrying writes rerun the body on it.
var (
	ErrValidation = &kind{code: domainagg.CodeValidation, msg: "flow write rejected"}
	ErrInvariant  = &kind{code: domainagg.CodeInvariantViolation, msg: "flow invariant broken"}
	ErrConflict   = &kind{code: domainagg.CodeConflict, msg: "flow row changed underneath"}
	ErrRetryable  = &kind{code: domainagg.CodeRetryable, msg: "flow write hit a transient failure"}
)

func tagged(k *kind, msg string) error {
	return errors.Join(k, errors.New(strings.TrimSpace(msg)))
}

func ValidationError(msg string) error { return tagged(ErrValidation, msg) }
func InvariantError(msg string) error  { return tagged(ErrInvariant, msg) }
func ConflictError(msg string) error   { return tagged(ErrConflict, msg) }
func RetryableError(msg string) error  { return tagged(ErrRetryable, msg) }

// pgCodes covers the SQLSTATEs the flow tables can raise.
var pgCodes = map[string]domainagg.ErrorCode{
	"23505": domainagg.CodeConflict,           // unique_violation
	"23503": domainagg.CodePreconditionFailed, // foreign_key_violation
	"40001": domainagg.CodeRetryable,          // serialization_failure
	"40P01": domainagg.CodeRetryable,          // deadlock_detected
	"55P03": domainagg.CodeRetryable,          // lock_not_available
}

// sqliteHints matches driver messages that carry no structured code.
var sqliteHints = []struct {
	fragment string
	code     domainagg.ErrorCode
}{
	{"unique constraint failed", domainagg.CodeConflict},
	{"duplicate key", domainagg.CodeConflict},
	{"already exists", domainagg.CodeConflict},
	{"database is locked", domainagg.CodeRetryable},
	{"deadlock", domainagg.CodeRetryable},
	{"serialization", domainagg.CodeRetryable},
	{"timeout", domainagg.CodeRetryable},
	{"temporar", domainagg.CodeRetryable},
}

// MapError gives err an aggregate error code. Errors that already carry one pass through.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) {
		return err
	}
	return domainagg.Wrap(classify(err), op, err)
}

func classify(err error) domainagg.ErrorCode {
	var k *kind
	if errors.As(err, &k) {
		return k.code
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domainagg.CodeNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domainagg.CodeConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domainagg.CodeRetryable
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, ok := pgCodes[strings.TrimSpace(pgErr.Code)]; ok {
			return code
		}
	}
	msg := strings.ToLower(err.Error())
	for _, h := range sqliteHints {
		if strings.Contains(msg, h.fragment) {
			return h.code
		}
	}
	return domainagg.CodeInternal
}

func isConflict(op string, err error) bool {
	return domainagg.IsCode(MapError(op, err), domainagg.CodeConflict)
}

// asConcurrencyError reports a lost race under code. Other errors are returned as is.
func asConcurrencyError(op string, err error, code domainagg.ErrorCode, entityID, msg string) error {
	if err == nil || !isConflict(op, err) {
		return err
	}
	return &domainagg.Error{Code: code, Op: op, Message: msg, EntityID: entityID, Cause: err}
}
