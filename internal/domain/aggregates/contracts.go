package aggregates

// ConcurrencyPolicy decides what a write does after losing a revision race.
type ConcurrencyPolicy string

const (
	// ConcurrencyFailFast reports the first lost race to the caller.
	ConcurrencyFailFast ConcurrencyPolicy = "fail_fast"
	// ConcurrencyRetryOnce reruns the whole read, validate, write body one more time.
	ConcurrencyRetryOnce ConcurrencyPolicy = "retry_once"
)

// Contract names a flow write boundary and how it handles races.
// Every write method of an aggregate runs in its own transaction.
type Contract struct {
	Name        string
	Concurrency ConcurrencyPolicy
	Notes       string
}

type Aggregate interface {
	Contract() Contract
}

// MaxAttempts is the number of times a write body may run under c.
func (c Contract) MaxAttempts() int {
	if c.Concurrency == ConcurrencyRetryOnce {
		return 2
	}
	return 1
}
