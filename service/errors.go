package service

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError rejects an operation before anything is written. It is
// never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// LedgerRejectedError wraps a wallet-side rejection or an on-chain revert.
// The underlying reason is surfaced verbatim and the operation is never
// retried automatically.
type LedgerRejectedError struct {
	Stage string
	Err   error
}

func (e *LedgerRejectedError) Error() string {
	return fmt.Sprintf("ledger rejected %s: %v", e.Stage, e.Err)
}

func (e *LedgerRejectedError) Unwrap() error { return e.Err }

// ErrIdentifierExtraction means a creation receipt was mined but carried no
// recognizable goal-creation event. The draft it leaves behind may have funds
// escrowed on-chain with no usable record, so this is surfaced loudly and
// never swallowed.
var ErrIdentifierExtraction = errors.New("receipt mined but no recognized goal-creation event found")

// ErrOperationInFlight enforces one outstanding ledger operation per goal.
var ErrOperationInFlight = errors.New("a ledger operation for this goal is still awaiting confirmation")

var ErrGoalNotBound = errors.New("goal has no on-chain id yet")

var ErrGoalNotActive = errors.New("goal is not active")
