package coordinator

import (
	"errors"
	"fmt"
)

// ErrNotAcquired is the sentinel for a lock or flag that was already held;
// it is not a fault. SetNX itself reports that case through its boolean
// result rather than by returning this error.
var ErrNotAcquired = errors.New("coordinator: lock or flag already held")

// Fault classifies a coordinator error as transient (network/timeout —
// safe to retry on the next trigger) or permanent (bad arguments, a
// programmer error). Callers inside absorb downgrade transient faults to a
// logged no-op; callers inside append surface them directly, matching the
// teacher's own fault-wrapping style around ent/pgx errors.
type Fault int

const (
	FaultTransient Fault = iota
	FaultPermanent
)

// Error wraps a low-level coordinator transport error with enough context
// for callers to log and classify it without inspecting the driver's error
// types directly.
type Error struct {
	Op    string
	Key   string
	Fault Fault
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("coordinator: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a coordinator.Error classified as
// transient.
func IsTransient(err error) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Fault == FaultTransient
	}
	return false
}

func newFault(op, key string, fault Fault, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Key: key, Fault: fault, Err: err}
}
