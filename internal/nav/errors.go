package nav

import (
	"errors"
	"fmt"
)

// Failure reasons reported by Start and Tick. Compare with errors.Is.
var (
	// ErrBusy: the destination cell or target is already reserved.
	ErrBusy = errors.New("nav: destination busy")
	// ErrImpossible: every branch at every depth is obstructed.
	ErrImpossible = errors.New("nav: no route to destination")
	// ErrIterationLimit: the search reached its depth bound.
	ErrIterationLimit = errors.New("nav: search depth limit reached")
	// ErrMoveBlocked: the unit made no progress past the watchdog limits.
	ErrMoveBlocked = errors.New("nav: movement blocked")
	// ErrInvalidTarget: the destination entity no longer exists.
	ErrInvalidTarget = errors.New("nav: invalid target")
	// ErrUnknownHandle: the handle was never issued or was aborted.
	ErrUnknownHandle = errors.New("nav: unknown handle")
)

// FailError is the terminal error of one navigation attempt.
type FailError struct {
	Reason error
	Unit   EntityID
	Phase  Phase // phase in which the failure was detected
}

func (e *FailError) Error() string {
	return fmt.Sprintf("unit %d in %s: %v", e.Unit, e.Phase, e.Reason)
}

func (e *FailError) Unwrap() error { return e.Reason }

func failure(unit EntityID, phase Phase, reason error) *FailError {
	return &FailError{Reason: reason, Unit: unit, Phase: phase}
}
