package interp

import (
	"errors"
	"fmt"
)

// Execution failures. All four abort the Execute call at the point of
// detection; the tape and operation counter keep their state at failure.
var (
	// ErrUnclosedLoop indicates a '[' whose forward skip scan reached the
	// end of the program without finding a ']'.
	ErrUnclosedLoop = errors.New("unclosed loop")

	// ErrUnopenedLoop indicates a ']' with no open loop on the stack.
	ErrUnopenedLoop = errors.New("unopened loop")

	// ErrBudgetExceeded indicates the total operation counter passed the
	// configured ceiling. This is a resource guard, not a malformed-program
	// signal: the program may be perfectly valid and merely long-running.
	ErrBudgetExceeded = errors.New("operation budget exceeded")
)

// PositionError wraps an execution failure with the program position at
// which it was detected. Use errors.Is against the sentinel errors above
// (or ErrTapeUnderflow) to classify the failure.
type PositionError struct {
	Pos int   // index into the program
	Err error // underlying failure
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("%v at position %d", e.Err, e.Pos)
}

func (e *PositionError) Unwrap() error {
	return e.Err
}
