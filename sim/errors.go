package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrClauseType is wrapped by every ClauseTypeError.
	ErrClauseType = errors.New("incorrect wait clause")

	// ErrInvalidArgument is wrapped by every InvalidArgumentError.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPastEvent is returned when scheduling before the current time.
	ErrPastEvent = errors.New("cannot schedule event in the past")

	// ErrTimeOverflow is returned when a run would end beyond the largest
	// representable time.
	ErrTimeOverflow = errors.New("time overflow")
)

// A ClauseTypeError reports a malformed wait clause. It ends the run.
type ClauseTypeError struct {
	TaskID  string
	Trigger Trigger
	Reason  string
}

func (e *ClauseTypeError) Error() string {
	msg := fmt.Sprintf("sim: %s: %s", ErrClauseType, e.Reason)
	if e.Trigger != nil {
		msg += fmt.Sprintf(" (%T)", e.Trigger)
	}

	if e.TaskID != "" {
		msg += " in task " + e.TaskID
	}

	return msg
}

func (e *ClauseTypeError) Unwrap() error {
	return ErrClauseType
}

// An InvalidArgumentError reports a construction argument that is neither a
// process nor a collection of processes.
type InvalidArgumentError struct {
	// Path locates the argument, e.g. "2" or "2.0" for the first element of
	// the third argument.
	Path  string
	Value any
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("sim: %s at %s: %T is not a process",
		ErrInvalidArgument, e.Path, e.Value)
}

func (e *InvalidArgumentError) Unwrap() error {
	return ErrInvalidArgument
}
