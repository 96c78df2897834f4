package primitives

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a value outside its documented domain.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrReentrantUpdate reports a Graph update started while one is running.
	ErrReentrantUpdate = errors.New("graph update is already in progress")
	// ErrFrameOrder reports a frame id that does not increase.
	ErrFrameOrder = errors.New("frame id must increase monotonically")
	// ErrTimelineModified reports a structural change to an event sequence
	// while it was being walked.
	ErrTimelineModified = errors.New("event sequence modified during iteration")
	// ErrEventOutOfRange reports a looping event outside [0, 1).
	ErrEventOutOfRange = errors.New("event time out of range")
	// ErrStaleHandle reports use of a destroyed node.
	ErrStaleHandle = errors.New("stale node handle")
	// ErrCapacityExceeded reports a hard limit that calls for a usage change.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

// ProgrammerError is a fail-fast error caused by misuse of the API. It is
// returned by operations that already return errors and used as the panic
// value by setters that do not.
type ProgrammerError struct {
	Op  string
	Err error
	Msg string
}

func (e *ProgrammerError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Msg)
}

func (e *ProgrammerError) Unwrap() error { return e.Err }

// Misuse builds a ProgrammerError.
func Misuse(op string, err error, format string, args ...any) *ProgrammerError {
	return &ProgrammerError{Op: op, Err: err, Msg: fmt.Sprintf(format, args...)}
}

// CallbackError wraps a failure raised by an isolated callback: an event
// callback, an updatable or a command. The graph reports it and carries on.
type CallbackError struct {
	Source string
	Frame  uint64
	Err    error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback %s failed at frame %d: %v", e.Source, e.Frame, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// PanicError carries a recovered panic value.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error, so
// errors.Is(err, ErrTimelineModified) works through a recovered panic.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsProgrammerError reports whether err wraps a *ProgrammerError.
func IsProgrammerError(err error) bool {
	var pe *ProgrammerError
	return errors.As(err, &pe)
}
