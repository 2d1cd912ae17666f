package core

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrEngineOpen = errors.New("engine open error")
	ErrExecution  = errors.New("engine execution error")
	ErrIngest     = errors.New("ingest error")
)

// Error carries a failure kind next to its cause. The message is the cause's
// message so engine errors reach the client verbatim.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func Validation(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Err: fmt.Errorf(format, args...)}
}

func EngineOpen(name string, err error) error {
	return &Error{Kind: ErrEngineOpen, Err: fmt.Errorf("cannot open database %q: %w", name, err)}
}

func Execution(err error) error {
	return &Error{Kind: ErrExecution, Err: err}
}

// Ingest marks err as an import failure unless it already carries a kind.
func Ingest(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: ErrIngest, Err: err}
}

// KindOf returns the kind sentinel of err, or nil for unclassified errors.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}
