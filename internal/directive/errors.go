package directive

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks Initialize failures caused by argument values.
var ErrInvalidArgument = errors.New("invalid argument")

// ExecutionError is returned by a directive that cannot transform a row.
type ExecutionError struct {
	Directive string
	Message   string
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Directive, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Directive, e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Errorf builds an ExecutionError for the named directive.
func Errorf(name, format string, args ...any) error {
	return &ExecutionError{Directive: name, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an ExecutionError around a lower-level cause.
func Wrap(name string, err error, format string, args ...any) error {
	return &ExecutionError{Directive: name, Message: fmt.Sprintf(format, args...), Err: err}
}

// InvalidArgf reports a bad argument value from Initialize.
func InvalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
