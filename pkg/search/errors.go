package search

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is matched (errors.Is) by every ArgumentError.
var ErrInvalidArgument = errors.New("invalid argument")

// ArgumentError reports a bad argument detected while building a chain,
// before any record is evaluated.
type ArgumentError struct {
	Name   string
	Reason string
	Err    error
}

func (e *ArgumentError) Error() string {
	msg := fmt.Sprintf("invalid argument %s: %s", e.Name, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

func (e *ArgumentError) Unwrap() error { return e.Err }

func invalidArg(name, reason string, err error) error {
	return &ArgumentError{Name: name, Reason: reason, Err: err}
}
