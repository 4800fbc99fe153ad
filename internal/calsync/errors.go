package calsync

import (
	"errors"
	"fmt"

	"github.com/Tiliavir/schedsync/internal/eventid"
)

// Error kinds. Callers branch with errors.Is on these.
var (
	ErrNotFound            = errors.New("not found")
	ErrAuth                = errors.New("no valid remote calendar token")
	ErrRemoteAPI           = errors.New("remote calendar request failed")
	ErrGeneratorExhausted  = eventid.ErrExhausted
	ErrMalformedRemoteData = errors.New("malformed remote event")
	ErrInvalidInput        = errors.New("invalid input")
	ErrStorage             = errors.New("local storage failure")
)

// Error reports a failed sync operation. Kind is one of the package error
// kinds; Err is the underlying cause and may be nil.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func opError(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}
