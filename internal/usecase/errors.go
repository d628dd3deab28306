package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrExternal   = errors.New("external service failed")
	ErrDuplicate  = errors.New("duplicate idempotency key")
)

// OpError ties a failure to the action that was attempted. Kind is one of
// the sentinels above so callers can branch with errors.Is.
type OpError struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return e.Op + ": " + e.Msg
}

func (e *OpError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func invalid(op, msg string) error { return &OpError{Op: op, Kind: ErrValidation, Msg: msg} }

func forbidden(op, msg string) error { return &OpError{Op: op, Kind: ErrForbidden, Msg: msg} }

func notFound(op, msg string) error { return &OpError{Op: op, Kind: ErrNotFound, Msg: msg} }

func external(op, msg string, err error) error {
	return &OpError{Op: op, Kind: ErrExternal, Msg: msg, Err: err}
}

// storeErr classifies a store failure; not-found stays not-found.
func storeErr(op, msg string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return &OpError{Op: op, Kind: ErrNotFound, Msg: msg, Err: err}
	}
	return external(op, msg, err)
}
