package client

import (
	"errors"
	"fmt"

	"github.com/adamwoolhether/asynchttp/client/engine"
)

var (
	ErrResponseUnavailable = errors.New("response unavailable")
	ErrClosed              = errors.New("client closed")
	ErrInvalidConfig       = errors.New("invalid request config")
	ErrCancelled           = errors.New("operation cancelled")
	ErrCallbackPanic       = errors.New("callback panicked")
)

// Error describes why a request did not complete successfully.
type Error struct {
	Status  Status
	Code    engine.Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Status.String()
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PanicError carries a value recovered from a handler or callback.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	return ErrCallbackPanic
}
