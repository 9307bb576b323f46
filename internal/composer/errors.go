package composer

import (
	"errors"
	"fmt"
)

// ErrRunInFlight is returned by Run when another run is still inside its
// throttle window or submission. The call is dropped, not queued.
var ErrRunInFlight = errors.New("a run is already in flight")

// ErrUDFUnsupported is returned by InsertUDF when the current engine's
// language has no user defined functions.
var ErrUDFUnsupported = errors.New("engine language does not support UDFs")

// ErrNoEngine is returned by Run when no engine is registered.
var ErrNoEngine = errors.New("no query engine available")

// SubmitError wraps an executor failure. The session keeps its buffer and
// engine so the user can retry.
type SubmitError struct {
	EngineID string
	Err      error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit query to engine %q: %v", e.EngineID, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// UnknownEngineError describes a selectEngine call with an unregistered id.
// It is logged and recovered by substituting the default engine.
type UnknownEngineError struct {
	ID       string
	Fallback string
}

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("unknown engine %q, using %q", e.ID, e.Fallback)
}
