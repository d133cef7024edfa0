package pipeline

import "fmt"

// InputError indicates malformed input to the redactor. Fatal for the call,
// never retried, nothing is persisted.
type InputError struct {
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %v", e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// InternalError wraps an unexpected failure with the stage it came from. Any
// error a stage does not define for itself is wrapped and re-raised to the
// caller rather than swallowed.
type InternalError struct {
	Stage string
	Err   error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s stage: %v", e.Stage, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }
