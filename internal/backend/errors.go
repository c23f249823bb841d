package backend

import "fmt"

// ErrTransport indicates the chat stream could not be opened or read, or
// the backend reported an in-band stream error.
type ErrTransport struct {
	Err error
}

func (e *ErrTransport) Error() string {
	return fmt.Sprintf("chat transport failed: %v", e.Err)
}

func (e *ErrTransport) Unwrap() error { return e.Err }

// ErrGenerate indicates a quiz generate call failed or returned a malformed
// payload. The orchestrator marks the instance errored and does not retry.
type ErrGenerate struct {
	Variant string
	Err     error
}

func (e *ErrGenerate) Error() string {
	return fmt.Sprintf("generate %s quiz: %v", e.Variant, e.Err)
}

func (e *ErrGenerate) Unwrap() error { return e.Err }

// ErrValidate indicates a quiz validate call failed. Surfaced to the caller
// so the presentation layer can offer a retry, not silently swallowed.
type ErrValidate struct {
	Variant string
	Err     error
}

func (e *ErrValidate) Error() string {
	return fmt.Sprintf("validate %s answer: %v", e.Variant, e.Err)
}

func (e *ErrValidate) Unwrap() error { return e.Err }
