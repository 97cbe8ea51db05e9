package riscvdv

import (
	"errors"
	"fmt"
)

// FatalConfigError reports a generation failure caused by an unsatisfiable
// or inconsistent configuration. Callers must not retry; the whole run is
// aborted.
type FatalConfigError struct {
	Op     string
	Reason string
}

func (e *FatalConfigError) Error() string {
	return fmt.Sprintf("fatal: %s: %s", e.Op, e.Reason)
}

func fatalf(op, format string, args ...interface{}) *FatalConfigError {
	return &FatalConfigError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// IsFatal reports whether err carries a FatalConfigError.
func IsFatal(err error) bool {
	var fe *FatalConfigError
	return errors.As(err, &fe)
}

var (
	// ErrNoInsertPoint is returned when a stream cannot be spliced in
	// without breaking an atomic group.
	ErrNoInsertPoint = errors.New("no non-atomic instruction to insert before")
	// ErrAlreadyRendered is returned when a sequence is rendered twice.
	ErrAlreadyRendered = errors.New("instruction stream already rendered")
	// ErrAlreadyPostProcessed is returned when post-processing runs twice.
	ErrAlreadyPostProcessed = errors.New("instruction stream already post-processed")
)
