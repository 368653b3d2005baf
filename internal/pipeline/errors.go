package pipeline

import (
	"errors"
	"fmt"
)

// ErrEmptyResult halts a run whose input produced no valid records. The
// store is left untouched.
var ErrEmptyResult = errors.New("no valid records")

// PersistenceError wraps any failure while opening or writing the store.
type PersistenceError struct {
	Store string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist to %s: %v", e.Store, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
