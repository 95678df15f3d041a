package provider

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned by any operation attempted before the
// one-time authentication and session handshake have completed.
var ErrNotInitialized = errors.New("provider session not initialized")

// QueryError wraps a failed provider render or statistics call. It is
// surfaced to the caller verbatim and never retried.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
