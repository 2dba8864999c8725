package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// TransientError marks a failure worth retrying: I/O hiccups, timeouts,
// anything where the same input may succeed on a later attempt.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. Returns nil if err is nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// LimitError marks a document rejected by a hard limit. Never retried:
// the input cannot shrink on its own.
type LimitError struct {
	Limit  int64
	Actual int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("document size %d exceeds limit %d", e.Actual, e.Limit)
}

// IsTransient checks whether an error is worth retrying. Context errors are
// never transient, even wrapped: a document that exhausted its time budget
// or a canceled run must not consume retry attempts.
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransientError
	return errors.As(err, &te)
}
