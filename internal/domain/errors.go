package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPool is returned when the question fetch succeeded but yielded
	// zero usable questions. Distinct from a transport failure so the UI can
	// say "no active questions configured" instead of retrying.
	ErrEmptyPool = errors.New("no active questions configured")
	// ErrRandomSampleUnsupported signals that a question source has no
	// server-side random-sample primitive. The sampler treats this as the
	// named fallback trigger, not a failure.
	ErrRandomSampleUnsupported = errors.New("random sampling not supported by this source")
	// ErrRoundIncomplete rejects recording a round before every question is answered.
	ErrRoundIncomplete = errors.New("round is not complete: every question must be answered")
	// ErrRoundNotFound is returned when a round ID has no live round behind it.
	ErrRoundNotFound = errors.New("round not found")
)

// SourceUnavailableError reports that both the primary random-sample path and
// the full-pool fallback failed. Both causes are kept so neither gets
// silently swallowed.
type SourceUnavailableError struct {
	Primary  error
	Fallback error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("question source unavailable: primary: %v; fallback: %v", e.Primary, e.Fallback)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Fallback }

// PersistenceError wraps a failed attempt-store operation. Writes are
// best-effort (the computed result is still shown); aggregation reads treat
// it as fatal for that view.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("attempt store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
