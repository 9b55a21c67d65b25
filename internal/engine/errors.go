package engine

import (
	"errors"
	"fmt"
)

// --- Error Definitions ---
var (
	// ErrConflict signals lock or write contention; the whole submission is
	// safe to retry.
	ErrConflict = errors.New("concurrent submission conflict, retry")

	// ErrStateNotFound is returned by read-only queries for users who have
	// never submitted a workout.
	ErrStateNotFound = errors.New("reward state not found")
)

// ValidationError rejects a malformed submission before any state is
// touched. The caller can correct the input and resubmit.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a datastore failure. The pipeline aborts with no
// partial writes; the caller may retry the whole submission.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ConfigError marks a bad achievement catalog entry. It is logged and the
// entry is skipped; it never fails a submission.
type ConfigError struct {
	AchievementID string
	Reason        string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("achievement config error [%s]: %s", e.AchievementID, e.Reason)
}
