package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a session ID is unknown to the engine.
var ErrSessionNotFound = errors.New("session not found")

// ErrSnapshotNotFound is returned by a SnapshotStore when no snapshot exists for a key.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrLeadNotFound is returned by a lead store when no lead exists for a session.
var ErrLeadNotFound = errors.New("lead not found")

// ErrSessionComplete is returned when a navigation event reaches a finished session.
var ErrSessionComplete = errors.New("session already complete")

// ErrContactRequired is returned when a questionnaire event reaches a session
// that has not captured contact details yet (or retreated back to capture).
var ErrContactRequired = errors.New("contact capture required")

// ErrNotComplete is returned when a result is requested before the terminal transition.
var ErrNotComplete = errors.New("session not complete")

// ValidationError is a user-facing answer or contact problem.
// It blocks forward navigation and never modifies stored responses.
type ValidationError struct {
	QuestionID string // Empty for contact validation
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.QuestionID == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("question %q: %s", e.QuestionID, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// CatalogIntegrityError reports a misconfigured catalog (dangling or backward
// branch targets, unknown question during scoring, ...). It is developer-facing.
type CatalogIntegrityError struct {
	Problems []string
}

func (e *CatalogIntegrityError) Error() string {
	if len(e.Problems) == 1 {
		return "catalog integrity: " + e.Problems[0]
	}
	return fmt.Sprintf("catalog integrity: %d problems:\n- %s", len(e.Problems), strings.Join(e.Problems, "\n- "))
}

// NewIntegrityError builds a CatalogIntegrityError with a single problem.
func NewIntegrityError(format string, args ...any) *CatalogIntegrityError {
	return &CatalogIntegrityError{Problems: []string{fmt.Sprintf(format, args...)}}
}

// IsIntegrity reports whether err is (or wraps) a CatalogIntegrityError.
func IsIntegrity(err error) bool {
	var c *CatalogIntegrityError
	return errors.As(err, &c)
}

// PersistenceWriteError wraps a failed snapshot or submission write.
// It is recoverable: callers convert it into a Notice.
type PersistenceWriteError struct {
	Op  string // "snapshot", "submit", "report", "delete"
	Err error
}

func (e *PersistenceWriteError) Error() string {
	return fmt.Sprintf("%s write failed: %v", e.Op, e.Err)
}

func (e *PersistenceWriteError) Unwrap() error {
	return e.Err
}
