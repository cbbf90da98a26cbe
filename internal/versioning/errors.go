// internal/versioning/errors.go
//
// Typed failures of the version state machine.
//
// Context
// -------
// Three failure families cross the service boundary as typed errors so the
// orchestration layer can translate them into user-facing messages:
//
//   - NotFoundError — site or version missing, or version belongs to a
//     different site.
//   - StateError    — the operation is forbidden from the current state,
//     e.g. publishing a version that is not a draft.
//   - oplock.Conflict — stale lock counter (defined next to the guard).
//
// Field-level validation errors never appear here: the form processor
// returns them as data before the service runs.  Everything else is an
// infrastructure error, wrapped with %w, logged, and fatal to the
// operation.
package versioning

import (
	"errors"
	"fmt"
)

// ErrSlugUnavailable is returned when the reservation collaborator rejects
// the slug pair during publish.  The whole transaction is rolled back.
var ErrSlugUnavailable = errors.New("versioning: slug pair is not available")

// NotFoundError identifies a missing site or version.  Kind is "site" or
// "version".
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("versioning: %s %s not found", e.Kind, e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// StateError identifies an operation attempted from a state that forbids
// it.  The message is safe to show verbatim after translation at the
// boundary.
type StateError struct {
	Op     string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("versioning: %s: %s", e.Op, e.Reason)
}

// IsState reports whether err is (or wraps) a StateError.
func IsState(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}
