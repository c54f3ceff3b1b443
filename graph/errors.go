package graph

import (
	"errors"
	"fmt"

	"github.com/c360studio/forgebridge/vocabulary"
)

// Common graph errors.
var (
	// ErrNotFound is returned when an entity id resolves to nothing.
	ErrNotFound = errors.New("entity not found")

	// ErrDanglingEdge is returned when a required edge endpoint is neither
	// in the store nor in the proposal batch. Dangling edges are never
	// persisted.
	ErrDanglingEdge = errors.New("dangling edge reference")

	// ErrWriteConflict is returned after bounded retries fail to serialize
	// a write against concurrent writers on overlapping natural keys. The
	// caller may re-issue the whole push.
	ErrWriteConflict = errors.New("write conflict")
)

// InvariantViolation reports a mutation that would break a structural
// invariant. The batch it belongs to is rejected whole; nothing is
// partially applied.
type InvariantViolation struct {
	EntityType vocabulary.EntityType
	Name       string
	Rule       string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation on %s %q: %s", e.EntityType, e.Name, e.Rule)
}

// IsInvariantViolation reports whether err is an InvariantViolation.
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}
