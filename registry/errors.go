package registry

import "errors"

// Common registry errors.
var (
	// ErrUnmappedTerm is returned when an endpoint term has no mapping and
	// no built-in default applies.
	ErrUnmappedTerm = errors.New("unmapped term")

	// ErrDuplicateType is returned when an entity type is re-registered
	// with a different schema or trait set.
	ErrDuplicateType = errors.New("duplicate entity type")

	// ErrDuplicateRole is returned when a role is re-registered with a
	// conflicting definition within its role class.
	ErrDuplicateRole = errors.New("duplicate role")

	// ErrBreakingChangeRejected is returned when a rename or remove
	// proposal is not asserted as a major-version change.
	ErrBreakingChangeRejected = errors.New("breaking change rejected")

	// ErrProtectedEntry is returned when a proposal targets a built-in
	// vocabulary entry that cannot be removed.
	ErrProtectedEntry = errors.New("protected vocabulary entry")

	// ErrUnknownEntry is returned when a proposal targets a vocabulary
	// entry that does not exist.
	ErrUnknownEntry = errors.New("unknown vocabulary entry")
)
