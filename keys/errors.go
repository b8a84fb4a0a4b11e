package keys

import "errors"

var (
	// ErrKeyUnavailable is returned when key material cannot be produced
	// for the current operation (wrap/unwrap failure, corrupted row,
	// wrong master key). Fatal for the caller; never a zero key.
	ErrKeyUnavailable = errors.New("conversation key unavailable")

	// ErrKeyExists is returned by the store when an insert raced a
	// concurrent create for the same conversation.
	ErrKeyExists = errors.New("conversation key already exists")

	// ErrKeyConflict is returned by the store when a rotation lost a race
	// and the active version moved underneath it.
	ErrKeyConflict = errors.New("conversation key version conflict")

	// ErrKeyNotFound is returned when no key document exists for the
	// conversation.
	ErrKeyNotFound = errors.New("conversation key not found")
)
