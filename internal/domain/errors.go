package domain

import "errors"

// Domain errors (no external dependencies).
var (
	ErrNotFound           = errors.New("resource not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email is already registered")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicate          = errors.New("resource already exists")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("access denied")
	ErrConflict           = errors.New("conflict with current state")

	// ErrUnreachable marks a remote call that failed for transient reasons
	// (network, timeout, expired session). Mutations hit by it are queued,
	// never surfaced to the caller.
	ErrUnreachable = errors.New("remote store unreachable")

	// ErrRejected marks a remote call the server refused permanently
	// (validation, constraint violation). Retrying is pointless.
	ErrRejected = errors.New("remote store rejected the operation")

	// ErrMalformedRecord marks a synced record that cannot be read as the
	// typed entity it claims to be (missing timestamp, unparsable amount).
	ErrMalformedRecord = errors.New("malformed record")
)
