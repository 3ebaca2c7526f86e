// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrValidation indicates malformed input, rejected before any state change.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication. The message deliberately
	// does not distinguish an unknown user from a wrong password.
	ErrUnauthorized = errors.New("incorrect username or password")

	// ErrRateLimited indicates a login rejected by brute-force protection.
	ErrRateLimited = errors.New("too many login attempts")

	// ErrAckRequired indicates the legal authorization acknowledgment has not
	// been recorded; all evidentiary operations are blocked until it is.
	ErrAckRequired = errors.New("authorization acknowledgment required")

	// ErrAckMismatch indicates a submitted acknowledgment text does not match
	// the required text.
	ErrAckMismatch = errors.New("acknowledgment text mismatch")

	// ErrModuleNotFound indicates an unknown tool name on a job.
	ErrModuleNotFound = errors.New("module not found")

	// ErrEvidenceMissing indicates the vault file is absent despite a database
	// record pointing at it.
	ErrEvidenceMissing = errors.New("evidence file missing")

	// ErrTerminalState indicates an attempt to transition a job that already
	// reached COMPLETED or FAILED.
	ErrTerminalState = errors.New("job already in terminal state")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")
)
