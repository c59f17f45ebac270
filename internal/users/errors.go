package users

import "errors"

var (
	// ErrAuthFailed is returned by Login for both an unknown/inactive
	// username and a wrong password — the two must be indistinguishable
	// per spec.md §8's boundary behavior.
	ErrAuthFailed = errors.New("users: authentication failed")
	// ErrAlreadyExists is returned by Create when an active record with
	// the same username already exists.
	ErrAlreadyExists = errors.New("users: username already exists")
	// ErrNoSlot is returned by Create when every user slot is in use.
	ErrNoSlot = errors.New("users: no free user slot")
	// ErrNotFound is returned by Delete/Get for an unknown username/id.
	ErrNotFound = errors.New("users: not found")
	// ErrInvariantViolation is returned by Delete when asked to remove the
	// primary admin (id 0) or the caller's own account.
	ErrInvariantViolation = errors.New("users: invariant violation")
)
