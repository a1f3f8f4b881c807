// Package services defines the business logic for user registration and the
// note archive. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing reply text is performed in the conversation layer.
package services

import "errors"

var (
	// ErrNotRegistered indicates that an operation requiring a stored
	// profile was attempted by an external id with no user row.
	ErrNotRegistered = errors.New("user not registered")

	// ErrEmptyNote is returned when a request to archive a note contains
	// only whitespace.
	ErrEmptyNote = errors.New("note text is empty")
)
