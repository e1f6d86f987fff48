package session

import "errors"

var (
	// ErrSessionNotFound indicates the user has no active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrManagerClosed indicates the manager has been shut down.
	ErrManagerClosed = errors.New("session manager closed")
)
