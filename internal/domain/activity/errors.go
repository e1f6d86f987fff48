package activity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates invalid input for activity operations.
	ErrInvalidInput = errors.New("invalid activity input")
	// ErrAuthRequired indicates the call was made without an authenticated user.
	ErrAuthRequired = errors.New("user not authenticated")
	// ErrActivityNotFound indicates the activity doesn't exist in the session.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrTerminalStatus indicates a status change on a completed activity.
	ErrTerminalStatus = errors.New("activity is completed; status is final")
	// ErrUpdateConflict indicates newer writes kept superseding a local update.
	ErrUpdateConflict = errors.New("activity is being updated concurrently")
	// ErrSessionClosed indicates the session was torn down.
	ErrSessionClosed = errors.New("session closed")
)

// PersistenceError reports a rejected remote write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotificationError reports a webhook that was unreachable or answered non-2xx.
type NotificationError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *NotificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notify workflow: %v", e.Err)
	}
	return fmt.Sprintf("notify workflow: status %d: %s", e.StatusCode, e.Body)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
