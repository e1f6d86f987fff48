package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/repository"
)

// ErrForbidden indicates the caller may not act for the requested user.
var ErrForbidden = errors.New("forbidden")

// APIError is the error shape returned from tool calls.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
	Err          error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// MapError maps domain errors to tool error codes. Unknown errors pass through.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, activity.ErrActivityNotFound):
		return &APIError{Code: "ACTIVITY_NOT_FOUND", Message: "activity not found", RecoveryHint: "Check the id with list_activities", Err: err}
	case errors.Is(err, activity.ErrTerminalStatus):
		return &APIError{Code: "TERMINAL_STATUS", Message: "activity is completed; its status cannot change", Err: err}
	case errors.Is(err, activity.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error(), RecoveryHint: "content and agent_id (or agent) are required; status and type must be known values", Err: err}
	case errors.Is(err, activity.ErrAuthRequired):
		return &APIError{Code: "UNAUTHORIZED", Message: "no user for this call", Err: err}
	case errors.Is(err, ErrForbidden):
		return &APIError{Code: "FORBIDDEN", Message: err.Error(), Err: err}
	case errors.Is(err, activity.ErrUpdateConflict):
		return &APIError{Code: "CONFLICT", Message: err.Error(), RecoveryHint: "Fetch the activity again and retry", Err: err}
	case errors.Is(err, repository.ErrConflict):
		return &APIError{Code: "CONFLICT", Message: "an activity with this id already exists", RecoveryHint: "Omit id to have one generated", Err: err}
	default:
		return err
	}
}
