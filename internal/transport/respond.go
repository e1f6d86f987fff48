package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/domain/session"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body written for every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", activity.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var perr *activity.PersistenceError
	switch {
	case errors.Is(err, activity.ErrAuthRequired), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, activity.ErrActivityNotFound), errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, activity.ErrTerminalStatus), errors.Is(err, activity.ErrUpdateConflict):
		return http.StatusConflict
	case errors.Is(err, activity.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, activity.ErrSessionClosed), errors.Is(err, session.ErrManagerClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &perr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
