package transport

import (
	"net/http"

	"github.com/rpggio/agenthub/internal/domain/activity"
)

// SessionResponse describes the caller's session after sign-in.
type SessionResponse struct {
	User       activity.User `json:"user"`
	Activities int           `json:"activities"`
	Unread     int           `json:"unread"`
}

// sessionFor returns the caller's session, signing them in on first use.
func (s *Server) sessionFor(r *http.Request) (*activity.Session, error) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		return nil, activity.ErrAuthRequired
	}
	return s.sessions.SignIn(r.Context(), user)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFor(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	list := sess.Activities(activity.Filter{})
	writeJSON(w, http.StatusOK, SessionResponse{
		User:       sess.User(),
		Activities: len(list),
		Unread:     activity.UnreadCount(list),
	})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeDomainError(w, activity.ErrAuthRequired)
		return
	}
	if err := s.sessions.SignOut(user.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
