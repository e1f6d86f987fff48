package transport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rpggio/agenthub/internal/domain/activity"
)

// ActivityRequest is the body of POST /v1/activities.
type ActivityRequest struct {
	ID              string                    `json:"id,omitempty"`
	Type            activity.ActivityType     `json:"type"`
	Agent           string                    `json:"agent"`
	AgentID         string                    `json:"agentId"`
	Content         string                    `json:"content"`
	DetailedContent string                    `json:"detailedContent,omitempty"`
	Status          activity.Status           `json:"status,omitempty"`
	Priority        activity.Priority         `json:"priority,omitempty"`
	Read            bool                      `json:"read,omitempty"`
	SuggestionChips []activity.SuggestionChip `json:"suggestionChips,omitempty"`
	Attachments     []activity.Attachment     `json:"attachments,omitempty"`
	Command         string                    `json:"command,omitempty"`
	Source          string                    `json:"source,omitempty"`
}

func (req ActivityRequest) draft() activity.Draft {
	return activity.Draft{
		ID:              req.ID,
		Type:            req.Type,
		Agent:           req.Agent,
		AgentID:         req.AgentID,
		Content:         req.Content,
		DetailedContent: req.DetailedContent,
		Status:          req.Status,
		Priority:        req.Priority,
		Read:            req.Read,
		SuggestionChips: req.SuggestionChips,
		Attachments:     req.Attachments,
		Command:         req.Command,
		Source:          req.Source,
	}
}

// PatchRequest is the body of PATCH /v1/activities/{id}. Omitted fields are unchanged.
type PatchRequest struct {
	Content         *string                    `json:"content,omitempty"`
	DetailedContent *string                    `json:"detailedContent,omitempty"`
	Status          *activity.Status           `json:"status,omitempty"`
	Priority        *activity.Priority         `json:"priority,omitempty"`
	Dismissed       *bool                      `json:"dismissed,omitempty"`
	Read            *bool                      `json:"read,omitempty"`
	SuggestionChips *[]activity.SuggestionChip `json:"suggestionChips,omitempty"`
	Attachments     *[]activity.Attachment     `json:"attachments,omitempty"`
}

func (req PatchRequest) patch() activity.Patch {
	return activity.Patch{
		Content:         req.Content,
		DetailedContent: req.DetailedContent,
		Status:          req.Status,
		Priority:        req.Priority,
		Dismissed:       req.Dismissed,
		Read:            req.Read,
		SuggestionChips: req.SuggestionChips,
		Attachments:     req.Attachments,
	}
}

// CommandRequest is the body of POST /v1/commands.
type CommandRequest struct {
	Text        string                `json:"text"`
	Attachments []activity.Attachment `json:"attachments,omitempty"`
	AgentID     string                `json:"agentId,omitempty"`
	AgentName   string                `json:"agentName,omitempty"`
	Source      string                `json:"source,omitempty"`
}

// ListResponse is the filtered activity view plus the unread badge count.
type ListResponse struct {
	Activities []activity.Activity `json:"activities"`
	Unread     int                 `json:"unread"`
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	sess, err := s.sessionFor(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{
		Activities: sess.Activities(filter),
		Unread:     activity.UnreadCount(sess.Activities(activity.Filter{})),
	})
}

func (s *Server) handleAddActivity(w http.ResponseWriter, r *http.Request) {
	var req ActivityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	sess, err := s.sessionFor(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	d := req.draft()
	d.AgentID, d.Agent = s.agents.Resolve(d.AgentID, d.Agent)
	id, err := sess.Add(r.Context(), d)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeActivity(w, sess, id, http.StatusAccepted)
}

func (s *Server) handleSubmitCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	sess, err := s.sessionFor(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	id, err := sess.SubmitCommand(r.Context(), activity.Command{
		Text:        req.Text,
		Attachments: req.Attachments,
		AgentID:     req.AgentID,
		AgentName:   req.AgentName,
		Source:      req.Source,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeActivity(w, sess, id, http.StatusAccepted)
}

func (s *Server) handleUpdateActivity(w http.ResponseWriter, r *http.Request) {
	var req PatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	s.applyPatch(w, r, req.patch())
}

var (
	patchDismiss = activity.Patch{Dismissed: activity.Ptr(true)}
	patchRead    = activity.Patch{Read: activity.Ptr(true)}
	patchUnread  = activity.Patch{Read: activity.Ptr(false)}
)

func (s *Server) handleFlag(patch activity.Patch) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.applyPatch(w, r, patch)
	}
}

func (s *Server) applyPatch(w http.ResponseWriter, r *http.Request, patch activity.Patch) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessionFor(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := sess.Update(r.Context(), id, patch); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeActivity(w, sess, id, http.StatusOK)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	s.bulk(w, r, (*activity.Session).MarkAllRead)
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	s.bulk(w, r, (*activity.Session).ClearAll)
}

func (s *Server) bulk(w http.ResponseWriter, r *http.Request, op func(*activity.Session, context.Context) error) {
	sess, err := s.sessionFor(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := op(sess, r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFor(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	notices := sess.Notices()
	if notices == nil {
		notices = []activity.Notice{}
	}
	writeJSON(w, http.StatusOK, notices)
}

func (s *Server) writeActivity(w http.ResponseWriter, sess *activity.Session, id string, status int) {
	a, err := sess.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, status, a)
}

func parseFilter(r *http.Request) (activity.Filter, error) {
	q := r.URL.Query()
	f := activity.Filter{AgentID: q.Get("agent_id")}
	if raw := q.Get("type"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			t := activity.ActivityType(strings.TrimSpace(part))
			if !t.Valid() {
				return f, fmt.Errorf("%w: unknown type %q", activity.ErrInvalidInput, t)
			}
			f.Types = append(f.Types, t)
		}
	}
	var err error
	if f.IncludeDismissed, err = parseBool(q.Get("include_dismissed")); err != nil {
		return f, err
	}
	if f.UnreadOnly, err = parseBool(q.Get("unread")); err != nil {
		return f, err
	}
	return f, nil
}

func parseBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %v", activity.ErrInvalidInput, err)
	}
	return v, nil
}
