package activity

import "strings"

// ValidateDraft validates fields required to create an activity.
func ValidateDraft(d Draft) error {
	if d.Type != "" && !d.Type.Valid() {
		return ErrInvalidInput
	}
	if strings.TrimSpace(d.Content) == "" && len(d.Attachments) == 0 {
		return ErrInvalidInput
	}
	if strings.TrimSpace(d.AgentID) == "" {
		return ErrInvalidInput
	}
	if !d.Status.Valid() {
		return ErrInvalidInput
	}
	return nil
}

// ValidatePatch validates a partial update.
func ValidatePatch(p Patch) error {
	if p.Empty() {
		return ErrInvalidInput
	}
	if p.Status != nil && (*p.Status == "" || !p.Status.Valid()) {
		return ErrInvalidInput
	}
	return nil
}

// ValidateTransition checks a status change against the terminal-state policy.
// A completed activity keeps its status when lockCompleted is set.
func ValidateTransition(from Status, to *Status, lockCompleted bool) error {
	if to == nil || !lockCompleted {
		return nil
	}
	if from == StatusCompleted && *to != StatusCompleted {
		return ErrTerminalStatus
	}
	return nil
}

// newActivity builds the in-app shape of a draft. Id and timestamps are left to the caller.
func newActivity(d Draft) Activity {
	typ := d.Type
	if typ == "" {
		typ = TypeMessage
	}
	return Activity{
		ID:              d.ID,
		Type:            typ,
		Agent:           d.Agent,
		AgentID:         d.AgentID,
		Content:         d.Content,
		DetailedContent: d.DetailedContent,
		Status:          d.Status,
		Priority:        d.Priority,
		Read:            d.Read,
		SuggestionChips: d.SuggestionChips,
		Attachments:     d.Attachments,
	}
}
