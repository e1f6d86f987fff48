package activity

import "time"

// Row is the persisted shape of an activity, also carried by realtime change events.
type Row struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	Type            string           `json:"type"`
	Agent           string           `json:"agent"`
	AgentID         string           `json:"agent_id"`
	Content         string           `json:"content"`
	DetailedContent *string          `json:"detailed_content"`
	Timestamp       time.Time        `json:"timestamp"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Status          *string          `json:"status"`
	Priority        *string          `json:"priority"`
	Dismissed       bool             `json:"dismissed"`
	Read            bool             `json:"read"`
	SuggestionChips []SuggestionChip `json:"suggestion_chips"`
	Attachments     []Attachment     `json:"attachments"`
}

// ToRow converts an activity to the stored row shape for userID.
func (a Activity) ToRow(userID string) Row {
	updatedAt := a.LastUpdateTime
	if updatedAt.IsZero() {
		updatedAt = a.Timestamp
	}
	return Row{
		ID:              a.ID,
		UserID:          userID,
		Type:            string(a.Type),
		Agent:           a.Agent,
		AgentID:         a.AgentID,
		Content:         a.Content,
		DetailedContent: optional(a.DetailedContent),
		Timestamp:       a.Timestamp.UTC(),
		UpdatedAt:       updatedAt.UTC(),
		Status:          optional(string(a.Status)),
		Priority:        optional(string(a.Priority)),
		Dismissed:       a.Dismissed,
		Read:            a.Read,
		SuggestionChips: a.SuggestionChips,
		Attachments:     a.Attachments,
	}
}

// FromRow converts a stored row back to the in-app activity shape.
func FromRow(r Row) Activity {
	a := Activity{
		ID:              r.ID,
		Type:            ActivityType(r.Type),
		Agent:           r.Agent,
		AgentID:         r.AgentID,
		Content:         r.Content,
		Timestamp:       r.Timestamp,
		LastUpdateTime:  r.UpdatedAt,
		Dismissed:       r.Dismissed,
		Read:            r.Read,
		SuggestionChips: r.SuggestionChips,
		Attachments:     r.Attachments,
	}
	if r.DetailedContent != nil {
		a.DetailedContent = *r.DetailedContent
	}
	if r.Status != nil {
		a.Status = Status(*r.Status)
	}
	if r.Priority != nil {
		a.Priority = Priority(*r.Priority)
	}
	return a
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
