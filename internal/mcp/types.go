package mcp

import "github.com/rpggio/agenthub/internal/domain/activity"

type ListActivitiesParams struct {
	UserID           string `json:"user_id,omitempty" jsonschema:"owner of the activities; defaults to the caller"`
	AgentID          string `json:"agent_id,omitempty" jsonschema:"only activities routed to this agent"`
	Type             string `json:"type,omitempty" jsonschema:"only activities of this type (message, task, query, alert, ...)"`
	IncludeDismissed bool   `json:"include_dismissed,omitempty" jsonschema:"include activities the user cleared"`
	Limit            int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
	Offset           int    `json:"offset,omitempty" jsonschema:"offset for pagination"`
}

type ListActivitiesResult struct {
	Activities []activity.Activity `json:"activities"`
}

type PostActivityParams struct {
	UserID          string                    `json:"user_id,omitempty" jsonschema:"owner of the activity; defaults to the caller"`
	ID              string                    `json:"id,omitempty" jsonschema:"activity id; generated when omitted"`
	Type            string                    `json:"type,omitempty" jsonschema:"activity type; defaults to message"`
	Agent           string                    `json:"agent,omitempty" jsonschema:"agent display name; looked up from agent_id when omitted"`
	AgentID         string                    `json:"agent_id,omitempty" jsonschema:"id of the agent that produced the activity; derived from agent when omitted"`
	Content         string                    `json:"content" jsonschema:"short text shown in the feed"`
	DetailedContent string                    `json:"detailed_content,omitempty" jsonschema:"long-form response text"`
	Status          string                    `json:"status,omitempty" jsonschema:"pending, in-progress, processing, completed, error, failed or urgent"`
	Priority        string                    `json:"priority,omitempty" jsonschema:"low, medium, high or urgent"`
	SuggestionChips []activity.SuggestionChip `json:"suggestion_chips,omitempty" jsonschema:"quick replies offered to the user"`
}

type UpdateActivityParams struct {
	UserID          string                    `json:"user_id,omitempty" jsonschema:"owner of the activity; defaults to the caller"`
	ID              string                    `json:"id" jsonschema:"activity id"`
	Content         *string                   `json:"content,omitempty"`
	DetailedContent *string                   `json:"detailed_content,omitempty"`
	Status          *string                   `json:"status,omitempty" jsonschema:"new status; a completed activity keeps its status"`
	Priority        *string                   `json:"priority,omitempty"`
	Dismissed       *bool                     `json:"dismissed,omitempty"`
	Read            *bool                     `json:"read,omitempty"`
	SuggestionChips []activity.SuggestionChip `json:"suggestion_chips,omitempty" jsonschema:"replaces the quick replies when present"`
}

type ListAgentsParams struct{}

func (p PostActivityParams) draft() activity.Draft {
	return activity.Draft{
		ID:              p.ID,
		Type:            activity.ActivityType(p.Type),
		Agent:           p.Agent,
		AgentID:         p.AgentID,
		Content:         p.Content,
		DetailedContent: p.DetailedContent,
		Status:          activity.Status(p.Status),
		Priority:        activity.Priority(p.Priority),
		SuggestionChips: p.SuggestionChips,
		Source:          "workflow",
	}
}

func (p UpdateActivityParams) patch() activity.Patch {
	patch := activity.Patch{
		Content:         p.Content,
		DetailedContent: p.DetailedContent,
		Dismissed:       p.Dismissed,
		Read:            p.Read,
	}
	if p.Status != nil {
		patch.Status = activity.Ptr(activity.Status(*p.Status))
	}
	if p.Priority != nil {
		patch.Priority = activity.Ptr(activity.Priority(*p.Priority))
	}
	if p.SuggestionChips != nil {
		patch.SuggestionChips = &p.SuggestionChips
	}
	return patch
}
