package activity

import "time"

// ActivityType is the categorical tag of an activity.
type ActivityType string

const (
	TypeMessage ActivityType = "message"
	TypeTask    ActivityType = "task"
	TypeQuery   ActivityType = "query"
	TypeAlert   ActivityType = "alert"
	TypeUpdate  ActivityType = "update"
	TypeAction  ActivityType = "action"
	TypeWarning ActivityType = "warning"
	TypeError   ActivityType = "error"
	TypeSuccess ActivityType = "success"
	TypeSystem  ActivityType = "system"
)

// Valid reports whether t is one of the known activity types.
func (t ActivityType) Valid() bool {
	switch t {
	case TypeMessage, TypeTask, TypeQuery, TypeAlert, TypeUpdate,
		TypeAction, TypeWarning, TypeError, TypeSuccess, TypeSystem:
		return true
	}
	return false
}

// Status is the coarse lifecycle state of an activity.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusFailed     Status = "failed"
	StatusUrgent     Status = "urgent"
)

// Valid reports whether s is empty or one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case "", StatusPending, StatusInProgress, StatusProcessing, StatusCompleted,
		StatusError, StatusFailed, StatusUrgent:
		return true
	}
	return false
}

// Priority is a cosmetic severity tag.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// SuggestionChip is a quick-reply affordance attached to a response.
type SuggestionChip struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Action string `json:"action,omitempty"`
}

// Attachment describes an uploaded file referenced by an activity.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Activity is one user command or agent response in the feed.
type Activity struct {
	ID              string           `json:"id"`
	Type            ActivityType     `json:"type"`
	Agent           string           `json:"agent"`
	AgentID         string           `json:"agentId"`
	Content         string           `json:"content"`
	DetailedContent string           `json:"detailedContent,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
	LastUpdateTime  time.Time        `json:"lastUpdateTime"`
	Status          Status           `json:"status,omitempty"`
	Priority        Priority         `json:"priority,omitempty"`
	Dismissed       bool             `json:"dismissed"`
	Read            bool             `json:"read"`
	SuggestionChips []SuggestionChip `json:"suggestionChips,omitempty"`
	Attachments     []Attachment     `json:"attachments,omitempty"`

	// SyncFailed is local-only: the optimistic entry was never persisted.
	SyncFailed bool `json:"syncFailed,omitempty"`
}

// Clone returns a deep copy so callers never share slices with the store.
func (a Activity) Clone() Activity {
	out := a
	if a.SuggestionChips != nil {
		out.SuggestionChips = append([]SuggestionChip(nil), a.SuggestionChips...)
	}
	if a.Attachments != nil {
		out.Attachments = append([]Attachment(nil), a.Attachments...)
	}
	return out
}

// User identifies the authenticated owner of a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Draft is the caller-supplied part of a new activity.
type Draft struct {
	ID              string
	Type            ActivityType
	Agent           string
	AgentID         string
	Content         string
	DetailedContent string
	Status          Status
	Priority        Priority
	Read            bool
	SuggestionChips []SuggestionChip
	Attachments     []Attachment

	// Command is the raw text forwarded to the workflow engine. Content is used when empty.
	Command string
	// Source names the widget that produced the activity.
	Source string
	// SuggestedAgentID is the classifier's pick for the command, if any.
	SuggestedAgentID string
}

// Patch is a field-level partial update. Nil fields are left unchanged.
type Patch struct {
	Content         *string
	DetailedContent *string
	Status          *Status
	Priority        *Priority
	Dismissed       *bool
	Read            *bool
	SuggestionChips *[]SuggestionChip
	Attachments     *[]Attachment
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Content == nil && p.DetailedContent == nil && p.Status == nil &&
		p.Priority == nil && p.Dismissed == nil && p.Read == nil &&
		p.SuggestionChips == nil && p.Attachments == nil
}

// Apply returns a copy of a with the patch applied.
func (p Patch) Apply(a Activity) Activity {
	out := a.Clone()
	if p.Content != nil {
		out.Content = *p.Content
	}
	if p.DetailedContent != nil {
		out.DetailedContent = *p.DetailedContent
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.Dismissed != nil {
		out.Dismissed = *p.Dismissed
	}
	if p.Read != nil {
		out.Read = *p.Read
	}
	if p.SuggestionChips != nil {
		out.SuggestionChips = append([]SuggestionChip(nil), (*p.SuggestionChips)...)
	}
	if p.Attachments != nil {
		out.Attachments = append([]Attachment(nil), (*p.Attachments)...)
	}
	return out
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}

// Notice is a transient user-visible notification (a toast in the dashboard).
type Notice struct {
	Level       string    `json:"level"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ActivityID  string    `json:"activityId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

const (
	NoticeError = "error"
	NoticeInfo  = "info"
)
