package activity

// ListOptions provides filtering options for listing persisted activities.
type ListOptions struct {
	AgentID          string
	Type             *ActivityType
	IncludeDismissed bool
	Limit            int
	Offset           int
}

// Filter narrows an in-memory activity list. The store never filters on its own.
type Filter struct {
	AgentID          string
	Types            []ActivityType
	IncludeDismissed bool
	UnreadOnly       bool
}

// Apply returns the activities matching f, preserving order.
func (f Filter) Apply(list []Activity) []Activity {
	out := make([]Activity, 0, len(list))
	for _, a := range list {
		if f.matches(a) {
			out = append(out, a)
		}
	}
	return out
}

func (f Filter) matches(a Activity) bool {
	if !f.IncludeDismissed && a.Dismissed {
		return false
	}
	if f.UnreadOnly && a.Read {
		return false
	}
	if f.AgentID != "" && a.AgentID != f.AgentID {
		return false
	}
	if len(f.Types) > 0 {
		for _, t := range f.Types {
			if a.Type == t {
				return true
			}
		}
		return false
	}
	return true
}

// UnreadCount counts visible unread activities.
func UnreadCount(list []Activity) int {
	n := 0
	for _, a := range list {
		if !a.Dismissed && !a.Read {
			n++
		}
	}
	return n
}
