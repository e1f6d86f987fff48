package agent

// Status is the availability shown next to an agent.
type Status string

const (
	StatusActive Status = "active"
	StatusIdle   Status = "idle"
	StatusError  Status = "error"
)

// Agent describes a workflow agent the coordinator can route to.
type Agent struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Status       Status   `json:"status"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Summary is the agent identity forwarded to the workflow engine.
type Summary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities,omitempty"`
}
