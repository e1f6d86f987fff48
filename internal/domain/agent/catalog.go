package agent

import "strings"

// Well-known agent ids.
const (
	Coordinator   = "coordinator"
	HomeAssistant = "home-assistant"
	ChatGPT       = "chat-gpt"
	Calendar      = "calendar"
	Email         = "email"
)

var defaultAgents = []Agent{
	{ID: Coordinator, Name: "Coordinator Agent", Description: "Routes your requests to the most appropriate agent", Status: StatusActive, Capabilities: []string{"routing"}},
	{ID: HomeAssistant, Name: "Home Assistant", Description: "Controls your smart home devices and automation routines", Status: StatusActive, Capabilities: []string{"lights", "temperature", "automation"}},
	{ID: ChatGPT, Name: "Chat GPT", Description: "AI assistant that helps with research, writing, and creative tasks", Status: StatusActive, Capabilities: []string{"research", "writing"}},
	{ID: Calendar, Name: "Calendar Assistant", Description: "Manages your schedule, meetings, and sends reminders", Status: StatusIdle, Capabilities: []string{"schedule", "meetings", "reminders"}},
	{ID: Email, Name: "Email Assistant", Description: "Organizes inbox, drafts responses, and filters spam", Status: StatusError, Capabilities: []string{"inbox", "drafts"}},
	{ID: "gmail", Name: "Gmail Agent", Description: "Manages and organizes your Gmail inbox and communications", Status: StatusActive},
	{ID: "google-drive", Name: "Google Drive Agent", Description: "Manages and organizes your files in Google Drive", Status: StatusActive},
	{ID: "google-docs", Name: "Google Docs Agent", Description: "Creates and edits documents in Google Docs", Status: StatusIdle},
	{ID: "telegram", Name: "Telegram Agent", Description: "Manages your Telegram conversations and notifications", Status: StatusActive},
	{ID: "facebook", Name: "Facebook Agent", Description: "Manages your Facebook messages and notifications", Status: StatusIdle},
	{ID: "zalo", Name: "Zalo Agent", Description: "Manages your Zalo communications and notifications", Status: StatusActive},
	{ID: "ott", Name: "OTT Assistant", Description: "Manages various OTT messaging services and applications", Status: StatusIdle},
	{ID: "google-sheets", Name: "Google Sheets Agent", Description: "Manages and analyzes data in Google Sheets spreadsheets", Status: StatusActive},
	{ID: "whatsapp", Name: "WhatsApp Agent", Description: "Manages your WhatsApp conversations and notifications", Status: StatusActive},
}

// Catalog is the fixed set of agents known to the service.
type Catalog struct {
	agents []Agent
}

// NewCatalog returns a catalog holding copies of the given agents.
func NewCatalog(agents []Agent) *Catalog {
	c := &Catalog{}
	for _, a := range agents {
		c.agents = append(c.agents, clone(a))
	}
	return c
}

// DefaultCatalog returns the built-in agent roster.
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultAgents)
}

// List returns every agent in catalog order.
func (c *Catalog) List() []Agent {
	out := make([]Agent, 0, len(c.agents))
	for _, a := range c.agents {
		out = append(out, clone(a))
	}
	return out
}

// Get looks up an agent by id.
func (c *Catalog) Get(id string) (Agent, bool) {
	for _, a := range c.agents {
		if a.ID == id {
			return clone(a), true
		}
	}
	return Agent{}, false
}

// Summaries returns the agent identities sent with outbound notifications.
func (c *Catalog) Summaries() []Summary {
	out := make([]Summary, 0, len(c.agents))
	for _, a := range c.agents {
		out = append(out, Summary{ID: a.ID, Name: a.Name, Capabilities: append([]string(nil), a.Capabilities...)})
	}
	return out
}

// Resolve fills in whichever of an activity's agent id and display name is
// missing: the id is derived from the name, the name is looked up by id.
func (c *Catalog) Resolve(id, name string) (string, string) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" && name != "" {
		id = IDFromName(name)
	}
	if name == "" {
		if a, ok := c.Get(id); ok {
			name = a.Name
		}
	}
	return id, name
}

// IDFromName maps a display name to an agent id, falling back to chat-gpt.
func IDFromName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case lower == "":
		return ChatGPT
	case strings.Contains(lower, "home"):
		return HomeAssistant
	case strings.Contains(lower, "calendar"):
		return Calendar
	case strings.Contains(lower, "email"):
		return Email
	case strings.Contains(lower, "coordinator"):
		return Coordinator
	default:
		return ChatGPT
	}
}

func clone(a Agent) Agent {
	a.Capabilities = append([]string(nil), a.Capabilities...)
	return a
}
