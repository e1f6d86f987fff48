package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `agenthub keeps each user's activity feed: commands typed into the dashboard and the agent responses to them.

The workflow engine receives a webhook for every new command and writes its results back here:
1) Post a response with post_activity (content plus agent_id or the agent display name).
2) Or update the originating activity with update_activity, e.g. status=completed plus detailed_content.
3) Use list_activities to look at what the user has already seen.

A completed activity keeps its status. Updates reach signed-in dashboards in realtime.

Docs:
- agenthub://docs/activities (fields and allowed values)
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "agenthub://docs/activities",
		Name:        "docs_activities",
		Title:       "Activity fields",
		Description: "Field reference for activities and the values each accepts.",
		Content: `# Activities

| field | notes |
|---|---|
| id | generated when omitted |
| type | message, task, query, alert, update, action, warning, error, success, system |
| agent_id | routing key, e.g. calendar, email, home-assistant, chat-gpt |
| content | short feed text |
| detailed_content | long response text |
| status | pending, in-progress, processing, completed, error, failed, urgent |
| priority | low, medium, high, urgent |
| dismissed | hidden from the feed, never deleted |
| read | counted in the unread badge when false |
| suggestion_chips | quick replies: {id, text, action} |

Every write advances lastUpdateTime. Dashboards apply a change only when it is newer
than what they hold, so the order in which writes arrive does not matter.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
