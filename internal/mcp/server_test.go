package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/sqlite"
	"github.com/stretchr/testify/require"
)

func newActivityService(t *testing.T) (*activity.Service, *sqlite.ActivityRepository) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })
	repo := sqlite.NewActivityRepository(db)
	return activity.NewService(repo, true, nil), repo
}

func connect(t *testing.T, transport sdkmcp.Transport) *sdkmcp.ClientSession {
	t.Helper()
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(context.Background(), transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func connectInMemory(t *testing.T, cfg Config) *sdkmcp.ClientSession {
	t.Helper()
	server := NewServer(cfg)
	st, ct := sdkmcp.NewInMemoryTransports()
	ss, err := server.Connect(context.Background(), st, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })
	return connect(t, ct)
}

func callTool[T any](t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any) T {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.False(t, res.IsError, "tool %s failed: %v", name, res.Content)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	var out T
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireToolError(t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any, code string) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		require.Contains(t, err.Error(), code)
		return
	}
	require.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	require.Contains(t, text.Text, code)
}

func TestServer_ListsTools(t *testing.T) {
	svc, _ := newActivityService(t)
	cs := connectInMemory(t, Config{Activities: svc, DevUser: activity.User{ID: "dev"}})

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{"list_activities", "post_activity", "update_activity", "list_agents"}, names)
}

func TestServer_PostListUpdate(t *testing.T) {
	svc, repo := newActivityService(t)
	cs := connectInMemory(t, Config{Activities: svc, DevUser: activity.User{ID: "dev"}})

	created := callTool[activity.Activity](t, cs, "post_activity", map[string]any{
		"agent_id": "calendar",
		"content":  "Meeting booked for 3pm",
		"status":   "completed",
		"suggestion_chips": []map[string]any{
			{"id": "c1", "text": "Move it"},
		},
	})
	require.NotEmpty(t, created.ID)
	require.Equal(t, "Calendar Assistant", created.Agent)
	require.Equal(t, activity.TypeMessage, created.Type)
	require.Len(t, created.SuggestionChips, 1)

	stored, err := repo.Get(context.Background(), "dev", created.ID)
	require.NoError(t, err)
	require.Equal(t, "Meeting booked for 3pm", stored.Content)

	listed := callTool[ListActivitiesResult](t, cs, "list_activities", map[string]any{"agent_id": "calendar"})
	require.Len(t, listed.Activities, 1)

	updated := callTool[activity.Activity](t, cs, "update_activity", map[string]any{
		"id":               created.ID,
		"detailed_content": "Room 4B",
		"read":             true,
	})
	require.Equal(t, "Room 4B", updated.DetailedContent)
	require.True(t, updated.Read)
	require.True(t, updated.LastUpdateTime.After(created.LastUpdateTime))
}

func TestServer_PostDerivesAgentIDFromName(t *testing.T) {
	svc, _ := newActivityService(t)
	cs := connectInMemory(t, Config{Activities: svc, DevUser: activity.User{ID: "dev"}})

	created := callTool[activity.Activity](t, cs, "post_activity", map[string]any{
		"agent":   "Home Assistant",
		"content": "Living room lights are off",
	})
	require.Equal(t, "home-assistant", created.AgentID)
	require.Equal(t, "Home Assistant", created.Agent)

	requireToolError(t, cs, "post_activity", map[string]any{"content": "nobody sent this"}, "INVALID_INPUT")
}

func TestServer_ToolErrors(t *testing.T) {
	svc, _ := newActivityService(t)
	cs := connectInMemory(t, Config{Activities: svc, DevUser: activity.User{ID: "dev"}})

	requireToolError(t, cs, "post_activity", map[string]any{"agent_id": "calendar", "content": ""}, "INVALID_INPUT")
	requireToolError(t, cs, "update_activity", map[string]any{"id": "missing", "read": true}, "ACTIVITY_NOT_FOUND")
	requireToolError(t, cs, "list_activities", map[string]any{"type": "bogus"}, "INVALID_INPUT")
	requireToolError(t, cs, "list_activities", map[string]any{"user_id": "someone-else"}, "FORBIDDEN")

	created := callTool[activity.Activity](t, cs, "post_activity", map[string]any{
		"agent_id": "email", "content": "Sent", "status": "completed",
	})
	requireToolError(t, cs, "update_activity", map[string]any{"id": created.ID, "status": "pending"}, "TERMINAL_STATUS")
	requireToolError(t, cs, "post_activity", map[string]any{"id": created.ID, "agent_id": "email", "content": "again"}, "CONFLICT")
}

func TestServer_ServiceUserActsForOthers(t *testing.T) {
	svc, repo := newActivityService(t)
	cs := connectInMemory(t, Config{
		Activities:    svc,
		DevUser:       activity.User{ID: "workflow"},
		ServiceUserID: "workflow",
	})

	created := callTool[activity.Activity](t, cs, "post_activity", map[string]any{
		"user_id": "alice", "agent_id": "chat-gpt", "content": "Here is your answer",
	})
	_, err := repo.Get(context.Background(), "alice", created.ID)
	require.NoError(t, err)

	listed := callTool[ListActivitiesResult](t, cs, "list_activities", map[string]any{"user_id": "alice"})
	require.Len(t, listed.Activities, 1)
	listed = callTool[ListActivitiesResult](t, cs, "list_activities", map[string]any{})
	require.Empty(t, listed.Activities)
}

func TestServer_DocsResource(t *testing.T) {
	svc, _ := newActivityService(t)
	cs := connectInMemory(t, Config{Activities: svc, DevUser: activity.User{ID: "dev"}})

	res, err := cs.ReadResource(context.Background(), &sdkmcp.ReadResourceParams{URI: "agenthub://docs/activities"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	require.Contains(t, res.Contents[0].Text, "suggestion_chips")
}

type resolverFunc func(ctx context.Context, token string) (activity.User, error)

func (f resolverFunc) ResolveUser(ctx context.Context, token string) (activity.User, error) {
	return f(ctx, token)
}

type bearerTransport struct {
	token string
	next  http.RoundTripper
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return b.next.RoundTrip(req)
}

func TestServer_HTTPAuth(t *testing.T) {
	svc, _ := newActivityService(t)
	resolver := resolverFunc(func(_ context.Context, token string) (activity.User, error) {
		if token == "good" {
			return activity.User{ID: "alice"}, nil
		}
		return activity.User{}, ErrForbidden
	})
	server := NewServer(Config{Activities: svc, Resolver: resolver, AuthEnabled: true})
	httpServer := httptest.NewServer(NewHTTPHandler(server))
	t.Cleanup(httpServer.Close)

	good := connect(t, &sdkmcp.StreamableClientTransport{
		Endpoint:   httpServer.URL,
		HTTPClient: &http.Client{Transport: bearerTransport{token: "good", next: http.DefaultTransport}},
	})
	created := callTool[activity.Activity](t, good, "post_activity", map[string]any{"agent_id": "email", "content": "hi"})
	require.NotEmpty(t, created.ID)

	bad := connect(t, &sdkmcp.StreamableClientTransport{
		Endpoint:   httpServer.URL,
		HTTPClient: &http.Client{Transport: bearerTransport{token: "bad", next: http.DefaultTransport}},
	})
	_, err := bad.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: "list_activities", Arguments: map[string]any{}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unauthorized")
}
