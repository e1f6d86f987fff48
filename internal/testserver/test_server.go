package testserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/agenthub/internal/config"
	"github.com/rpggio/agenthub/internal/di"
	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/sqlite"
	"github.com/stretchr/testify/require"
)

// TestServer runs the fully assembled service against an in-memory database.
type TestServer struct {
	Server    *httptest.Server
	DB        *sqlite.DB
	Container *di.Container
	Token     string
	UserID    string
}

// New starts a server with auth enabled, the simulator as notifier and the
// in-process realtime hub. Options adjust the configuration before assembly.
func New(t *testing.T, token, userID string, options ...func(*config.Config)) *TestServer {
	t.Helper()

	cfg := config.Default()
	cfg.DB.Path = ":memory:"
	cfg.Webhook.MockMode = true
	cfg.Webhook.MockDelay = 20 * time.Millisecond
	cfg.Realtime.RetryDelay = 20 * time.Millisecond
	for _, opt := range options {
		opt(&cfg)
	}
	require.NoError(t, cfg.Validate())

	db, err := sqlite.New(cfg.DB.Path)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	container, err := di.BuildContainer(cfg, db, di.Options{Version: "test"})
	require.NoError(t, err)
	server := httptest.NewServer(container.Handler)

	ts := &TestServer{
		Server:    server,
		DB:        db,
		Container: container,
		Token:     token,
		UserID:    userID,
	}

	require.NoError(t, ts.AddAPIKey(token, userID))

	t.Cleanup(func() {
		server.Close()
		_ = container.Cleanup()
		_ = db.Close()
	})

	return ts
}

// AddAPIKey registers token for userID.
func (ts *TestServer) AddAPIKey(token, userID string) error {
	return ts.Container.APIKeys.Insert(context.Background(), token, activity.User{ID: userID}, "test")
}

// Do sends a JSON request authenticated with the server's token.
func (ts *TestServer) Do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	return ts.DoAs(t, ts.Token, method, path, body)
}

// DoAs sends a JSON request authenticated with token.
func (ts *TestServer) DoAs(t *testing.T, token, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.Server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// DialStream opens the websocket push stream for the server's user.
func (ts *TestServer) DialStream(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/v1/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": []string{"Bearer " + ts.Token}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// MCPClient connects an MCP client over streamable HTTP using token.
func (ts *TestServer) MCPClient(t *testing.T, token string) *sdkmcp.ClientSession {
	t.Helper()
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "workflow-test", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(context.Background(), &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: &http.Client{Transport: bearerTransport{token: token, next: http.DefaultTransport}},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
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
