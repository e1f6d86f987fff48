package transport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/domain/agent"
)

// SessionManager opens and closes per-user activity sessions.
type SessionManager interface {
	SignIn(ctx context.Context, user activity.User) (*activity.Session, error)
	SignOut(userID string) error
}

// Config wires the HTTP surface.
type Config struct {
	Sessions   SessionManager
	Agents     *agent.Catalog
	Classifier activity.Classifier
	// Auth attaches the caller to the request context. Requests without a user get 401.
	Auth    func(http.Handler) http.Handler
	Metrics http.Handler
	MCP     http.Handler
	Logger  *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	sessions   SessionManager
	agents     *agent.Catalog
	classifier activity.Classifier
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	agents := cfg.Agents
	if agents == nil {
		agents = agent.DefaultCatalog()
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = agent.NewKeywordClassifier(nil, "")
	}

	srv := &Server{
		sessions:   cfg.Sessions,
		agents:     agents,
		classifier: classifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
		r.Handle("/mcp/*", cfg.MCP)
	}

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}

		r.Post("/session", srv.handleSignIn)
		r.Delete("/session", srv.handleSignOut)

		r.Get("/activities", srv.handleListActivities)
		r.Post("/activities", srv.handleAddActivity)
		r.Post("/activities/read-all", srv.handleMarkAllRead)
		r.Post("/activities/clear", srv.handleClearAll)
		r.Patch("/activities/{id}", srv.handleUpdateActivity)
		r.Post("/activities/{id}/dismiss", srv.handleFlag(patchDismiss))
		r.Post("/activities/{id}/read", srv.handleFlag(patchRead))
		r.Post("/activities/{id}/unread", srv.handleFlag(patchUnread))

		r.Post("/commands", srv.handleSubmitCommand)
		r.Get("/notices", srv.handleNotices)

		r.Get("/agents", srv.handleListAgents)
		r.Post("/agents/classify", srv.handleClassify)

		r.Get("/stream", srv.handleStream)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
