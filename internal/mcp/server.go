package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/domain/agent"
)

// ActivityService defines the activity operations needed by MCP.
type ActivityService interface {
	Post(ctx context.Context, userID string, d activity.Draft) (*activity.Activity, error)
	Update(ctx context.Context, userID, id string, patch activity.Patch) (*activity.Activity, error)
	List(ctx context.Context, userID string, opts activity.ListOptions) ([]activity.Activity, error)
}

// Config contains server configuration.
type Config struct {
	Activities  ActivityService
	Agents      *agent.Catalog
	Resolver    UserResolver
	AuthEnabled bool
	// DevUser is the caller when auth is disabled.
	DevUser activity.User
	// ServiceUserID may act on behalf of any user via the user_id argument.
	ServiceUserID string
	Version       string
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Agents == nil {
		cfg.Agents = agent.DefaultCatalog()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "agenthub",
		Version: cfg.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	if cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	} else {
		server.AddReceivingMiddleware(noAuthMiddleware(cfg.DevUser))
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	t := &tools{
		activities:    cfg.Activities,
		agents:        cfg.Agents,
		serviceUserID: cfg.ServiceUserID,
		logger:        cfg.Logger,
	}
	t.register(server)

	return server
}
