package di

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rpggio/agenthub/internal/config"
	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/domain/agent"
	"github.com/rpggio/agenthub/internal/domain/session"
	"github.com/rpggio/agenthub/internal/mcp"
	"github.com/rpggio/agenthub/internal/metrics"
	"github.com/rpggio/agenthub/internal/notify"
	"github.com/rpggio/agenthub/internal/realtime"
	"github.com/rpggio/agenthub/internal/sqlite"
	"github.com/rpggio/agenthub/internal/transport"
)

// Container holds the assembled service.
type Container struct {
	Activities *activity.Service
	APIKeys    *sqlite.APIKeyRepository
	Agents     *agent.Catalog
	Feed       realtime.Feed
	Notifier   activity.Notifier
	Sessions   *session.Manager
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry
	Handler    http.Handler
}

// Options overrides parts of the default assembly.
type Options struct {
	// Feed replaces the feed selected by cfg.Realtime.Driver.
	Feed    realtime.Feed
	Version string
	Logger  *slog.Logger
}

// BuildContainer wires every component from cfg on top of an open, migrated database.
func BuildContainer(cfg config.Config, db *sqlite.DB, opts Options) (*Container, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	feed := opts.Feed
	if feed == nil {
		feed, err = newFeed(cfg.Realtime, logger)
		if err != nil {
			return nil, err
		}
	}

	repo := realtime.NewPublishingRepository(sqlite.NewActivityRepository(db), feed, logger)
	catalog := agent.DefaultCatalog()
	classifier := agent.NewKeywordClassifier(nil, agent.ChatGPT)

	notifier, err := notify.New(notify.Config{
		WebhookURL: cfg.Webhook.URL,
		AgentURLs:  cfg.Webhook.AgentEndpoints,
		MockMode:   cfg.Webhook.MockMode,
		Timeout:    cfg.Webhook.Timeout,
		MockDelay:  cfg.Webhook.MockDelay,
	}, catalog, logger.With("component", "notify"))
	if err != nil {
		_ = feed.Close()
		return nil, fmt.Errorf("configuring notifier: %w", err)
	}

	sessions := session.NewManager(session.Config{
		Repository:       repo,
		Notifier:         notifier,
		Classifier:       classifier,
		Observer:         m,
		Source:           feed,
		RealtimeObserver: m,
		RetryDelay:       cfg.Realtime.RetryDelay,
		LockCompleted:    cfg.Activity.LockCompleted,
		Gauge:            m,
		Logger:           logger.With("component", "session"),
	})

	activities := activity.NewService(repo, cfg.Activity.LockCompleted, logger)
	apiKeys := sqlite.NewAPIKeyRepository(db)
	devUser := activity.User{ID: cfg.Auth.DevUser, Email: cfg.Auth.DevEmail}

	mcpServer := mcp.NewServer(mcp.Config{
		Activities:    activities,
		Agents:        catalog,
		Resolver:      apiKeys,
		AuthEnabled:   cfg.Auth.Enabled,
		DevUser:       devUser,
		ServiceUserID: cfg.Auth.ServiceUser,
		Version:       opts.Version,
		Logger:        logger.With("component", "mcp"),
	})

	auth := transport.StaticUserMiddleware(devUser)
	if cfg.Auth.Enabled {
		auth = transport.AuthMiddleware(apiKeys)
	}

	handler := transport.NewServer(transport.Config{
		Sessions:   sessions,
		Agents:     catalog,
		Classifier: classifier,
		Auth:       auth,
		Metrics:    metrics.Handler(registry),
		MCP:        mcp.NewHTTPHandler(mcpServer),
		Logger:     logger.With("component", "http"),
	})

	return &Container{
		Activities: activities,
		APIKeys:    apiKeys,
		Agents:     catalog,
		Feed:       feed,
		Notifier:   notifier,
		Sessions:   sessions,
		Metrics:    m,
		Registry:   registry,
		Handler:    handler,
	}, nil
}

// Cleanup stops pending simulated results, signs every user out and closes the feed.
func (c *Container) Cleanup() error {
	if sim, ok := c.Notifier.(*notify.Simulator); ok {
		sim.Stop()
	}
	c.Sessions.Close()
	if err := c.Feed.Close(); err != nil {
		return fmt.Errorf("closing realtime feed: %w", err)
	}
	return nil
}

func newFeed(cfg config.RealtimeConfig, logger *slog.Logger) (realtime.Feed, error) {
	switch cfg.Driver {
	case "kafka":
		feed, err := realtime.NewKafkaFeed(realtime.KafkaConfig{
			Brokers: cfg.Brokers,
			Topic:   cfg.Topic,
			Logger:  logger.With("component", "kafka"),
		})
		if err != nil {
			return nil, fmt.Errorf("configuring kafka feed: %w", err)
		}
		return feed, nil
	case "memory", "":
		return realtime.NewHub(cfg.Buffer, logger.With("component", "hub")), nil
	default:
		return nil, fmt.Errorf("unknown realtime driver %q", cfg.Driver)
	}
}
