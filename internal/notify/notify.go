// Package notify delivers new activities to the external workflow engine.
package notify

import (
	"log/slog"
	"net/url"
	"time"

	"github.com/rpggio/agenthub/internal/domain/activity"
)

// Config selects and configures the notifier.
type Config struct {
	WebhookURL string
	AgentURLs  map[string]string
	MockMode   bool
	Timeout    time.Duration
	MockDelay  time.Duration
}

// New returns the Simulator when mock mode is requested or the webhook URL is
// not a usable http(s) URL, and a Webhook otherwise.
func New(cfg Config, agents AgentLister, logger *slog.Logger) (activity.Notifier, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MockMode || !ValidURL(cfg.WebhookURL) {
		logger.Info("workflow webhook not configured, using simulator", "delay", cfg.MockDelay)
		return NewSimulator(cfg.MockDelay, logger), nil
	}
	hook, err := NewWebhook(WebhookConfig{
		URL:       cfg.WebhookURL,
		AgentURLs: cfg.AgentURLs,
		Timeout:   cfg.Timeout,
		Agents:    agents,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return hook, nil
}

// ValidURL reports whether s is an absolute http or https URL.
func ValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
