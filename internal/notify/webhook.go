package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/domain/agent"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 64 << 10
)

// AgentLister supplies the agent roster advertised to the workflow engine.
type AgentLister interface {
	Summaries() []agent.Summary
}

// Payload is the JSON body POSTed to the workflow engine.
type Payload struct {
	ActivityID       string                `json:"activityId"`
	Command          string                `json:"command"`
	HasAttachments   bool                  `json:"hasAttachments"`
	Attachments      []activity.Attachment `json:"attachments"`
	User             *activity.User        `json:"user,omitempty"`
	Timestamp        time.Time             `json:"timestamp"`
	Source           string                `json:"source"`
	Activity         activity.Activity     `json:"activity"`
	SuggestedAgentID string                `json:"suggestedAgentId,omitempty"`
	AvailableAgents  []agent.Summary       `json:"availableAgents,omitempty"`
}

// Response is the optional acknowledgement body returned by the engine.
type Response struct {
	Message string `json:"message,omitempty"`
}

// WebhookConfig configures a Webhook.
type WebhookConfig struct {
	URL string
	// AgentURLs routes activities for specific agent ids to their own endpoints.
	AgentURLs map[string]string
	Timeout   time.Duration
	Agents    AgentLister
	Client    *http.Client
	Logger    *slog.Logger
}

// Webhook notifies the workflow engine over HTTP. Delivery is at most once.
type Webhook struct {
	url       string
	agentURLs map[string]string
	agents    AgentLister
	client    *http.Client
	logger    *slog.Logger
	now       func() time.Time
}

// NewWebhook validates the endpoints and builds a Webhook.
func NewWebhook(cfg WebhookConfig) (*Webhook, error) {
	if !ValidURL(cfg.URL) {
		return nil, fmt.Errorf("webhook url %q is not an http(s) url", cfg.URL)
	}
	agentURLs := make(map[string]string, len(cfg.AgentURLs))
	for id, u := range cfg.AgentURLs {
		if !ValidURL(u) {
			return nil, fmt.Errorf("webhook url for agent %s is not an http(s) url", id)
		}
		agentURLs[id] = u
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Webhook{
		url:       cfg.URL,
		agentURLs: agentURLs,
		agents:    cfg.Agents,
		client:    client,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Notify POSTs the activity snapshot. The response body is logged and never
// applied; results come back through storage.
func (w *Webhook) Notify(ctx context.Context, n activity.Notification, _ activity.ResultSink) error {
	if n.User.ID == "" {
		return activity.ErrAuthRequired
	}

	body, err := json.Marshal(w.payload(n))
	if err != nil {
		return &activity.NotificationError{Err: fmt.Errorf("encoding payload: %w", err)}
	}

	endpoint := w.endpoint(n)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &activity.NotificationError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return &activity.NotificationError{Err: err}
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		w.logger.Warn("workflow webhook rejected activity",
			"activity_id", n.Activity.ID,
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return &activity.NotificationError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var ack Response
	if len(respBody) > 0 && json.Unmarshal(respBody, &ack) == nil && ack.Message != "" {
		w.logger.Info("workflow webhook accepted activity", "activity_id", n.Activity.ID, "message", ack.Message)
	} else {
		w.logger.Info("workflow webhook accepted activity", "activity_id", n.Activity.ID)
	}
	return nil
}

func (w *Webhook) endpoint(n activity.Notification) string {
	if u, ok := w.agentURLs[n.Activity.AgentID]; ok {
		return u
	}
	if u, ok := w.agentURLs[n.SuggestedAgentID]; ok {
		return u
	}
	return w.url
}

func (w *Webhook) payload(n activity.Notification) Payload {
	attachments := n.Activity.Attachments
	if attachments == nil {
		attachments = []activity.Attachment{}
	}
	p := Payload{
		ActivityID:       n.Activity.ID,
		Command:          n.Command,
		HasAttachments:   len(attachments) > 0,
		Attachments:      attachments,
		Timestamp:        w.now(),
		Source:           n.Source,
		Activity:         n.Activity,
		SuggestedAgentID: n.SuggestedAgentID,
	}
	if n.User.ID != "" {
		user := n.User
		p.User = &user
	}
	if w.agents != nil {
		p.AvailableAgents = w.agents.Summaries()
	}
	return p
}
