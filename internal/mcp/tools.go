package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/domain/agent"
)

type tools struct {
	activities    ActivityService
	agents        *agent.Catalog
	serviceUserID string
	logger        *slog.Logger
}

func (t *tools) register(server *sdkmcp.Server) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_activities",
		Description: "List a user's persisted activities, newest first",
	}, t.listActivities)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "post_activity",
		Description: "Post an agent response or other new activity to a user's feed",
	}, t.postActivity)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "update_activity",
		Description: "Update fields of an existing activity, typically to report a result or status",
	}, t.updateActivity)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_agents",
		Description: "List the agents activities can be routed to",
	}, t.listAgents)
}

func (t *tools) listActivities(ctx context.Context, _ *sdkmcp.CallToolRequest, in ListActivitiesParams) (*sdkmcp.CallToolResult, any, error) {
	userID, err := t.targetUser(ctx, in.UserID)
	if err != nil {
		return nil, nil, MapError(err)
	}
	opts := activity.ListOptions{
		AgentID:          in.AgentID,
		IncludeDismissed: in.IncludeDismissed,
		Limit:            in.Limit,
		Offset:           in.Offset,
	}
	if in.Type != "" {
		typ := activity.ActivityType(in.Type)
		if !typ.Valid() {
			return nil, nil, MapError(fmt.Errorf("%w: unknown type %q", activity.ErrInvalidInput, in.Type))
		}
		opts.Type = &typ
	}

	list, err := t.activities.List(ctx, userID, opts)
	if err != nil {
		return nil, nil, MapError(err)
	}
	if list == nil {
		list = []activity.Activity{}
	}
	return jsonResult(ListActivitiesResult{Activities: list})
}

func (t *tools) postActivity(ctx context.Context, _ *sdkmcp.CallToolRequest, in PostActivityParams) (*sdkmcp.CallToolResult, any, error) {
	userID, err := t.targetUser(ctx, in.UserID)
	if err != nil {
		return nil, nil, MapError(err)
	}
	d := in.draft()
	d.AgentID, d.Agent = t.agents.Resolve(d.AgentID, d.Agent)

	created, err := t.activities.Post(ctx, userID, d)
	if err != nil {
		return nil, nil, MapError(err)
	}
	t.logger.Debug("workflow posted activity", "user_id", userID, "activity_id", created.ID)
	return jsonResult(created)
}

func (t *tools) updateActivity(ctx context.Context, _ *sdkmcp.CallToolRequest, in UpdateActivityParams) (*sdkmcp.CallToolResult, any, error) {
	userID, err := t.targetUser(ctx, in.UserID)
	if err != nil {
		return nil, nil, MapError(err)
	}
	updated, err := t.activities.Update(ctx, userID, in.ID, in.patch())
	if err != nil {
		return nil, nil, MapError(err)
	}
	return jsonResult(updated)
}

func (t *tools) listAgents(_ context.Context, _ *sdkmcp.CallToolRequest, _ ListAgentsParams) (*sdkmcp.CallToolResult, any, error) {
	return jsonResult(t.agents.List())
}

// targetUser returns the user a call acts on. Only the service user may name
// someone other than itself.
func (t *tools) targetUser(ctx context.Context, requested string) (string, error) {
	caller := getUser(ctx)
	if caller.ID == "" {
		return "", activity.ErrAuthRequired
	}
	if requested == "" || requested == caller.ID {
		return caller.ID, nil
	}
	if t.serviceUserID != "" && caller.ID == t.serviceUserID {
		return requested, nil
	}
	return "", fmt.Errorf("%w: %s may not act for %s", ErrForbidden, caller.ID, requested)
}

func jsonResult(v any) (*sdkmcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}
