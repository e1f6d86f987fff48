package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/agenthub/internal/domain/activity"
)

type contextKey int

const userKey contextKey = iota

// getUser extracts the authenticated caller from context.
func getUser(ctx context.Context) activity.User {
	v, _ := ctx.Value(userKey).(activity.User)
	return v
}

// UserResolver resolves the caller from a bearer token.
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (activity.User, error)
}

// authMiddleware implements bearer token authentication as MCP middleware.
func authMiddleware(resolver UserResolver) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			// Protocol handshake carries no credentials.
			if method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("unauthorized: missing headers")
			}

			auth := extra.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				return nil, fmt.Errorf("unauthorized: missing bearer token")
			}

			user, err := resolver.ResolveUser(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("unauthorized: %w", err)
			}
			if user.ID == "" {
				return nil, fmt.Errorf("unauthorized: invalid bearer token")
			}

			return next(context.WithValue(ctx, userKey, user), method, req)
		}
	}
}

// noAuthMiddleware injects a fixed caller when auth is disabled.
func noAuthMiddleware(user activity.User) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			return next(context.WithValue(ctx, userKey, user), method, req)
		}
	}
}
