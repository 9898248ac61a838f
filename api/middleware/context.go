package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/lxlibrary/lx-backend/pkg/logger"
)

const (
	// ClientIDHeader identifies the browser that owns the durable cart and loans.
	ClientIDHeader = "X-Client-Id"
	// SessionIDHeader identifies the browsing session that owns the chat log.
	SessionIDHeader = "X-Session-Id"

	maxIdentityLength = 128
)

type contextKey string

const (
	ctxClientID  contextKey = "client_id"
	ctxSessionID contextKey = "session_id"
)

func ClientIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxClientID).(string); ok {
		return v
	}
	return ""
}

func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

// WithClientID injects the client identifier into the context.
func WithClientID(ctx context.Context, clientID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxClientID, clientID)
}

// WithSessionID injects the session identifier into the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSessionID, sessionID)
}

// Identity copies the client and session headers into the request context.
// Missing or oversized values are left empty; controllers reject them.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := headerIdentity(r, ClientIDHeader); id != "" {
				ctx = WithClientID(ctx, id)
				if logg != nil {
					ctx = logg.WithClientID(ctx, id)
				}
			}
			if id := headerIdentity(r, SessionIDHeader); id != "" {
				ctx = WithSessionID(ctx, id)
				if logg != nil {
					ctx = logg.WithSessionID(ctx, id)
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func headerIdentity(r *http.Request, header string) string {
	v := strings.TrimSpace(r.Header.Get(header))
	if len(v) > maxIdentityLength {
		return ""
	}
	return v
}
