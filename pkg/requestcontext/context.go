// Package requestcontext carries request-scoped values without net/http.
//
// Middleware writes them; services, the audit recorder and the rate
// limiter read them:
//
//	userID := requestcontext.UserID(ctx)
//	ip := requestcontext.ClientIP(ctx)
//	now := requestcontext.Now(ctx)
//
// Service tests set them directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "curl/8.0")
package requestcontext

import (
	"context"
	"time"
)

type key int

const (
	userIDKey key = iota
	sessionIDKey
	clientIPKey
	userAgentKey
	requestIDKey
	requestTimeKey
)

func get[T any](ctx context.Context, k key) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

func str(ctx context.Context, k key) string {
	v, _ := get[string](ctx, k)
	return v
}

// UserID is the authenticated member, or "" for anonymous requests.
func UserID(ctx context.Context) string { return str(ctx, userIDKey) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// SessionID is the jti of the session token that authenticated the request.
func SessionID(ctx context.Context) string { return str(ctx, sessionIDKey) }

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

func ClientIP(ctx context.Context) string { return str(ctx, clientIPKey) }

func UserAgent(ctx context.Context) string { return str(ctx, userAgentKey) }

// WithClientMetadata sets what the metadata middleware would.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey, clientIP)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func RequestID(ctx context.Context) string { return str(ctx, requestIDKey) }

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// Now is the request's frozen time. Outside a request (workers, the CLI)
// it is the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := get[time.Time](ctx, requestTimeKey); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}
