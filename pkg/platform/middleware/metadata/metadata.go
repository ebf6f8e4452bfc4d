package metadata

import (
	"context"
	"net/http"
	"strings"

	"corkboard/pkg/requestcontext"
)

// UnknownIP stands in for the client address when no proxy header names one.
const UnknownIP = "unknown"

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them to the context for use by handlers and services.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientIP retrieves the client IP address from the context.
func GetClientIP(ctx context.Context) string {
	return requestcontext.ClientIP(ctx)
}

// GetUserAgent retrieves the User-Agent from the context.
func GetUserAgent(ctx context.Context) string {
	return requestcontext.UserAgent(ctx)
}

// ClientIPFromRequest returns the first X-Forwarded-For entry, the original
// client as seen by the edge proxy. Without the header the client is
// "unknown": the board always runs behind a proxy that sets it, and a
// direct connection's RemoteAddr would be the proxy itself.
func ClientIPFromRequest(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if idx := strings.Index(xff, ","); idx != -1 {
		xff = xff[:idx]
	}
	if ip := strings.TrimSpace(xff); ip != "" {
		return ip
	}
	return UnknownIP
}
