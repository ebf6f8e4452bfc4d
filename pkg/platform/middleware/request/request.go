// Package request assigns a correlation ID to every request.
package request

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"corkboard/pkg/requestcontext"
)

// Header is the HTTP header carrying the request ID.
const Header = "X-Request-ID"

// Upstream IDs are only trusted when they cannot smuggle CRLF or grow unbounded.
var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// RequestID keeps a well-formed upstream X-Request-ID or mints a new one,
// echoes it on the response and stores it in the context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if !validID.MatchString(requestID) {
			requestID = uuid.NewString()
		}
		w.Header().Set(Header, requestID)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), requestID)))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
