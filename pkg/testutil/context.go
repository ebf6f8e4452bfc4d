package testutil

import (
	"net/http"

	"corkboard/pkg/requestcontext"
)

// WithUserID marks the request authenticated, as the auth middleware would.
func WithUserID(req *http.Request, userID string) *http.Request {
	return req.WithContext(requestcontext.WithUserID(req.Context(), userID))
}

// WithClientIP sets client metadata, as the metadata middleware would.
func WithClientIP(req *http.Request, ip string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, req.UserAgent()))
}
