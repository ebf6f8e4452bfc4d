package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "corkboard/pkg/domain-errors"
	"corkboard/pkg/platform/httputil"
	"corkboard/pkg/requestcontext"
)

// SessionCookie is the cookie browsers carry the session token in.
const SessionCookie = "session"

// JWTValidator defines the interface for validating session tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// TokenRevocationChecker defines the interface for checking if tokens are revoked.
type TokenRevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// DeniedRecorder is told about every request RequireAuth turns away.
type DeniedRecorder interface {
	LogUnauthorizedAccess(ctx context.Context, resource, reason string)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	UserID string
	JTI    string
}

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	return requestcontext.UserID(ctx)
}

// GetSessionID retrieves the session token ID from the context.
func GetSessionID(ctx context.Context) string {
	return requestcontext.SessionID(ctx)
}

// TokenFromRequest returns the session token, preferring the Authorization
// header over the session cookie.
func TokenFromRequest(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// Authenticate resolves the caller from a bearer token or session cookie.
// It never rejects: a missing, invalid or revoked token leaves the request
// anonymous so rate limiting can still key on "anonymous". Routes that need a
// user wrap themselves in RequireAuth.
func Authenticate(validator JWTValidator, revocationChecker TokenRevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.DebugContext(ctx, "ignoring invalid session token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			if revocationChecker != nil && claims.JTI != "" {
				revoked, err := revocationChecker.IsTokenRevoked(ctx, claims.JTI)
				if err != nil {
					logger.ErrorContext(ctx, "failed to check token revocation",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
					next.ServeHTTP(w, r)
					return
				}
				if revoked {
					logger.DebugContext(ctx, "ignoring revoked session token",
						"jti", claims.JTI,
						"request_id", requestcontext.RequestID(ctx),
					)
					next.ServeHTTP(w, r)
					return
				}
			}

			ctx = requestcontext.WithUserID(ctx, claims.UserID)
			ctx = requestcontext.WithSessionID(ctx, claims.JTI)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(recorder DeniedRecorder, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.UserID(ctx) != "" {
				next.ServeHTTP(w, r)
				return
			}

			logger.WarnContext(ctx, "unauthorized access - missing session",
				"request_id", requestcontext.RequestID(ctx),
				"path", r.URL.Path,
			)
			if recorder != nil {
				recorder.LogUnauthorizedAccess(ctx, r.URL.Path, "missing or invalid session")
			}
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		})
	}
}
