package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "corkboard/pkg/domain-errors"
	"corkboard/pkg/platform/httputil"
	"corkboard/pkg/requestcontext"
)

// Header carries the operator token for /admin routes.
const Header = "X-Admin-Token"

// RequireAdminToken guards operator endpoints. An empty expected token
// disables the routes entirely rather than accepting an empty header.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(Header)
			// Use constant-time comparison to prevent timing attacks
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
