// Package httptransport assembles the HTTP router and its middleware chain.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"corkboard/pkg/platform/httputil"
	adminmw "corkboard/pkg/platform/middleware/admin"
	authmw "corkboard/pkg/platform/middleware/auth"
	"corkboard/pkg/platform/middleware/metadata"
	"corkboard/pkg/platform/middleware/request"
	"corkboard/pkg/platform/middleware/requesttime"
)

type Middleware = func(http.Handler) http.Handler

// AdminRoutes is implemented by handlers that expose /admin endpoints.
type AdminRoutes interface {
	RegisterAdmin(r chi.Router)
}

// BoardRoutes mounts the public API. requireAuth guards routes that need a
// signed-in user.
type BoardRoutes interface {
	Register(r chi.Router, requireAuth func(http.Handler) http.Handler)
}

// Deps is everything the router needs. Nil middleware is skipped so tests
// can build partial chains.
type Deps struct {
	Logger *slog.Logger

	HTTPMetrics     Middleware
	SecurityHeaders Middleware
	Authenticate    Middleware
	RequireAuth     Middleware
	RateLimit       Middleware
	CSRF            Middleware

	// CSRFToken serves GET /api/csrf-token.
	CSRFToken http.HandlerFunc
	Metrics   http.Handler
	// MetricsPath defaults to /metrics.
	MetricsPath string
	Health      func(ctx context.Context) error

	Board      BoardRoutes
	Admin      []AdminRoutes
	AdminToken string
}

// NewRouter builds the chain, outermost first: request ID, HTTP metrics,
// client metadata, request time, security headers, session, rate limit, CSRF.
// Health and metrics endpoints sit outside rate limiting and CSRF; admin
// routes are rate limited but not CSRF guarded.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	use(r, d.HTTPMetrics)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	use(r, d.SecurityHeaders)

	r.Get("/healthz", healthHandler(d.Health))
	if d.Metrics != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, d.Metrics)
	}

	r.Group(func(r chi.Router) {
		use(r, d.Authenticate)
		use(r, d.RateLimit)
		use(r, d.CSRF)

		if d.CSRFToken != nil {
			r.Get("/api/csrf-token", d.CSRFToken)
		}
		if d.Board != nil {
			requireAuth := d.RequireAuth
			if requireAuth == nil {
				requireAuth = authmw.RequireAuth(nil, d.Logger)
			}
			d.Board.Register(r, requireAuth)
		}
	})

	// Admin routes carry their credential in a header, so no cookie can
	// be replayed against them and the CSRF guard does not apply.
	if len(d.Admin) > 0 {
		r.Group(func(r chi.Router) {
			use(r, d.RateLimit)
			r.Use(adminmw.RequireAdminToken(d.AdminToken, d.Logger))
			for _, a := range d.Admin {
				a.RegisterAdmin(r)
			}
		})
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{
			Error: "not_found", ErrorDescription: "route not found",
		})
	})
	return r
}

func use(r chi.Router, mw Middleware) {
	if mw != nil {
		r.Use(mw)
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Error: err.Error()})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
