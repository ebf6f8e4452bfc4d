// Package csrf implements double-submit cookie protection.
//
// The server keeps the token in an HttpOnly, SameSite=Strict cookie. Clients
// fetch it from GET /api/csrf-token and echo it on every state-changing
// request, either in the X-CSRF-Token header or in the body.
package csrf

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	dErrors "corkboard/pkg/domain-errors"
	"corkboard/pkg/platform/httputil"
	"corkboard/pkg/platform/privacy"
	"corkboard/pkg/requestcontext"
)

const (
	CookieName = "csrf-token"
	HeaderName = "X-CSRF-Token"
	TokenTTL   = 24 * time.Hour
)

// Reason explains a failed verification. It is used as a metric label and
// recorded in the audit log.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonMissingCookie Reason = "missing_cookie"
	ReasonMissingToken  Reason = "missing_token"
	ReasonMismatch      Reason = "token_mismatch"
)

// AuditRecorder records rejected requests.
type AuditRecorder interface {
	LogUnauthorizedAccess(ctx context.Context, resource, reason string)
}

type Guard struct {
	secure      bool
	exempt      []string
	logger      *slog.Logger
	metrics     *Metrics
	auditLogger AuditRecorder
}

type Option func(*Guard)

// WithSecureCookie marks the cookie Secure. Enable it in production.
func WithSecureCookie(secure bool) Option {
	return func(g *Guard) {
		g.secure = secure
	}
}

// WithExemptPaths skips verification for requests whose path starts with
// one of prefixes.
func WithExemptPaths(prefixes ...string) Option {
	return func(g *Guard) {
		for _, p := range prefixes {
			if p = strings.TrimSpace(p); p != "" {
				g.exempt = append(g.exempt, p)
			}
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(g *Guard) {
		g.auditLogger = recorder
	}
}

func New(opts ...Option) *Guard {
	g := &Guard{logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func (g *Guard) isExempt(path string) bool {
	for _, prefix := range g.exempt {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

type mintedKey struct{}

// cookieToken returns the token stored in the request cookie, or "".
func cookieToken(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// GetOrGenerate returns the browser's current token, minting and setting a
// new cookie when none (or a malformed one) is present. An existing token
// is never rotated.
func (g *Guard) GetOrGenerate(w http.ResponseWriter, r *http.Request) (string, error) {
	if token := cookieToken(r); wellFormed(token) {
		return token, nil
	}
	if token, ok := r.Context().Value(mintedKey{}).(string); ok {
		return token, nil
	}
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(TokenTTL / time.Second),
		Expires:  requestcontext.Now(r.Context()).Add(TokenTTL),
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteStrictMode,
	})
	if g.metrics != nil {
		g.metrics.IncIssued()
	}
	return token, nil
}

// Verify checks the double-submitted token. Safe methods always pass. The
// candidate comes from the header first, then from the body according to
// its content type.
func (g *Guard) Verify(r *http.Request) (bool, Reason) {
	if isSafeMethod(r.Method) {
		return true, ReasonNone
	}
	// A malformed cookie was never minted here, so it counts as absent.
	expected := cookieToken(r)
	if !wellFormed(expected) {
		return false, ReasonMissingCookie
	}
	candidate := r.Header.Get(HeaderName)
	if candidate == "" {
		var ok bool
		if candidate, ok = tokenFromBody(r); !ok {
			return false, ReasonMissingToken
		}
	}
	if !Equal(expected, candidate) {
		return false, ReasonMismatch
	}
	return true, ReasonNone
}

// Middleware rejects state-changing requests that fail verification with
// 403. Safe requests without a cookie get one minted on the way through.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.isExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if isSafeMethod(r.Method) {
			token, err := g.GetOrGenerate(w, r)
			if err != nil {
				g.logger.ErrorContext(r.Context(), "failed to mint csrf token", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			// Downstream handlers see the token minted for this response.
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), mintedKey{}, token)))
			return
		}

		if ok, reason := g.Verify(r); !ok {
			g.reject(w, r, reason)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Guard) reject(w http.ResponseWriter, r *http.Request, reason Reason) {
	ctx := r.Context()
	g.logger.WarnContext(ctx, "csrf verification failed",
		"reason", string(reason),
		"method", r.Method,
		"path", r.URL.Path,
		"ip_prefix", privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
	)
	if g.metrics != nil {
		g.metrics.IncFailure(reason)
	}
	if g.auditLogger != nil {
		g.auditLogger.LogUnauthorizedAccess(ctx, r.URL.Path, "csrf: "+string(reason))
	}
	httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "invalid or missing CSRF token"))
}

// TokenResponse is the body of GET /api/csrf-token.
type TokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// HandleToken returns the current token, minting one if needed.
func (g *Guard) HandleToken(w http.ResponseWriter, r *http.Request) {
	token, err := g.GetOrGenerate(w, r)
	if err != nil {
		g.logger.ErrorContext(r.Context(), "failed to mint csrf token", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue csrf token"))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, TokenResponse{CSRFToken: token})
}
