// Package securityheaders attaches browser hardening headers to responses.
package securityheaders

import (
	"net/http"
	"strings"

	platformstrings "corkboard/pkg/platform/strings"
)

const (
	HeaderHSTS = "Strict-Transport-Security"
	HeaderCSP  = "Content-Security-Policy"

	hstsValue = "max-age=63072000; includeSubDomains; preload"
)

// staticHeaders are applied in every environment.
var staticHeaders = [][2]string{
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()"},
	{"X-XSS-Protection", "1; mode=block"},
	{"X-DNS-Prefetch-Control", "on"},
	{"X-Download-Options", "noopen"},
	{"X-Permitted-Cross-Domain-Policies", "none"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
}

// StaticHeaderNames lists the headers applied regardless of environment.
func StaticHeaderNames() []string {
	names := make([]string, len(staticHeaders))
	for i, h := range staticHeaders {
		names[i] = h[0]
	}
	return names
}

// Policy is the set of headers for one environment. It is immutable after
// construction.
type Policy struct {
	production bool
	csp        string
}

// New builds the policy. csp is only used in production; pass DefaultCSP()
// unless the deployment needs a different allow-list.
func New(production bool, csp CSP) *Policy {
	return &Policy{production: production, csp: csp.String()}
}

// Apply sets every header on h. Values are replaced, never appended, so
// applying twice yields the same headers.
func (p *Policy) Apply(h http.Header) {
	for _, kv := range staticHeaders {
		h.Set(kv[0], kv[1])
	}
	if !p.production {
		return
	}
	h.Set(HeaderHSTS, hstsValue)
	if p.csp != "" {
		h.Set(HeaderCSP, p.csp)
	}
}

// Middleware applies the headers before the handler runs so that error
// responses written further down the chain carry them too.
func (p *Policy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.Apply(w.Header())
		next.ServeHTTP(w, r)
	})
}

// Apply is a shorthand for New(production, DefaultCSP()).Apply(h).
func Apply(h http.Header, production bool) {
	New(production, DefaultCSP()).Apply(h)
}

// CSP is a declarative Content-Security-Policy allow-list. Empty directives
// are omitted from the rendered header.
type CSP struct {
	DefaultSrc     []string
	ScriptSrc      []string
	StyleSrc       []string
	ImgSrc         []string
	FontSrc        []string
	ConnectSrc     []string
	FrameSrc       []string
	ObjectSrc      []string
	BaseURI        []string
	FormAction     []string
	FrameAncestors []string
	// UpgradeInsecureRequests adds the valueless upgrade-insecure-requests
	// directive.
	UpgradeInsecureRequests bool
}

const (
	self         = "'self'"
	none         = "'none'"
	unsafeInline = "'unsafe-inline'"
)

// Third-party origins the board front end talks to.
var (
	analyticsOrigins = []string{"https://www.googletagmanager.com", "https://www.google-analytics.com"}
	errorOrigins     = []string{"https://*.ingest.sentry.io"}
	paymentOrigins   = []string{"https://js.stripe.com"}
	paymentAPI       = []string{"https://api.stripe.com"}
	fontOrigins      = []string{"https://fonts.gstatic.com"}
	styleOrigins     = []string{"https://fonts.googleapis.com"}
)

// DefaultCSP is the production allow-list: first party, analytics, error
// reporting and payment origins, plus data: and blob: for inline assets.
func DefaultCSP() CSP {
	return CSP{
		DefaultSrc:              []string{self},
		ScriptSrc:               concat([]string{self}, analyticsOrigins, paymentOrigins),
		StyleSrc:                concat([]string{self, unsafeInline}, styleOrigins),
		ImgSrc:                  concat([]string{self, "data:", "blob:"}, analyticsOrigins),
		FontSrc:                 concat([]string{self, "data:"}, fontOrigins),
		ConnectSrc:              concat([]string{self}, analyticsOrigins, errorOrigins, paymentAPI),
		FrameSrc:                paymentOrigins,
		ObjectSrc:               []string{none},
		BaseURI:                 []string{self},
		FormAction:              []string{self},
		FrameAncestors:          []string{none},
		UpgradeInsecureRequests: true,
	}
}

func (c CSP) String() string {
	directives := []struct {
		name    string
		sources []string
	}{
		{"default-src", c.DefaultSrc},
		{"script-src", c.ScriptSrc},
		{"style-src", c.StyleSrc},
		{"img-src", c.ImgSrc},
		{"font-src", c.FontSrc},
		{"connect-src", c.ConnectSrc},
		{"frame-src", c.FrameSrc},
		{"object-src", c.ObjectSrc},
		{"base-uri", c.BaseURI},
		{"form-action", c.FormAction},
		{"frame-ancestors", c.FrameAncestors},
	}

	parts := make([]string, 0, len(directives)+1)
	for _, d := range directives {
		if len(d.sources) == 0 {
			continue
		}
		parts = append(parts, d.name+" "+strings.Join(d.sources, " "))
	}
	if c.UpgradeInsecureRequests {
		parts = append(parts, "upgrade-insecure-requests")
	}
	return strings.Join(parts, "; ")
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return platformstrings.DedupeAndTrim(out)
}
