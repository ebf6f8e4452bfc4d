package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"corkboard/internal/ratelimit/models"
	"corkboard/pkg/platform/httputil"
	"corkboard/pkg/platform/privacy"
	"corkboard/pkg/requestcontext"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderStatus     = "X-RateLimit-Status"
	HeaderRetryAfter = "Retry-After"

	statusDegraded = "degraded"
)

type RateLimiter interface {
	Check(ctx context.Context, bucket models.Bucket, ip, userID string) (*models.RateLimitResult, error)
}

type Middleware struct {
	limiter  RateLimiter
	logger   *slog.Logger
	disabled bool
	classify func(*http.Request) models.Bucket
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for local demos and tests).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithClassifier replaces BucketForRequest.
func WithClassifier(classify func(*http.Request) models.Bucket) Option {
	return func(m *Middleware) {
		m.classify = classify
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter:  limiter,
		logger:   logger,
		classify: BucketForRequest,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Handler limits every request using the bucket its route maps to.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.serve(w, r, next, m.classify(r))
	})
}

// RateLimit limits requests against a fixed bucket regardless of route.
func (m *Middleware) RateLimit(bucket models.Bucket) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.serve(w, r, next, bucket)
		})
	}
}

func (m *Middleware) serve(w http.ResponseWriter, r *http.Request, next http.Handler, bucket models.Bucket) {
	if m.disabled {
		next.ServeHTTP(w, r)
		return
	}

	ctx := r.Context()
	ip := requestcontext.ClientIP(ctx)
	userID := requestcontext.UserID(ctx)

	result, err := m.limiter.Check(ctx, bucket, ip, userID)
	if err != nil {
		// Fail open: the limiter is a courtesy control.
		m.logger.ErrorContext(ctx, "failed to check rate limit",
			"error", err, "bucket", bucket.String(), "ip_prefix", privacy.AnonymizeIP(ip))
		next.ServeHTTP(w, r)
		return
	}

	addRateLimitHeaders(w, result)

	if !result.Allowed {
		writeRateLimitExceeded(w, bucket, result)
		return
	}

	next.ServeHTTP(w, r)
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set(HeaderLimit, strconv.Itoa(result.Limit))
	w.Header().Set(HeaderRemaining, strconv.Itoa(result.Remaining))
	w.Header().Set(HeaderReset, result.ResetAt.UTC().Format(time.RFC3339))
	if result.Degraded {
		w.Header().Set(HeaderStatus, statusDegraded)
	}
}

func writeRateLimitExceeded(w http.ResponseWriter, bucket models.Bucket, result *models.RateLimitResult) {
	w.Header().Set(HeaderRetryAfter, strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		Bucket:     bucket,
		RetryAfter: result.RetryAfter,
		ResetAt:    result.ResetAt.UTC(),
	})
}
