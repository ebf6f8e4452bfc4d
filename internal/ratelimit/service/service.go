// Package service answers rate limit checks for named buckets.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"corkboard/internal/ratelimit/config"
	"corkboard/internal/ratelimit/metrics"
	"corkboard/internal/ratelimit/models"
	"corkboard/internal/ratelimit/ports"
	"corkboard/internal/ratelimit/store/bucket"
	dErrors "corkboard/pkg/domain-errors"
	"corkboard/pkg/platform/circuit"
	"corkboard/pkg/platform/privacy"
)

// Type aliases for interfaces from ports package.
type (
	BucketStore   = ports.BucketStore
	AuditRecorder = ports.AuditRecorder
)

// Service applies the bucket table to a BucketStore. When the primary store
// is remote, a circuit breaker routes checks to an in-memory fallback while
// the primary keeps failing.
type Service struct {
	buckets   BucketStore
	fallback  *bucket.InMemoryBucketStore
	breaker   *circuit.Breaker
	storeName string
	config    *config.Config
	audit     AuditRecorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		s.audit = recorder
	}
}

// WithFallback enables degraded mode: after the breaker opens, checks are
// answered by fallback until the primary recovers.
func WithFallback(fallback *bucket.InMemoryBucketStore, breaker *circuit.Breaker) Option {
	return func(s *Service) {
		s.fallback = fallback
		s.breaker = breaker
	}
}

// WithStoreName labels the primary store in stats output.
func WithStoreName(name string) Option {
	return func(s *Service) {
		s.storeName = name
	}
}

func New(buckets BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("buckets store is required")
	}
	svc := &Service{
		buckets:   buckets,
		storeName: "memory",
		config:    config.Development(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("corkboard/ratelimit"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.fallback != nil && svc.breaker == nil {
		svc.breaker = circuit.New("ratelimit")
	}
	return svc, nil
}

// Check counts one request from (ip, userID) against bucket. Denial is a
// normal result, not an error; an error means no store could answer.
func (s *Service) Check(ctx context.Context, b models.Bucket, ip, userID string) (*models.RateLimitResult, error) {
	if !b.IsValid() {
		b = models.BucketGeneral
	}
	key := models.NewKey(ip, userID)
	limit := s.config.LimitFor(b)

	ctx, span := s.tracer.Start(ctx, "ratelimit.check", trace.WithAttributes(
		attribute.String("ratelimit.bucket", b.String()),
		attribute.Int("ratelimit.max", limit.Max),
	))
	defer span.End()

	result, err := s.allow(ctx, b, key, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limit check failed")
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to check rate limit")
	}
	span.SetAttributes(
		attribute.Bool("ratelimit.allowed", result.Allowed),
		attribute.Bool("ratelimit.degraded", result.Degraded),
	)

	if s.metrics != nil {
		s.metrics.ObserveDecision(b.String(), result.Allowed)
	}
	if !result.Allowed {
		s.logger.InfoContext(ctx, "rate limit exceeded",
			"bucket", b.String(),
			"ip_prefix", privacy.AnonymizeIP(ip),
			"user_id", userID,
			"limit", limit.Max,
			"window_seconds", int(limit.Window.Seconds()),
			"retry_after", result.RetryAfter,
		)
		if s.audit != nil {
			s.audit.LogRateLimitExceeded(ctx, b.String(), key)
		}
	}
	return result, nil
}

// allow consults the primary store, routing to the fallback while the
// breaker is open.
func (s *Service) allow(ctx context.Context, b models.Bucket, key string, limit models.Limit) (*models.RateLimitResult, error) {
	result, err := s.buckets.Allow(ctx, b, key, limit)
	if s.fallback == nil {
		return result, err
	}

	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementStoreErrors()
		}
		useFallback, change := s.breaker.RecordFailure()
		if change.Opened {
			s.logger.WarnContext(ctx, "rate limit store unavailable, switching to in-memory fallback",
				"breaker", s.breaker.Name(), "error", err)
			s.setCircuitGauge(true)
		}
		if !useFallback {
			return nil, err
		}
		return s.degraded(ctx, b, key, limit)
	}

	usePrimary, change := s.breaker.RecordSuccess()
	if change.Closed {
		s.logger.InfoContext(ctx, "rate limit store recovered", "breaker", s.breaker.Name())
		s.setCircuitGauge(false)
	}
	if !usePrimary {
		return s.degraded(ctx, b, key, limit)
	}
	return result, nil
}

func (s *Service) degraded(ctx context.Context, b models.Bucket, key string, limit models.Limit) (*models.RateLimitResult, error) {
	result, err := s.fallback.Allow(ctx, b, key, limit)
	if err != nil {
		return nil, err
	}
	result.Degraded = true
	if s.metrics != nil {
		s.metrics.IncrementDegraded()
	}
	return result, nil
}

func (s *Service) setCircuitGauge(open bool) {
	if s.metrics != nil {
		s.metrics.SetCircuitOpen(open)
	}
}

// Reset clears one identity's counter in the primary store and, when
// configured, the fallback.
func (s *Service) Reset(ctx context.Context, b models.Bucket, ip, userID string) error {
	key := models.NewKey(ip, userID)
	if err := s.buckets.Reset(ctx, b, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to reset rate limit")
	}
	if s.fallback != nil {
		_ = s.fallback.Reset(ctx, b, key)
	}
	s.logger.InfoContext(ctx, "rate limit reset",
		"bucket", b.String(),
		"ip_prefix", privacy.AnonymizeIP(ip),
		"user_id", userID,
	)
	return nil
}

// CurrentCount reports how many requests (ip, userID) has made in the
// current window.
func (s *Service) CurrentCount(ctx context.Context, b models.Bucket, ip, userID string) (int, error) {
	count, err := s.buckets.GetCurrentCount(ctx, b, models.NewKey(ip, userID))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read rate limit count")
	}
	return count, nil
}

// Degraded reports whether checks are currently served by the fallback.
func (s *Service) Degraded() bool {
	return s.breaker != nil && s.breaker.IsOpen()
}

// Stats describes every bucket's policy and, for in-memory stores, its
// occupancy.
func (s *Service) Stats() *models.StatsResponse {
	mem, _ := s.buckets.(*bucket.InMemoryBucketStore)
	if mem == nil && s.Degraded() {
		mem = s.fallback
	}
	resp := &models.StatsResponse{Store: s.storeName}
	for _, b := range models.AllBuckets {
		limit := s.config.LimitFor(b)
		st := models.BucketStats{
			Bucket: b,
			Max:    limit.Max,
			Window: limit.Window.String(),
		}
		if mem != nil {
			st.Entries = mem.Len(b)
			st.Capacity = mem.Capacity()
			if s.metrics != nil {
				s.metrics.SetTrackedKeys(b.String(), st.Entries)
			}
		}
		resp.Buckets = append(resp.Buckets, st)
	}
	return resp
}

// RunJanitor sweeps expired windows from whichever in-memory store the
// service owns. It returns when ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) error {
	mem, _ := s.buckets.(*bucket.InMemoryBucketStore)
	if mem == nil {
		mem = s.fallback
	}
	if mem == nil {
		<-ctx.Done()
		return nil
	}
	return mem.Run(ctx, interval)
}
