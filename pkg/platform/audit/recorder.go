package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"corkboard/pkg/platform/privacy"
	"corkboard/pkg/requestcontext"
)

// DefaultWriteTimeout bounds a single store write.
const DefaultWriteTimeout = 5 * time.Second

const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
	outcomePanic  = "panic"
)

// Recorder writes audit entries on a best-effort basis. Record never returns
// an error and never panics: a failing store is logged and counted, and the
// request that triggered the event carries on.
type Recorder struct {
	store        Store
	sinks        []Sink
	logger       *slog.Logger
	metrics      *Metrics
	now          func() time.Time
	writeTimeout time.Duration
	retention    time.Duration
	tracer       trace.Tracer
}

// Option configures the Recorder.
type Option func(*Recorder)

// WithLogger sets the local mirror logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// WithSink adds a mirror destination. Nil sinks are ignored.
func WithSink(sink Sink) Option {
	return func(r *Recorder) {
		if sink != nil {
			r.sinks = append(r.sinks, sink)
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithWriteTimeout overrides DefaultWriteTimeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// WithRetention overrides RetentionPeriod for Purge and the Stats window.
func WithRetention(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.retention = d
		}
	}
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:        store,
		logger:       slog.Default(),
		now:          time.Now,
		writeTimeout: DefaultWriteTimeout,
		retention:    RetentionPeriod,
		tracer:       otel.Tracer("corkboard/audit"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record fills in identity, timestamp, category and network origin, mirrors
// the entry to the local log, then persists it. The write is detached from
// the caller's cancellation so an aborted request still leaves its trail.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	entry = r.complete(ctx, entry)

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "audit write panicked",
				"action", entry.Action, "panic", fmt.Sprint(rec))
			r.countWrite(entry.Category, outcomePanic)
		}
	}()

	r.mirror(ctx, entry)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
	defer cancel()

	writeCtx, span := r.tracer.Start(writeCtx, "audit.record", trace.WithAttributes(
		attribute.String("audit.action", entry.Action.String()),
		attribute.String("audit.category", string(entry.Category)),
		attribute.Bool("audit.success", entry.Success),
	))
	defer span.End()

	if err := r.store.Append(writeCtx, entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit write failed")
		r.logger.ErrorContext(ctx, "audit write failed",
			"action", entry.Action, "entry_id", entry.ID, "error", err)
		r.countWrite(entry.Category, outcomeFailed)
	} else {
		r.countWrite(entry.Category, outcomeOK)
	}

	for _, sink := range r.sinks {
		if err := sink.Publish(writeCtx, entry); err != nil {
			r.logger.WarnContext(ctx, "audit mirror publish failed",
				"action", entry.Action, "entry_id", entry.ID, "error", err)
			if r.metrics != nil {
				r.metrics.IncSinkFailures()
			}
		}
	}
}

func (r *Recorder) complete(ctx context.Context, entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now().UTC()
	}
	entry.Category = entry.Action.Category()
	if entry.IPAddress == "" {
		entry.IPAddress = requestcontext.ClientIP(ctx)
	}
	if entry.UserAgent == "" {
		entry.UserAgent = requestcontext.UserAgent(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}
	return entry
}

// mirror writes the entry to the structured log: warn for failures, info
// otherwise.
func (r *Recorder) mirror(ctx context.Context, entry Entry) {
	level := slog.LevelInfo
	if !entry.Success {
		level = slog.LevelWarn
	}
	attrs := []any{
		"log_type", "audit",
		"entry_id", entry.ID,
		"action", entry.Action,
		"category", entry.Category,
		"success", entry.Success,
		"ip_prefix", privacy.AnonymizeIP(entry.IPAddress),
	}
	if entry.UserID != "" {
		attrs = append(attrs, "user_id", entry.UserID)
	}
	if entry.Resource != "" {
		attrs = append(attrs, "resource", entry.Resource)
	}
	if entry.ResourceID != "" {
		attrs = append(attrs, "resource_id", entry.ResourceID)
	}
	if entry.ErrorMessage != "" {
		attrs = append(attrs, "error", entry.ErrorMessage)
	}
	r.logger.Log(ctx, level, string(entry.Action), attrs...)
}

func (r *Recorder) countWrite(category Category, outcome string) {
	if r.metrics != nil {
		r.metrics.IncWrite(category, outcome)
	}
}
