package worker

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is how often expired entries are purged.
const DefaultInterval = time.Hour

// Purger deletes entries past retention.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// RetentionWorker periodically purges audit entries older than the
// retention window.
type RetentionWorker struct {
	purger   Purger
	interval time.Duration
	logger   *slog.Logger
}

func NewRetentionWorker(purger Purger, interval time.Duration, logger *slog.Logger) *RetentionWorker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &RetentionWorker{purger: purger, interval: interval, logger: logger}
}

// Run purges once immediately, then every interval until ctx is done.
// Purge failures are logged and retried on the next tick.
func (w *RetentionWorker) Run(ctx context.Context) error {
	w.purgeOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.purgeOnce(ctx)
		}
	}
}

func (w *RetentionWorker) purgeOnce(ctx context.Context) {
	n, err := w.purger.Purge(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "audit retention purge failed", "error", err)
		}
		return
	}
	if n > 0 {
		w.logger.InfoContext(ctx, "audit retention purge completed", "purged", n)
	}
}
