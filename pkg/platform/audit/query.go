package audit

import (
	"context"
	"time"

	dErrors "corkboard/pkg/domain-errors"
)

// DefaultStatsDays is the stats window when the caller gives none.
const DefaultStatsDays = 7

// Search returns one page of entries, newest first, plus the total match
// count.
func (r *Recorder) Search(ctx context.Context, filter Filter) ([]Entry, int, error) {
	filter = filter.Normalize()
	if filter.Action != "" && !filter.Action.IsValid() {
		return nil, 0, dErrors.New(dErrors.CodeInvalidInput, "unknown audit action: "+filter.Action.String())
	}
	if !filter.Since.IsZero() && !filter.Until.IsZero() && !filter.Since.Before(filter.Until) {
		return nil, 0, dErrors.New(dErrors.CodeInvalidInput, "since must be before until")
	}
	entries, total, err := r.store.Search(ctx, filter)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search audit log")
	}
	return entries, total, nil
}

// Stats aggregates the last days days of activity, optionally for one user.
// days is clamped to the retention window.
func (r *Recorder) Stats(ctx context.Context, userID string, days int) (*Stats, error) {
	if days <= 0 {
		days = DefaultStatsDays
	}
	if maxDays := max(int(r.retention/(24*time.Hour)), 1); days > maxDays {
		days = maxDays
	}
	since := r.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	stats, err := r.store.Stats(ctx, userID, since)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute audit stats")
	}
	stats.Days = days
	return stats, nil
}

// Purge deletes entries past the retention window.
func (r *Recorder) Purge(ctx context.Context) (int64, error) {
	cutoff := r.now().UTC().Add(-r.retention)
	n, err := r.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge audit log")
	}
	if r.metrics != nil {
		r.metrics.AddPurged(n)
	}
	return n, nil
}
