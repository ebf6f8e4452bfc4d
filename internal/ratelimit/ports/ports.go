// Package ports defines shared interfaces for the ratelimit module.
package ports

import (
	"context"

	"corkboard/internal/ratelimit/models"
)

// BucketStore manages fixed-window rate limit counters, one keyspace per
// bucket.
type BucketStore interface {
	// Allow checks whether one more request fits in the window and counts it
	// if so. Denied requests are not counted.
	Allow(ctx context.Context, bucket models.Bucket, key string, limit models.Limit) (*models.RateLimitResult, error)

	// Reset clears the rate limit counter for a key.
	Reset(ctx context.Context, bucket models.Bucket, key string) error

	// GetCurrentCount returns the current request count in the window.
	GetCurrentCount(ctx context.Context, bucket models.Bucket, key string) (int, error)
}

// AuditRecorder receives rate limit denials. Implementations never fail.
type AuditRecorder interface {
	LogRateLimitExceeded(ctx context.Context, bucket, key string)
}
