package bucket

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"corkboard/internal/ratelimit/models"
)

// DefaultCapacity is the per-bucket identity bound.
const DefaultCapacity = 10000

// InMemoryBucketStore implements fixed-window counting with one bounded
// TTL LRU per bucket. Counters are per process: two replicas each allow the
// full limit. Use RedisBucketStore when limits must be shared.
type InMemoryBucketStore struct {
	mu       sync.Mutex
	buckets  map[models.Bucket]*ttlLRU
	capacity int
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*InMemoryBucketStore)

// WithCapacity overrides the per-bucket entry bound.
func WithCapacity(capacity int) Option {
	return func(s *InMemoryBucketStore) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

// WithClock replaces time.Now, for tests that need to cross a window.
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryBucketStore) {
		s.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *InMemoryBucketStore) {
		s.logger = logger
	}
}

// NewInMemoryBucketStore creates a new in-memory bucket store.
func NewInMemoryBucketStore(opts ...Option) *InMemoryBucketStore {
	s := &InMemoryBucketStore{
		buckets:  make(map[models.Bucket]*ttlLRU),
		capacity: DefaultCapacity,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New is shorthand for NewInMemoryBucketStore with defaults.
func New() *InMemoryBucketStore {
	return NewInMemoryBucketStore()
}

// Allow counts one request for key in bucket.
//
// A miss (never seen, expired, or evicted) is zero prior requests and opens
// a window starting now. With count >= max the request is denied without
// being counted and reset is the window's end. Otherwise the count is
// incremented and remaining is max - count - 1 against the count read.
func (s *InMemoryBucketStore) Allow(_ context.Context, bucket models.Bucket, key string, limit models.Limit) (*models.RateLimitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cache := s.cacheFor(bucket)

	record, ok := cache.get(key, now)
	if !ok {
		record = models.Record{Key: key, WindowStart: now}
	}
	resetAt := record.ExpiresAt(limit.Window)

	if record.Count >= limit.Max {
		return &models.RateLimitResult{
			Allowed:    false,
			Limit:      limit.Max,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(now, resetAt),
		}, nil
	}

	remaining := limit.Max - record.Count - 1
	record.Count++
	cache.put(record, resetAt)

	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit.Max,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the rate limit counter for a key.
func (s *InMemoryBucketStore) Reset(_ context.Context, bucket models.Bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cache, ok := s.buckets[bucket]; ok {
		cache.delete(key)
	}
	return nil
}

// GetCurrentCount returns the current request count for a key.
func (s *InMemoryBucketStore) GetCurrentCount(_ context.Context, bucket models.Bucket, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cache, ok := s.buckets[bucket]
	if !ok {
		return 0, nil
	}
	record, ok := cache.get(key, s.now())
	if !ok {
		return 0, nil
	}
	return record.Count, nil
}

// Len returns the number of live-or-unswept entries tracked for bucket.
func (s *InMemoryBucketStore) Len(bucket models.Bucket) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cache, ok := s.buckets[bucket]; ok {
		return cache.len()
	}
	return 0
}

// Capacity returns the per-bucket entry bound.
func (s *InMemoryBucketStore) Capacity() int {
	return s.capacity
}

// PurgeExpired sweeps closed windows from every bucket.
func (s *InMemoryBucketStore) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for _, cache := range s.buckets {
		removed += cache.purgeExpired(now)
	}
	return removed
}

// Run sweeps expired windows every interval until ctx is done. Expired
// entries are already ignored on read; sweeping only returns their memory.
func (s *InMemoryBucketStore) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := s.PurgeExpired(); removed > 0 {
				s.logger.Debug("rate limit sweep completed", "removed", removed)
			}
		}
	}
}

// cacheFor returns the bucket's cache, creating it on first use.
// Must be called while holding s.mu.
func (s *InMemoryBucketStore) cacheFor(bucket models.Bucket) *ttlLRU {
	cache, ok := s.buckets[bucket]
	if !ok {
		cache = newTTLLRU(s.capacity)
		s.buckets[bucket] = cache
	}
	return cache
}

func retryAfterSeconds(now, resetAt time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	return max(secs, 1)
}
