package bucket

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"corkboard/internal/ratelimit/models"
)

const redisKeyPrefix = "corkboard:ratelimit:"

// allowScript counts one request against a fixed window. The expiry is set
// only when the counter is created so the window never slides. Returns
// {count, pttl_ms, allowed}.
const allowScript = `
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
local max = tonumber(ARGV[1])
if count >= max then
	return {count, redis.call('PTTL', KEYS[1]), 0}
end
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {n, redis.call('PTTL', KEYS[1]), 1}
`

// RedisBucketStore shares fixed-window counters between instances. Key
// expiry replaces the in-memory LRU; Redis owns eviction.
type RedisBucketStore struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisBucketStore constructs a Redis-backed bucket store.
func NewRedisBucketStore(client redis.Cmdable) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

func redisKey(bucket models.Bucket, key string) string {
	return redisKeyPrefix + bucket.String() + ":" + key
}

// Allow has the same contract as InMemoryBucketStore.Allow, executed
// atomically on the server.
func (s *RedisBucketStore) Allow(ctx context.Context, bucket models.Bucket, key string, limit models.Limit) (*models.RateLimitResult, error) {
	vals, err := s.client.Eval(ctx, allowScript, []string{redisKey(bucket, key)},
		limit.Max, limit.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply length %d", len(vals))
	}

	now := s.now()
	count, pttl, allowed := int(vals[0]), vals[1], vals[2] == 1
	ttl := time.Duration(pttl) * time.Millisecond
	if pttl < 0 {
		// Key without expiry should not exist; treat it as a fresh window.
		ttl = limit.Window
	}
	resetAt := now.Add(ttl)

	if !allowed {
		return &models.RateLimitResult{
			Allowed:    false,
			Limit:      limit.Max,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(now, resetAt),
		}, nil
	}
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit.Max,
		Remaining: max(limit.Max-count, 0),
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the rate limit counter for a key.
func (s *RedisBucketStore) Reset(ctx context.Context, bucket models.Bucket, key string) error {
	if err := s.client.Del(ctx, redisKey(bucket, key)).Err(); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	return nil
}

// GetCurrentCount returns the current request count for a key.
func (s *RedisBucketStore) GetCurrentCount(ctx context.Context, bucket models.Bucket, key string) (int, error) {
	raw, err := s.client.Get(ctx, redisKey(bucket, key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read rate limit count: %w", err)
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse rate limit count: %w", err)
	}
	return count, nil
}
