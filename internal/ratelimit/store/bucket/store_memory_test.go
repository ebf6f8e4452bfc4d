package bucket

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"corkboard/internal/ratelimit/models"
)

var (
	testLimit = models.Limit{Window: time.Minute, Max: 10}
	loginRule = models.Limit{Window: 15 * time.Minute, Max: 5}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type InMemoryBucketStoreSuite struct {
	suite.Suite
	clock *fakeClock
	store *InMemoryBucketStore
	ctx   context.Context
}

func TestInMemoryBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryBucketStoreSuite))
}

func (s *InMemoryBucketStoreSuite) SetupTest() {
	s.clock = &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.store = NewInMemoryBucketStore(WithClock(s.clock.Now))
	s.ctx = context.Background()
}

func (s *InMemoryBucketStoreSuite) TestAllow() {
	s.Run("first request allowed", func() {
		result, err := s.store.Allow(s.ctx, models.BucketGeneral, "first", testLimit)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit.Max, result.Limit)
		s.Equal(testLimit.Max-1, result.Remaining)
		s.Equal(s.clock.Now().Add(testLimit.Window), result.ResetAt)
	})

	s.Run("login scenario counts down to zero then denies", func() {
		key := models.NewKey("1.2.3.4", "user1")
		var remaining []int
		for range loginRule.Max {
			result, err := s.store.Allow(s.ctx, models.BucketLogin, key, loginRule)
			s.Require().NoError(err)
			s.True(result.Allowed)
			remaining = append(remaining, result.Remaining)
		}
		s.Equal([]int{4, 3, 2, 1, 0}, remaining)

		result, err := s.store.Allow(s.ctx, models.BucketLogin, key, loginRule)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
		s.Equal(int(loginRule.Window.Seconds()), result.RetryAfter)
	})

	s.Run("denied requests are not counted", func() {
		for range testLimit.Max + 5 {
			_, err := s.store.Allow(s.ctx, models.BucketGeneral, "denied", testLimit)
			s.Require().NoError(err)
		}
		count, err := s.store.GetCurrentCount(s.ctx, models.BucketGeneral, "denied")
		s.Require().NoError(err)
		s.Equal(testLimit.Max, count)
	})

	s.Run("reset time is anchored to the first request", func() {
		first, err := s.store.Allow(s.ctx, models.BucketGeneral, "anchored", testLimit)
		s.Require().NoError(err)
		s.clock.Advance(20 * time.Second)
		second, err := s.store.Allow(s.ctx, models.BucketGeneral, "anchored", testLimit)
		s.Require().NoError(err)
		s.Equal(first.ResetAt, second.ResetAt)
	})

	s.Run("after window expires a fresh window starts", func() {
		for range testLimit.Max {
			_, err := s.store.Allow(s.ctx, models.BucketGeneral, "expire", testLimit)
			s.Require().NoError(err)
		}
		s.clock.Advance(testLimit.Window)

		result, err := s.store.Allow(s.ctx, models.BucketGeneral, "expire", testLimit)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit.Max-1, result.Remaining)
		s.Equal(s.clock.Now().Add(testLimit.Window), result.ResetAt)
	})

	s.Run("buckets do not share counters", func() {
		for range loginRule.Max {
			_, err := s.store.Allow(s.ctx, models.BucketLogin, "shared", loginRule)
			s.Require().NoError(err)
		}
		result, err := s.store.Allow(s.ctx, models.BucketCreatePost, "shared", loginRule)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})
}

func (s *InMemoryBucketStoreSuite) TestReset() {
	for range testLimit.Max {
		_, err := s.store.Allow(s.ctx, models.BucketGeneral, "reset", testLimit)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.store.Reset(s.ctx, models.BucketGeneral, "reset"))

	result, err := s.store.Allow(s.ctx, models.BucketGeneral, "reset", testLimit)
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Equal(testLimit.Max-1, result.Remaining)

	s.Run("reset of unknown bucket is a no-op", func() {
		s.NoError(s.store.Reset(s.ctx, models.BucketSendEmail, "nobody"))
	})
}

func (s *InMemoryBucketStoreSuite) TestCapacityEvictsLeastRecentlyUsed() {
	store := NewInMemoryBucketStore(WithClock(s.clock.Now), WithCapacity(2))

	_, _ = store.Allow(s.ctx, models.BucketGeneral, "a", testLimit)
	_, _ = store.Allow(s.ctx, models.BucketGeneral, "b", testLimit)
	// touch a so b becomes the eviction candidate
	_, _ = store.Allow(s.ctx, models.BucketGeneral, "a", testLimit)
	_, _ = store.Allow(s.ctx, models.BucketGeneral, "c", testLimit)

	s.Equal(2, store.Len(models.BucketGeneral))

	countA, _ := store.GetCurrentCount(s.ctx, models.BucketGeneral, "a")
	countB, _ := store.GetCurrentCount(s.ctx, models.BucketGeneral, "b")
	s.Equal(2, countA)
	s.Equal(0, countB, "evicted key reads as zero prior requests")
}

func (s *InMemoryBucketStoreSuite) TestPurgeExpired() {
	_, _ = s.store.Allow(s.ctx, models.BucketGeneral, "short", models.Limit{Window: time.Second, Max: 3})
	_, _ = s.store.Allow(s.ctx, models.BucketLogin, "long", loginRule)
	s.clock.Advance(2 * time.Second)

	s.Equal(1, s.store.PurgeExpired())
	s.Equal(0, s.store.Len(models.BucketGeneral))
	s.Equal(1, s.store.Len(models.BucketLogin))
}

func (s *InMemoryBucketStoreSuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- s.store.Run(ctx, time.Millisecond) }()
	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("sweeper did not stop")
	}
}

func (s *InMemoryBucketStoreSuite) TestConcurrentAccessNeverExceedsMax() {
	limit := models.Limit{Window: time.Minute, Max: 50}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := range 200 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := s.store.Allow(s.ctx, models.BucketGeneral, "hot", limit)
			s.NoError(err, fmt.Sprintf("call %d", i))
			if result != nil && result.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	s.Equal(limit.Max, allowed)
}
