package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"corkboard/internal/ratelimit/models"
)

type RedisBucketStoreSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	store  *RedisBucketStore
	ctx    context.Context
}

func TestRedisBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisBucketStoreSuite))
}

func (s *RedisBucketStoreSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.T().Cleanup(func() { _ = s.client.Close() })
	s.store = NewRedisBucketStore(s.client)
	s.ctx = context.Background()
}

func (s *RedisBucketStoreSuite) TestLoginScenario() {
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
	s.Positive(result.RetryAfter)
	s.LessOrEqual(result.RetryAfter, int(loginRule.Window.Seconds()))
	s.WithinDuration(time.Now().Add(loginRule.Window), result.ResetAt, 2*time.Second)
}

func (s *RedisBucketStoreSuite) TestWindowDoesNotSlide() {
	_, err := s.store.Allow(s.ctx, models.BucketGeneral, "fixed", testLimit)
	s.Require().NoError(err)
	s.mr.FastForward(30 * time.Second)
	_, err = s.store.Allow(s.ctx, models.BucketGeneral, "fixed", testLimit)
	s.Require().NoError(err)

	ttl := s.mr.TTL(redisKey(models.BucketGeneral, "fixed"))
	s.LessOrEqual(ttl, 30*time.Second)
}

func (s *RedisBucketStoreSuite) TestExpiryStartsFreshWindow() {
	for range testLimit.Max {
		_, err := s.store.Allow(s.ctx, models.BucketGeneral, "expire", testLimit)
		s.Require().NoError(err)
	}
	s.mr.FastForward(testLimit.Window)

	result, err := s.store.Allow(s.ctx, models.BucketGeneral, "expire", testLimit)
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Equal(testLimit.Max-1, result.Remaining)
}

func (s *RedisBucketStoreSuite) TestResetAndCount() {
	for range 3 {
		_, err := s.store.Allow(s.ctx, models.BucketSendEmail, "mail", testLimit)
		s.Require().NoError(err)
	}
	count, err := s.store.GetCurrentCount(s.ctx, models.BucketSendEmail, "mail")
	s.Require().NoError(err)
	s.Equal(3, count)

	s.Require().NoError(s.store.Reset(s.ctx, models.BucketSendEmail, "mail"))
	count, err = s.store.GetCurrentCount(s.ctx, models.BucketSendEmail, "mail")
	s.Require().NoError(err)
	s.Equal(0, count)
}

func (s *RedisBucketStoreSuite) TestServerDownReturnsError() {
	s.mr.Close()
	_, err := s.store.Allow(s.ctx, models.BucketGeneral, "down", testLimit)
	s.Error(err)
}
