//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"corkboard/internal/platform/logger"
	audit "corkboard/pkg/platform/audit"
	"corkboard/pkg/platform/audit/publishers/kafka"
	"corkboard/pkg/testutil/containers"
)

const topic = "corkboard.audit.test"

type SinkIntegrationSuite struct {
	suite.Suite
	broker string
	client *kgo.Client
	ctx    context.Context
}

func TestSinkIntegrationSuite(t *testing.T) {
	suite.Run(t, new(SinkIntegrationSuite))
}

func (s *SinkIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.broker = containers.NewRedpandaContainer(s.T()).Broker

	client, err := kafka.NewClient([]string{s.broker}, topic)
	s.Require().NoError(err)
	s.T().Cleanup(client.Close)
	s.client = client

	s.Require().NoError(kafka.EnsureTopic(s.ctx, client, topic, 1, 1))
}

func (s *SinkIntegrationSuite) TestEnsureTopicIsIdempotent() {
	s.NoError(kafka.EnsureTopic(s.ctx, s.client, topic, 1, 1))
}

func (s *SinkIntegrationSuite) TestFlushDeliversEntries() {
	sink := kafka.New(s.client, topic, kafka.WithBatchSize(2), kafka.WithLogger(logger.Discard()))
	sent := []audit.Entry{
		{ID: "int-1", Action: audit.ActionLogin, UserID: "user-1", Success: true, Timestamp: time.Now().UTC()},
		{ID: "int-2", Action: audit.ActionRateLimitExceeded, IPAddress: "203.0.113.9", Timestamp: time.Now().UTC()},
		{ID: "int-3", Action: audit.ActionPostCreate, UserID: "user-1", Success: true, Timestamp: time.Now().UTC()},
	}
	for _, e := range sent {
		s.Require().NoError(sink.Publish(s.ctx, e))
	}
	s.Equal(len(sent), sink.Flush(s.ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	got := map[string]string{}
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	for len(got) < len(sent) && ctx.Err() == nil {
		fetches := consumer.PollFetches(ctx)
		fetches.EachRecord(func(r *kgo.Record) {
			var e audit.Entry
			if json.Unmarshal(r.Value, &e) == nil {
				got[e.ID] = string(r.Key)
			}
		})
	}

	s.Require().Len(got, len(sent))
	s.Equal(string(audit.ActionLogin.Category()), got["int-1"])
	s.Equal(string(audit.ActionRateLimitExceeded.Category()), got["int-2"])
}
