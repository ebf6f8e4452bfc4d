// Package kafka mirrors audit entries to a Kafka topic.
//
// Publish only enqueues; Run drains the buffer in batches. A broker outage
// therefore never slows the request that produced the entry. Entries that
// cannot be delivered are logged and dropped: the database store remains
// the record of truth.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "corkboard/pkg/platform/audit"
)

const (
	DefaultBatchSize     = 100
	DefaultFlushInterval = 500 * time.Millisecond
	DefaultBufferSize    = 10000
)

// Producer is the part of *kgo.Client the sink uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sink buffers entries and publishes them as JSON records keyed by category.
type Sink struct {
	producer      Producer
	topic         string
	buffer        *backlog
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
}

// Option configures the Sink.
type Option func(*Sink)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

func WithBatchSize(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

func WithBufferSize(n int) Option {
	return func(s *Sink) {
		s.buffer = newBacklog(n)
	}
}

func New(producer Producer, topic string, opts ...Option) *Sink {
	s := &Sink{
		producer:      producer,
		topic:         topic,
		buffer:        newBacklog(DefaultBufferSize),
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient connects a franz-go client for the audit topic.
func NewClient(brokers []string, topic string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates the topic if it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Publish enqueues entry. It never blocks; when the buffer is full the
// oldest pending entry is dropped.
func (s *Sink) Publish(_ context.Context, entry audit.Entry) error {
	s.buffer.push(entry)
	return nil
}

// Pending returns the number of entries waiting to be published.
func (s *Sink) Pending() int {
	return s.buffer.len()
}

// Dropped returns how many entries were dropped on buffer overflow.
func (s *Sink) Dropped() int64 {
	return s.buffer.droppedCount()
}

// Run flushes the buffer every flush interval until ctx is done, then
// makes one final flush with a short grace period.
func (s *Sink) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			s.Flush(flushCtx)
			return nil
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// Flush publishes everything currently buffered and returns the number of
// records delivered.
func (s *Sink) Flush(ctx context.Context) int {
	delivered := 0
	for {
		batch := s.buffer.take(s.batchSize)
		if len(batch) == 0 {
			return delivered
		}
		records := make([]*kgo.Record, 0, len(batch))
		for _, entry := range batch {
			value, err := json.Marshal(entry)
			if err != nil {
				s.logger.ErrorContext(ctx, "failed to encode audit entry", "entry_id", entry.ID, "error", err)
				continue
			}
			records = append(records, &kgo.Record{
				Topic: s.topic,
				Key:   []byte(entry.Category),
				Value: value,
			})
		}
		for _, res := range s.producer.ProduceSync(ctx, records...) {
			if res.Err != nil {
				s.logger.WarnContext(ctx, "audit mirror delivery failed", "error", res.Err)
				continue
			}
			delivered++
		}
	}
}
