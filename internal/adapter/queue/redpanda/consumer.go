package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/observability"
)

// Handler executes one task payload. A returned error marks the task
// failed; the record is still committed because tasks carry their own
// retry/audit semantics through action logs.
type Handler func(ctx context.Context, taskID string, payload domain.TaskPayload) error

// Consumer polls the task topic and runs handlers with bounded concurrency.
type Consumer struct {
	client   *kgo.Client
	handler  Handler
	sem      chan struct{}
	wg       sync.WaitGroup
}

// NewConsumer constructs a group consumer for the task topic.
func NewConsumer(brokers []string, groupID string, maxConcurrency int, h Handler) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=queue.consumer: no seed brokers")
	}
	if groupID == "" {
		return nil, fmt.Errorf("op=queue.consumer: missing group id")
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(TopicTasks),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("op=queue.consumer: %w", err)
	}
	if err := createTopicIfNotExists(context.Background(), client, TopicTasks, 8, 1); err != nil {
		slog.Warn("topic creation failed, it may already exist",
			slog.String("topic", TopicTasks), slog.Any("error", err))
	}
	return &Consumer{
		client:  client,
		handler: h,
		sem:     make(chan struct{}, maxConcurrency),
	}, nil
}

// Run polls until ctx is cancelled. Records are dispatched to the handler
// through a semaphore and committed once the handler returns.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.wg.Wait()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			slog.Error("fetch error",
				slog.String("topic", topic),
				slog.Int("partition", int(partition)),
				slog.Any("error", err))
		})
		fetches.EachRecord(func(rec *kgo.Record) {
			select {
			case c.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				defer func() { <-c.sem }()
				c.processRecord(ctx, rec)
			}()
		})
	}
}

// Close stops the underlying client; Run returns after in-flight handlers
// finish.
func (c *Consumer) Close() { c.client.Close() }

func (c *Consumer) processRecord(ctx context.Context, rec *kgo.Record) {
	taskID := headerValue(rec, taskIDHeader)
	var payload domain.TaskPayload
	if err := json.Unmarshal(rec.Value, &payload); err != nil {
		slog.Error("undecodable task record dropped",
			slog.String("task_id", taskID), slog.Any("error", err))
		c.commit(ctx, rec)
		return
	}

	log := slog.With(
		slog.String("task_id", taskID),
		slog.String("type", payload.Type),
		slog.String("user_id", payload.UserID))
	log.Info("task started")
	if err := c.handler(ctx, taskID, payload); err != nil {
		observability.TasksCompletedTotal.WithLabelValues(payload.Type, "failed").Inc()
		log.Error("task failed", slog.Any("error", err))
	} else {
		observability.TasksCompletedTotal.WithLabelValues(payload.Type, "success").Inc()
		log.Info("task finished")
	}
	c.commit(ctx, rec)
}

func (c *Consumer) commit(ctx context.Context, rec *kgo.Record) {
	if err := c.client.CommitRecords(ctx, rec); err != nil {
		slog.Error("commit failed",
			slog.String("topic", rec.Topic),
			slog.Int("partition", int(rec.Partition)),
			slog.Any("error", err))
	}
}

func headerValue(rec *kgo.Record, key string) string {
	for _, h := range rec.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
