// Package redpanda dispatches background tasks over a Redpanda/Kafka topic
// with a franz-go producer on the API side and a group consumer on the
// worker side.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/jobintel/jobintel/internal/domain"
	"github.com/jobintel/jobintel/internal/observability"
)

const taskIDHeader = "task_id"

// Producer publishes task payloads and implements domain.Queue.
type Producer struct {
	client *kgo.Client
}

// NewProducer constructs a Producer and ensures the task topic exists.
func NewProducer(brokers []string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=queue.producer: no seed brokers")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
	)
	if err != nil {
		return nil, fmt.Errorf("op=queue.producer: %w", err)
	}
	if err := createTopicIfNotExists(context.Background(), client, TopicTasks, 8, 1); err != nil {
		slog.Warn("topic creation failed, it may already exist",
			slog.String("topic", TopicTasks), slog.Any("error", err))
	}
	return &Producer{client: client}, nil
}

// Enqueue publishes a task and returns its generated id. Publishing is
// synchronous so a 202 response really means the task is on the topic.
func (p *Producer) Enqueue(ctx domain.Context, payload domain.TaskPayload) (string, error) {
	if payload.Type == "" || payload.UserID == "" {
		return "", fmt.Errorf("op=queue.enqueue: %w: type and user_id required", domain.ErrInvalidArgument)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("op=queue.enqueue: %w", err)
	}
	id := uuid.New().String()
	rec := &kgo.Record{
		Topic:   TopicTasks,
		Key:     []byte(recordKey(payload)),
		Value:   b,
		Headers: []kgo.RecordHeader{{Key: taskIDHeader, Value: []byte(id)}},
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return "", fmt.Errorf("op=queue.enqueue type=%s: %w", payload.Type, err)
	}
	observability.TasksEnqueuedTotal.WithLabelValues(payload.Type).Inc()
	slog.Info("task enqueued",
		slog.String("task_id", id),
		slog.String("type", payload.Type),
		slog.String("user_id", payload.UserID))
	return id, nil
}

// Close flushes and releases the underlying client.
func (p *Producer) Close() { p.client.Close() }

// recordKey serializes résumé parses per résumé and everything else per
// user, so one résumé is never parsed by two workers at once.
func recordKey(p domain.TaskPayload) string {
	if p.Type == domain.TaskResumeParse && p.ResumeID != "" {
		return p.Type + ":" + p.ResumeID
	}
	return p.Type + ":" + p.UserID
}
