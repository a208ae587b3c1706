// Package kafka moves search events between services over segmentio/kafka-go.
// Values travel as JSON; consumers decode them into a typed handler.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/config"
)

// Handler processes one decoded message.
type Handler[T any] func(ctx context.Context, value T) error

// Consumer reads a topic as part of the configured consumer group and hands
// every message to a Handler. Messages that do not decode as T are logged
// and committed, so a malformed event cannot stall the partition. Messages
// the handler fails on are left uncommitted.
type Consumer[T any] struct {
	reader *kafka.Reader
	handle Handler[T]
	logger *slog.Logger
}

func NewConsumer[T any](cfg config.KafkaConfig, topic string, handle Handler[T]) *Consumer[T] {
	return &Consumer[T]{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    1,
			MaxBytes:    10e6,
			StartOffset: kafka.LastOffset,
		}),
		handle: handle,
		logger: slog.Default().With("component", "kafka-consumer", "topic", topic, "group", cfg.ConsumerGroup),
	}
}

// Run consumes until ctx is cancelled. The caller closes the consumer
// afterwards.
func (c *Consumer[T]) Run(ctx context.Context) {
	c.logger.Info("consumer started")
	defer c.logger.Info("consumer stopped")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch failed", "error", err)
			continue
		}
		if c.process(ctx, msg) {
			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				c.logger.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			}
		}
	}
}

// process reports whether msg may be committed.
func (c *Consumer[T]) process(ctx context.Context, msg kafka.Message) bool {
	var value T
	if err := json.Unmarshal(msg.Value, &value); err != nil {
		c.logger.Warn("skipping undecodable message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return true
	}
	if err := c.handle(ctx, value); err != nil {
		c.logger.Error("handler failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		return false
	}
	return true
}

// Lag is the reader's last known distance behind the partition head.
func (c *Consumer[T]) Lag() int64 {
	return c.reader.Stats().Lag
}

func (c *Consumer[T]) Close() error {
	return c.reader.Close()
}
