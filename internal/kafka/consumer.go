package kafka

import (
	"context"
	stderrors "errors"

	"github.com/segmentio/kafka-go"

	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

// Handler processes one message payload. Returning an error logs and
// skips the message; consumption continues.
type Handler func(ctx context.Context, key, value []byte) error

// ConsumerConfig contains configuration for a Kafka consumer
type ConsumerConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
}

// Consumer reads one topic inside a consumer group and dispatches each
// message to a handler
type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config ConsumerConfig) (*Consumer, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.InvalidInput("kafka brokers are required")
	}
	if config.Topic == "" {
		return nil, errors.InvalidInput("kafka topic is required")
	}
	if config.MinBytes <= 0 {
		config.MinBytes = 10e3
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = 10e6
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  config.Brokers,
		Topic:    config.Topic,
		GroupID:  config.GroupID,
		MinBytes: config.MinBytes,
		MaxBytes: config.MaxBytes,
	})

	return &Consumer{
		reader: reader,
		log:    logger.GetLogger("kafka.consumer").WithField("topic", config.Topic),
	}, nil
}

// Run consumes until the context is canceled. Handler failures are
// logged and the offset still advances: the feed is a stream of
// independent quotes and a poison message must not wedge it.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return errors.Wrap(err, "failed to read kafka message")
		}

		if err := handle(ctx, msg.Key, msg.Value); err != nil {
			c.log.Errorf("handler failed for message at offset %d: %v", msg.Offset, err)
		}
	}
}

// Close closes the underlying reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
