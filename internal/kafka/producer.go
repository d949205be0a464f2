package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rzzdr/vol-analytics-engine/pkg/utils/circuit"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/errors"
	"github.com/rzzdr/vol-analytics-engine/pkg/utils/logger"
)

// ProducerConfig contains configuration for a Kafka producer
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// Producer publishes JSON payloads to a single topic. Writes go through
// a circuit breaker so a dead broker sheds load fast instead of letting
// every publish wait out its timeout.
type Producer struct {
	writer  *kafka.Writer
	breaker *circuit.Breaker
	log     *logger.Logger
}

// NewProducer creates a new Kafka producer
func NewProducer(config ProducerConfig) (*Producer, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.InvalidInput("kafka brokers are required")
	}
	if config.Topic == "" {
		return nil, errors.InvalidInput("kafka topic is required")
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = 100 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: config.BatchTimeout,
	}

	return &Producer{
		writer:  writer,
		breaker: circuit.NewBreaker("kafka-producer", circuit.Config{}),
		log:     logger.GetLogger("kafka.producer").WithField("topic", config.Topic),
	}, nil
}

// Publish marshals value to JSON and writes it under the given key
func (p *Producer) Publish(ctx context.Context, key []byte, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal kafka payload")
	}

	err = p.breaker.Do(func() error {
		return p.writer.WriteMessages(ctx, kafka.Message{
			Key:   key,
			Value: payload,
			Time:  time.Now(),
		})
	})
	if err != nil {
		return errors.Wrap(err, "failed to write kafka message")
	}
	return nil
}

// Close closes the underlying writer
func (p *Producer) Close() error {
	return p.writer.Close()
}
