package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"tutoring-payments/internal/config"
	"tutoring-payments/internal/domain/ports/adapter"
)

var _ adapter.EventPublisher = (*Publisher)(nil)

// Publisher writes outbox payloads to Kafka. Messages are keyed by aggregate
// id and hash-balanced, so events for one payment stay ordered on a partition.
type Publisher struct {
	writer *kafkago.Writer
	log    *zerolog.Logger
}

func NewPublisher(cfg config.KafkaConfig, logger *zerolog.Logger) *Publisher {
	l := logger.With().Str("component", "KafkaPublisher").Logger()
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Balancer:               &kafkago.Hash{},
		BatchSize:              batch,
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, log: &l}
}

func (p *Publisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	msg := kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error().Err(err).Str("topic", topic).Str("key", key).Msg("kafka publish failed")
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.log.Debug().Str("topic", topic).Str("key", key).Msg("published")
	return nil
}

func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	p.log.Info().Msg("kafka publisher closed")
	return nil
}

// EnsureTopics creates the given topics through the cluster controller.
// Existing topics are not an error.
func EnsureTopics(ctx context.Context, brokers []string, topics []string, logger *zerolog.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	conn, err := kafkago.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("get kafka controller: %w", err)
	}
	ctrl, err := kafkago.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer ctrl.Close()

	cfgs := make([]kafkago.TopicConfig, len(topics))
	for i, t := range topics {
		cfgs[i] = kafkago.TopicConfig{Topic: t, NumPartitions: 3, ReplicationFactor: 1}
	}
	if err := ctrl.CreateTopics(cfgs...); err != nil && !errors.Is(err, kafkago.TopicAlreadyExists) {
		return fmt.Errorf("create kafka topics: %w", err)
	}
	logger.Info().Strs("topics", topics).Msg("kafka topics ensured")
	return nil
}

// LogPublisher stands in for Kafka when no brokers are configured: events
// are written to the log and considered delivered.
type LogPublisher struct {
	log *zerolog.Logger
}

var _ adapter.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *zerolog.Logger) *LogPublisher {
	l := logger.With().Str("component", "LogPublisher").Logger()
	return &LogPublisher{log: &l}
}

func (p *LogPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	p.log.Info().Str("topic", topic).Str("key", key).RawJSON("payload", payload).Msg("event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
