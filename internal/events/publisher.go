// Package events mirrors session notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/hyy20190326/luis-0509/internal/observability/metrics"
)

// Header keys set on every mirrored message.
const (
	HeaderEvent     = "luis-event"
	HeaderPrincipal = "luis-principal"
)

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers   []string
	Topic     string
	Principal string
	Enabled   bool
}

// Publisher writes notification payloads to a Kafka topic keyed by session id.
// A disabled publisher only logs at debug level.
type Publisher struct {
	writer    *kafka.Writer
	principal string
	topic     string
	metrics   *metrics.Metrics
}

// New returns a publisher for cfg. A nil config, Enabled=false or an empty
// broker list all yield a log-only publisher.
func New(cfg *Config) *Publisher {
	p := &Publisher{metrics: metrics.DefaultMetrics}
	if cfg == nil {
		log.Info().Msg("Notification mirror off (no config)")
		return p
	}
	p.principal, p.topic = cfg.Principal, cfg.Topic
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Str("topic", cfg.Topic).Msg("Notification mirror off")
		return p
	}

	p.writer = newWriter(cfg.Brokers, cfg.Topic)
	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("principal", cfg.Principal).
		Msg("Notification mirror on")
	return p
}

// newWriter hashes on the message key so one session's notifications share
// a partition and stay ordered.
func newWriter(brokers []string, topic string) *kafka.Writer {
	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}
}

// Enabled reports whether messages actually reach Kafka.
func (p *Publisher) Enabled() bool { return p.writer != nil }

// Publish mirrors event under key, normally the session id.
func (p *Publisher) Publish(ctx context.Context, key, eventType string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("session", key).Str("event", eventType).Msg("Cannot encode mirrored notification")
		return err
	}
	if p.writer == nil {
		log.Debug().Str("session", key).Str("event", eventType).RawJSON("payload", payload).Msg("Mirror off, notification not sent")
		return nil
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderEvent, Value: []byte(eventType)},
			{Key: HeaderPrincipal, Value: []byte(p.principal)},
		},
	})
	p.metrics.RecordKafkaPublish(p.topic, err, time.Since(start).Seconds())
	if err != nil {
		log.Warn().Err(err).Str("topic", p.topic).Str("session", key).Str("event", eventType).Msg("Mirror write failed")
	}
	return err
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
