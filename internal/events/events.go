// Package events publishes room lifecycle notifications (room_expired,
// room_expiring, game_started; no event is published when a game ends) to
// Kafka for downstream consumers outside the
// core (stats/leaderboard services), generalized from the teacher's
// internal/fraud/kafka_producer.go sync producer (§1 scope, SPEC_FULL.md
// DOMAIN STACK).
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// ProducerConfig configures the Kafka publisher.
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	MaxRetries   int
	RetryBackoff time.Duration
}

// DefaultProducerConfig mirrors the teacher's defaults for retry/backoff.
func DefaultProducerConfig(brokers []string) ProducerConfig {
	return ProducerConfig{
		Brokers:      brokers,
		Topic:        "room-lifecycle",
		MaxRetries:   5,
		RetryBackoff: 100 * time.Millisecond,
	}
}

// RoomEvent is the message published for a room lifecycle transition.
type RoomEvent struct {
	RoomID    string    `json:"room_id"`
	Type      string    `json:"type"` // room_expired | room_expiring | game_started
	Timestamp time.Time `json:"timestamp"`
}

// Stats tracks publish outcomes, mirroring the teacher's ProducerStats.
type Stats struct {
	mu             sync.Mutex
	MessagesSent   int64
	MessagesFailed int64
}

func (s *Stats) recordSent() {
	s.mu.Lock()
	s.MessagesSent++
	s.mu.Unlock()
}

func (s *Stats) recordFailed() {
	s.mu.Lock()
	s.MessagesFailed++
	s.mu.Unlock()
}

// Publisher publishes RoomEvents to Kafka synchronously, the same
// sarama.SyncProducer shape the teacher's KafkaAlertProducer uses.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	stats    *Stats
}

// NewPublisher builds a Publisher, or nil with an error if the brokers are
// unreachable; callers fall back to NoopPublisher when KAFKA_BROKERS is
// unset, per §6 "no other flags are part of the core contract" — Kafka is
// an optional adapter.
func NewPublisher(cfg ProducerConfig) (*Publisher, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.Retry.Max = cfg.MaxRetries
	saramaCfg.Producer.Retry.Backoff = cfg.RetryBackoff
	saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("events: new kafka producer: %w", err)
	}
	return &Publisher{producer: producer, topic: cfg.Topic, stats: &Stats{}}, nil
}

// Publish sends one RoomEvent, keyed by room ID so a consumer group can
// partition by room.
func (p *Publisher) Publish(evt RoomEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(evt.RoomID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(evt.Type)},
		},
		Timestamp: evt.Timestamp,
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		p.stats.recordFailed()
		return fmt.Errorf("events: send: %w", err)
	}
	p.stats.recordSent()
	return nil
}

// Close releases the underlying producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}

// RoomPublisher is the interface the registry/hub wiring depends on, so
// main.go can substitute NoopPublisher when Kafka isn't configured.
type RoomPublisher interface {
	Publish(evt RoomEvent) error
}

// NoopPublisher drops every event; used when KAFKA_BROKERS is unset.
type NoopPublisher struct{}

func (NoopPublisher) Publish(evt RoomEvent) error { return nil }
