// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cookiegram/internal/config"
	"cookiegram/internal/observability"

	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	PostCreated    = "post_created"
	PostLiked      = "post_liked"
	NewFollower    = "new_follower"
	CommentCreated = "comment_created"
)

// Event is one domain fact. AggregateID is the message key, so events for
// the same post or user stay ordered within a partition.
type Event struct {
	Type        string    `json:"type"`
	AggregateID string    `json:"aggregate_id"`
	ActorID     string    `json:"actor_id,omitempty"`
	RecipientID uint      `json:"recipient_id,omitempty"`
	Payload     any       `json:"payload,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher delivers events to a sink.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// New returns a Kafka publisher when KAFKA_BROKERS is set and a no-op otherwise.
func New(cfg *config.Config) Publisher {
	brokers := cfg.KafkaBrokerList()
	if len(brokers) == 0 {
		return Noop{}
	}
	return NewKafkaPublisher(brokers, cfg.KafkaTopic)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages.
type KafkaPublisher struct {
	w messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.AggregateID),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		observability.DomainEvents.WithLabelValues(ev.Type, "kafka_error").Inc()
		return err
	}
	observability.DomainEvents.WithLabelValues(ev.Type, "kafka").Inc()
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// Noop drops events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
