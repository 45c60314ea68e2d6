// Package events records the analytics log. The bot either publishes to Kafka
// (drained into Postgres by cmd/worker) or writes to Postgres directly.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Store interface {
	Insert(ctx context.Context, event domain.Event) error
}

type KafkaPublisher struct {
	producer Producer
	topic    string
}

func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event domain.Event) error {
	return p.producer.Publish(ctx, p.topic, strconv.FormatInt(event.UserID, 10), event)
}

// StorePublisher skips the broker and inserts straight into the events table.
type StorePublisher struct {
	store Store
}

func NewStorePublisher(store Store) *StorePublisher {
	return &StorePublisher{store: store}
}

func (p *StorePublisher) Publish(ctx context.Context, event domain.Event) error {
	return p.store.Insert(ctx, event)
}

// Recorder stamps events and publishes them. Failures are logged, never returned:
// analytics must not break a user flow.
type Recorder struct {
	publisher Publisher
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewRecorder(publisher Publisher, log logrus.FieldLogger) *Recorder {
	return &Recorder{publisher: publisher, log: log, now: time.Now}
}

func (r *Recorder) Record(ctx context.Context, who domain.Identity, eventType domain.EventType, details map[string]interface{}) {
	if r == nil || r.publisher == nil {
		return
	}
	event := domain.Event{
		ID:        uuid.NewString(),
		UserID:    who.UserID,
		Username:  who.Username,
		FirstName: who.FirstName,
		Type:      eventType,
		Details:   details,
		CreatedAt: r.now().UTC(),
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"event_type": eventType,
			"user_id":    who.UserID,
		}).Warn("failed to record event")
	}
}

// Sink decodes broker messages into the events table. Undecodable messages are
// logged and skipped; store errors are returned so the message is redelivered.
type Sink struct {
	store Store
	log   logrus.FieldLogger
}

func NewSink(store Store, log logrus.FieldLogger) *Sink {
	return &Sink{store: store, log: log}
}

func (s *Sink) Handle(ctx context.Context, msg kafkago.Message) error {
	var event domain.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		s.log.WithError(err).WithField("offset", msg.Offset).Warn("skipping undecodable event")
		return nil
	}
	if _, err := uuid.Parse(event.ID); err != nil {
		s.log.WithField("offset", msg.Offset).Warn("skipping event without a valid id")
		return nil
	}
	if err := s.store.Insert(ctx, event); err != nil {
		return fmt.Errorf("store event %s: %w", event.ID, err)
	}
	return nil
}
