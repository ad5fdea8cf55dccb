// Package kafka forwards ledger events to Kafka, one topic per event category.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "copyroom/pkg/platform/audit"
)

const defaultTopicPrefix = "copyroom.events"

// Producer is the subset of *kgo.Client the sink needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sink implements audit.Store by producing JSON records.
type Sink struct {
	producer Producer
	prefix   string
}

type Option func(*Sink)

// WithTopicPrefix overrides the topic prefix. Topics are named <prefix>.<category>.
func WithTopicPrefix(prefix string) Option {
	return func(s *Sink) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func NewSink(producer Producer, opts ...Option) (*Sink, error) {
	if producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	s := &Sink{producer: producer, prefix: defaultTopicPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewClient dials the given brokers.
func NewClient(ctx context.Context, brokers []string, clientID string) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}
	return client, nil
}

// TopicFor returns the topic name for a category.
func (s *Sink) TopicFor(category audit.EventCategory) string {
	return s.prefix + "." + string(category)
}

// Append produces the event synchronously. Records are keyed by actor so a
// caller's events stay ordered within a partition.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	payload, err := json.Marshal(toRecord(event))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	rec := &kgo.Record{
		Topic: s.TopicFor(event.Category),
		Key:   []byte(event.Actor),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
		},
	}
	if err := s.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce event %s: %w", event.Action, err)
	}
	return nil
}

// record is the wire shape of an event.
type record struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	GroupID   uint64    `json:"group_id,omitempty"`
	FirstID   uint64    `json:"first_token_id,omitempty"`
	Quantity  uint64    `json:"quantity,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

func toRecord(e audit.Event) record {
	return record{
		ID:        e.ID,
		Category:  string(e.Category),
		Timestamp: e.Timestamp,
		Action:    e.Action,
		Actor:     e.Actor,
		Subject:   e.Subject,
		GroupID:   e.GroupID,
		FirstID:   e.FirstID,
		Quantity:  e.Quantity,
		Amount:    e.Amount,
		Reason:    e.Reason,
		RequestID: e.RequestID,
	}
}
