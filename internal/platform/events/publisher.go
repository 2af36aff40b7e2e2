// Package events publishes assessment results to a Kafka topic so analytics
// consumers can follow risk levels without polling the record store.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	TypeAssessmentCompleted = "assessment.completed"
	TypeUploadAssessed      = "upload.assessed"
)

// AssessmentEvent is the message value. Messages are keyed by mother id so
// one caregiver's events stay ordered within a partition.
type AssessmentEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	MotherID   int64     `json:"motherId"`
	RecordID   string    `json:"recordId"`
	RiskLevel  string    `json:"riskLevel"`
	Confidence float64   `json:"confidence,omitempty"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewAssessmentEvent stamps an id and time on a new event.
func NewAssessmentEvent(typ string, motherID int64, recordID, riskLevel string) AssessmentEvent {
	return AssessmentEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		MotherID:   motherID,
		RecordID:   recordID,
		RiskLevel:  riskLevel,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt AssessmentEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt AssessmentEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(evt.MotherID, 10)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AssessmentEvent) error { return nil }
func (NopPublisher) Close() error { return nil }

// New returns a Kafka publisher, or a NopPublisher when brokers is empty.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic)
}
