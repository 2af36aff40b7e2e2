package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	evt := NewAssessmentEvent(TypeAssessmentCompleted, 1001, "rec-1", "High")
	evt.Source = "predict-api"
	if err := p.Publish(context.Background(), evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "1001" {
		t.Errorf("expected key 1001, got %s", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != TypeAssessmentCompleted {
		t.Errorf("unexpected headers: %+v", msg.Headers)
	}

	var got AssessmentEvent
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID == "" || got.RiskLevel != "High" || got.RecordID != "rec-1" || got.Source != "predict-api" {
		t.Errorf("unexpected event: %+v", got)
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("no brokers")}}
	if err := p.Publish(context.Background(), NewAssessmentEvent(TypeUploadAssessed, 1, "f", "Low")); err == nil {
		t.Fatal("expected error")
	}
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}
	p.Close()
	if !w.closed {
		t.Error("expected writer to be closed")
	}
}

func TestNew_NopWithoutBrokers(t *testing.T) {
	if _, ok := New(nil, "topic").(NopPublisher); !ok {
		t.Error("expected NopPublisher when no brokers are configured")
	}
	if _, ok := New([]string{"kafka:9092"}, "topic").(*KafkaPublisher); !ok {
		t.Error("expected KafkaPublisher when brokers are configured")
	}
}
