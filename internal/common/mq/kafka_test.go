package mq

import (
	"context"
	"testing"
	"time"

	appErr "tosts/pkg/errors"

	"github.com/segmentio/kafka-go"
)

func TestToKafkaMessage(t *testing.T) {
	msg := NewMessage("run-1", []byte(`{"type":"run_started"}`))
	msg.SetHeader("event", "run_started")

	km := toKafkaMessage("tosts.events", msg)
	if km.Topic != "tosts.events" || string(km.Key) != "run-1" {
		t.Fatalf("unexpected topic/key: %s/%s", km.Topic, km.Key)
	}
	if string(km.Value) != `{"type":"run_started"}` {
		t.Fatalf("unexpected value: %s", km.Value)
	}
	headers := make(map[string]string)
	for _, h := range km.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["event"] != "run_started" || headers[headerKey] != "run-1" {
		t.Fatalf("unexpected headers: %v", headers)
	}
	if _, err := time.Parse(time.RFC3339Nano, headers[headerTimestamp]); err != nil {
		t.Fatalf("bad timestamp header: %v", err)
	}
}

func TestToKafkaMessageWithoutKey(t *testing.T) {
	km := toKafkaMessage("t", &Message{Body: []byte("x")})
	if len(km.Key) != 0 || km.Time.IsZero() {
		t.Fatalf("unexpected message: %+v", km)
	}
	for _, h := range km.Headers {
		if h.Key == headerKey {
			t.Fatal("key header must be omitted for unkeyed messages")
		}
	}
}

func TestNewKafkaProducer(t *testing.T) {
	if _, err := NewKafkaProducer(KafkaConfig{}); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error without brokers, got %v", err)
	}

	p, err := NewKafkaProducer(KafkaConfig{Brokers: []string{"127.0.0.1:9092"}})
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	if p.config.BatchSize != defaultBatchSize || p.config.WriteTimeout != defaultWriteTimeout || p.config.RequiredAcks != kafka.RequireOne {
		t.Fatalf("defaults not applied: %+v", p.config)
	}
	if err := p.Publish(context.Background(), "", NewMessage("", nil)); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected error for empty topic, got %v", err)
	}
	if err := p.PublishBatch(context.Background(), "topic", nil); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected error for empty batch, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
