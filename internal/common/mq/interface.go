// Package mq publishes run events to a message broker.
package mq

import (
	"context"
	"time"
)

// Producer publishes messages to a topic. Only the publishing side exists;
// run events have no consumer inside tosts.
type Producer interface {
	Publish(ctx context.Context, topic string, message *Message) error
	PublishBatch(ctx context.Context, topic string, messages []*Message) error
}

// Message is one broker record. Messages with the same Key land on the same
// partition, so events of one run stay ordered.
type Message struct {
	Key       string
	Body      []byte
	Headers   map[string]string
	Timestamp time.Time
}

// NewMessage creates a keyed message stamped with the current time.
func NewMessage(key string, body []byte) *Message {
	return &Message{
		Key:       key,
		Body:      body,
		Headers:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
}

func (m *Message) Header(key string) string {
	return m.Headers[key]
}
