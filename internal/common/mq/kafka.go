package mq

import (
	"context"
	"net"
	"sync"
	"time"

	appErr "tosts/pkg/errors"

	"github.com/segmentio/kafka-go"
)

const (
	headerKey       = "x-tosts-key"
	headerTimestamp = "x-tosts-ts"

	defaultBatchSize    = 100
	defaultBatchTimeout = 50 * time.Millisecond
	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// KafkaConfig configures the Kafka producer.
type KafkaConfig struct {
	Brokers  []string
	ClientID string

	RequiredAcks kafka.RequiredAcks
	BatchSize    int
	BatchTimeout time.Duration
	Compression  kafka.Compression

	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c *KafkaConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = defaultBatchTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.RequiredAcks == kafka.RequireNone {
		c.RequiredAcks = kafka.RequireOne
	}
}

// KafkaProducer implements Producer on a kafka-go writer.
type KafkaProducer struct {
	config KafkaConfig
	writer *kafka.Writer
	dialer *kafka.Dialer

	closeOnce sync.Once
	closeErr  error
}

// NewKafkaProducer creates the producer without connecting; the writer dials
// lazily on the first publish.
func NewKafkaProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, appErr.ValidationError("events.brokers", "required")
	}
	cfg.applyDefaults()

	dialer := &kafka.Dialer{
		ClientID:  cfg.ClientID,
		Timeout:   cfg.DialTimeout,
		DualStack: true,
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: cfg.RequiredAcks,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Compression:  cfg.Compression,
		Transport: &kafka.Transport{
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, address)
			},
			ClientID: cfg.ClientID,
		},
	}
	return &KafkaProducer{config: cfg, writer: writer, dialer: dialer}, nil
}

func (k *KafkaProducer) Publish(ctx context.Context, topic string, message *Message) error {
	if message == nil {
		return appErr.ValidationError("message", "required")
	}
	return k.PublishBatch(ctx, topic, []*Message{message})
}

func (k *KafkaProducer) PublishBatch(ctx context.Context, topic string, messages []*Message) error {
	if topic == "" {
		return appErr.ValidationError("topic", "required")
	}
	if len(messages) == 0 {
		return appErr.ValidationError("messages", "empty batch")
	}
	records := make([]kafka.Message, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			return appErr.ValidationError("message", "nil entry in batch")
		}
		records = append(records, toKafkaMessage(topic, msg))
	}
	if err := k.writer.WriteMessages(ctx, records...); err != nil {
		return appErr.Wrapf(err, appErr.QueueError, "write %d messages to %s failed", len(records), topic)
	}
	return nil
}

// Ping dials the first broker.
func (k *KafkaProducer) Ping(ctx context.Context) error {
	conn, err := k.dialer.DialContext(ctx, "tcp", k.config.Brokers[0])
	if err != nil {
		return appErr.Wrapf(err, appErr.QueueError, "dial broker %s failed", k.config.Brokers[0])
	}
	return conn.Close()
}

// Close flushes pending writes. Later calls return the first result.
func (k *KafkaProducer) Close() error {
	k.closeOnce.Do(func() {
		k.closeErr = k.writer.Close()
	})
	return k.closeErr
}

func toKafkaMessage(topic string, message *Message) kafka.Message {
	ts := message.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	headers := make([]kafka.Header, 0, len(message.Headers)+2)
	for k, v := range message.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	if message.Key != "" {
		headers = append(headers, kafka.Header{Key: headerKey, Value: []byte(message.Key)})
	}
	headers = append(headers, kafka.Header{Key: headerTimestamp, Value: []byte(ts.Format(time.RFC3339Nano))})

	return kafka.Message{
		Topic:   topic,
		Key:     []byte(message.Key),
		Value:   message.Body,
		Headers: headers,
		Time:    ts,
	}
}
