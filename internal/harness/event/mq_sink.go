package event

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"tosts/internal/common/mq"
	appErr "tosts/pkg/errors"
	"tosts/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultMQBuffer    = 256
	defaultMQBatchSize = 50
	mqFlushInterval    = 200 * time.Millisecond
)

// MQSink publishes JSON events to a message queue in the background.
// Publish failures are logged and dropped.
type MQSink struct {
	producer mq.Producer
	topic    string

	events    chan Event
	batchSize int
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMQSink starts the publishing loop. Close must be called to flush.
func NewMQSink(producer mq.Producer, topic string) (*MQSink, error) {
	if producer == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("event producer is required")
	}
	if topic == "" {
		return nil, appErr.ValidationError("events.topic", "required")
	}
	s := &MQSink{
		producer:  producer,
		topic:     topic,
		events:    make(chan Event, defaultMQBuffer),
		batchSize: defaultMQBatchSize,
	}
	s.wg.Add(1)
	go s.loop()
	return s, nil
}

// Emit queues an event. It waits on ctx only while the buffer is full, so
// events of a cancelled run still go out when there is room.
// It must not be called after Close.
func (s *MQSink) Emit(ctx context.Context, ev Event) {
	ev = Stamp(ev)
	select {
	case s.events <- ev:
		return
	default:
	}
	select {
	case s.events <- ev:
	case <-ctx.Done():
		logger.Warn(ctx, "event dropped", zap.String("type", string(ev.Type)), zap.Int("case", ev.Index))
	}
}

// Close stops accepting events and waits until buffered ones are published.
func (s *MQSink) Close() {
	s.closeOnce.Do(func() {
		close(s.events)
	})
	s.wg.Wait()
}

func (s *MQSink) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(mqFlushInterval)
	defer ticker.Stop()

	batch := make([]*mq.Message, 0, s.batchSize)
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				s.flush(batch)
				return
			}
			msg, err := toMessage(ev)
			if err != nil {
				logger.Warn(context.Background(), "encode event failed", zap.String("type", string(ev.Type)), zap.Error(err))
				continue
			}
			batch = append(batch, msg)
			if len(batch) >= s.batchSize {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *MQSink) flush(batch []*mq.Message) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.producer.PublishBatch(ctx, s.topic, batch); err != nil {
		logger.Warn(ctx, "publish events failed",
			zap.String("topic", s.topic),
			zap.Int("count", len(batch)),
			zap.Error(appErr.Wrapf(err, appErr.QueueError, "publish run events failed")),
		)
	}
}

func toMessage(ev Event) (*mq.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	message := mq.NewMessage(ev.RunID, payload)
	message.SetHeader("event", string(ev.Type))
	message.SetHeader("workflow", string(ev.Workflow))
	return message, nil
}
