package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message is the value written to Kafka.
type Message struct {
	Type    string          `json:"type"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

// KafkaPublisher writes events keyed by building ID, so one building's
// events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

// NewKafkaPublisher returns a publisher whose writes return once the message
// is queued; delivery failures are logged by the writer's completion hook.
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion:   logFailedDelivery(log),
	})
}

func logFailedDelivery(log *zap.Logger) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err == nil {
			return
		}
		keys := make([]string, len(msgs))
		for i, m := range msgs {
			keys[i] = string(m.Key)
		}
		log.Warn("kafka event delivery failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: func() time.Time { return time.Now().UTC() }}
}

func (p *KafkaPublisher) ModelTrained(ctx context.Context, e ModelTrained) error {
	return p.publish(ctx, TypeModelTrained, e.BuildingID, e)
}

func (p *KafkaPublisher) ForecastReady(ctx context.Context, e ForecastReady) error {
	return p.publish(ctx, TypeForecastReady, e.BuildingID, e)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) publish(ctx context.Context, typ, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", typ, err)
	}
	value, err := json.Marshal(Message{Type: typ, Time: p.now(), Payload: raw})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", typ, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: []kafka.Header{{Key: "type", Value: []byte(typ)}},
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", typ, err)
	}
	return nil
}
