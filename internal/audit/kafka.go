package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"specsync/internal/audit/domain"
)

// KafkaEmitter streams audit entries to a Kafka topic as JSON, keyed by
// machine id so one machine's entries stay ordered within a partition.
type KafkaEmitter struct {
	writer *kafka.Writer
}

// NewKafkaEmitter creates a Kafka emitter for the given brokers and topic.
// Returns nil (a no-op for the Recorder) when brokers or topic are unset.
// Call Close on shutdown.
func NewKafkaEmitter(brokers []string, topic string) *KafkaEmitter {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaEmitter{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}}
}

// Emit serializes the entry as JSON and writes it to the topic.
func (k *KafkaEmitter) Emit(ctx context.Context, e *domain.Entry) error {
	if k == nil || k.writer == nil || e == nil {
		return nil
	}
	value, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.MachineID),
		Value: value,
	})
}

// Close flushes and closes the underlying writer.
func (k *KafkaEmitter) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
