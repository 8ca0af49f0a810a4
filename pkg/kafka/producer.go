package kafka

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/siqueiraa/FraudFlow/pkg/config"
)

const (
	batchTimeoutMillis = 100 // Batch timeout in milliseconds
	writeTimeoutSecs   = 10  // Upper bound for one write call
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes to any topic; the topic is chosen per call.
type Producer struct {
	writer  messageWriter
	timeout time.Duration
}

// NewProducer creates a producer that waits for all in-sync replicas.
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &KeyHash{},
		BatchTimeout:           batchTimeoutMillis * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newProducer(w)
}

func newProducer(w messageWriter) *Producer {
	return &Producer{writer: w, timeout: writeTimeoutSecs * time.Second}
}

// Put writes a single record and returns once it is acknowledged.
func (p *Producer) Put(ctx context.Context, topic string, key, value []byte) error {
	return p.write(ctx, topic, kafka.Message{Topic: topic, Key: key, Value: value, Time: time.Now()})
}

// PublishBatch writes msgs to topic in one call. Keys are kept, so records
// stay on their original partition key.
func (p *Producer) PublishBatch(ctx context.Context, topic string, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now() // One syscall instead of one per message
	out := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, kafka.Message{Topic: topic, Key: m.Key, Value: m.Value, Time: now})
	}
	return p.write(ctx, topic, out...)
}

func (p *Producer) write(ctx context.Context, topic string, msgs ...kafka.Message) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		log.Printf("[Kafka] publish failed topic=%s count=%d: %v", topic, len(msgs), err)
		return fmt.Errorf("write %d message(s) to %s: %w", len(msgs), topic, err)
	}
	return nil
}

// Close shuts down the writer cleanly.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Stream is the ingest stream: one topic written through a shared producer.
type Stream struct {
	producer *Producer
	topic    string
}

func NewStream(p *Producer, topic string) *Stream {
	return &Stream{producer: p, topic: topic}
}

func (s *Stream) Put(ctx context.Context, key string, value []byte) error {
	return s.producer.Put(ctx, s.topic, []byte(key), value)
}
