package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/kafka"
)

const (
	// Maximum value for signed 32-bit integer
	maxInt32     = 0x7FFFFFFF
	pollInterval = 100 * time.Millisecond
)

// OffsetStore keeps the last processed offset per partition outside Kafka.
type OffsetStore interface {
	GetOffset(topic string, partition int) (int64, error)
	SaveOffset(topic string, partition int, offset int64) error
}

type consumerClient interface {
	ReadMessage(timeout time.Duration) (*ck.Message, error)
	CommitOffsets(offsets []ck.TopicPartition) ([]ck.TopicPartition, error)
	Close() error
}

// Consumer reads one topic in batches and commits manually.
type Consumer struct {
	c     consumerClient
	topic string
	store OffsetStore
	// stateKey names this group's offsets in store, so two groups reading
	// the same topic do not overwrite each other.
	stateKey string
}

// NewConsumer subscribes to topic. On assignment each partition resumes
// after the offset recorded in store; partitions without one fall back to
// the group's committed offset, then to the earliest.
func NewConsumer(brokers []string, topic, groupID string, store OffsetStore) (*Consumer, error) {
	cm := &ck.ConfigMap{
		"bootstrap.servers":               strings.Join(brokers, ","),
		"group.id":                        groupID,
		"enable.auto.commit":              false,
		"auto.offset.reset":               "earliest",
		"go.application.rebalance.enable": true,
	}
	c, err := ck.NewConsumer(cm)
	if err != nil {
		return nil, fmt.Errorf("failed to create confluent consumer: %w", err)
	}

	stateKey := groupID + "/" + topic
	err = c.SubscribeTopics([]string{topic}, func(con *ck.Consumer, ev ck.Event) error {
		switch e := ev.(type) {
		case ck.AssignedPartitions:
			return con.Assign(resumePositions(stateKey, e.Partitions, store))
		case ck.RevokedPartitions:
			return con.Unassign()
		default:
			return nil
		}
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("subscribe %s failed: %w", topic, err)
	}

	return &Consumer{c: c, topic: topic, store: store, stateKey: stateKey}, nil
}

// resumePositions sets each assigned partition's starting offset from the
// offsets store holds under key.
func resumePositions(key string, parts []ck.TopicPartition, store OffsetStore) []ck.TopicPartition {
	for i := range parts {
		if store == nil {
			parts[i].Offset = ck.OffsetStored
			continue
		}
		off, err := store.GetOffset(key, int(parts[i].Partition))
		if err != nil {
			log.Printf("[Kafka] offset not found for %s partition: %d", key, parts[i].Partition)
			parts[i].Offset = ck.OffsetStored
		} else {
			log.Printf("[Kafka] resuming %s partition: %d after offset: %d", key, parts[i].Partition, off)
			parts[i].Offset = ck.Offset(off + 1)
		}
	}
	return parts
}

// ReadBatch collects up to size messages, waiting at most wait for the batch
// to fill. A partial batch is returned as soon as the wait runs out or ctx
// is cancelled.
func (c *Consumer) ReadBatch(ctx context.Context, size int, wait time.Duration) ([]Message, error) {
	batch := make([]Message, 0, size)
	deadline := time.Now().Add(wait)

	for len(batch) < size {
		if ctx.Err() != nil {
			if len(batch) == 0 {
				return nil, ctx.Err()
			}
			return batch, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		msg, err := c.c.ReadMessage(min(remaining, pollInterval))
		if err != nil {
			var ke ck.Error
			if errors.As(err, &ke) {
				if ke.Code() == ck.ErrTimedOut {
					continue
				}
				if !ke.IsFatal() {
					log.Printf("[Kafka] transient consumer error on %s: %v", c.topic, err)
					continue
				}
			}
			if len(batch) > 0 {
				log.Printf("[Kafka] consumer error on %s after %d message(s): %v", c.topic, len(batch), err)
				return batch, nil
			}
			return nil, err
		}

		batch = append(batch, fromConfluent(msg))
	}
	return batch, nil
}

func fromConfluent(msg *ck.Message) Message {
	m := Message{
		Partition: int(msg.TopicPartition.Partition),
		Offset:    int64(msg.TopicPartition.Offset),
		Key:       msg.Key,
		Value:     msg.Value,
		Time:      msg.Timestamp,
	}
	if msg.TopicPartition.Topic != nil {
		m.Topic = *msg.TopicPartition.Topic
	}
	return m
}

// CommitBatch commits a group of messages in one RPC and records the same
// positions in the offset store.
func (c *Consumer) CommitBatch(msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	byPart := lastOffsets(msgs)

	tps := make([]ck.TopicPartition, 0, len(byPart))
	for p, off := range byPart {
		if p > maxInt32 { // Ensure partition fits in int32
			return fmt.Errorf("partition %d exceeds int32 limit", p)
		}
		tps = append(tps, ck.TopicPartition{
			Topic:     &c.topic,
			Partition: int32(p), //nolint:gosec // Bounded by int32 max check above
			Offset:    ck.Offset(off + 1),
		})
	}
	if _, err := c.c.CommitOffsets(tps); err != nil {
		return fmt.Errorf("commit batch failed: %w", err)
	}

	if c.store == nil {
		return nil
	}
	for p, off := range byPart {
		if err := c.store.SaveOffset(c.stateKey, p, off); err != nil {
			return fmt.Errorf("save offset %s/%d: %w", c.stateKey, p, err)
		}
	}
	return nil
}

func (c *Consumer) Close() error { return c.c.Close() }
