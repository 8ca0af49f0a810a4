// Package engine runs the stream stages: read a batch from a topic, hand it
// to the transform or alert logic, deliver the results and commit.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/siqueiraa/FraudFlow/pkg/archive"
	"github.com/siqueiraa/FraudFlow/pkg/kafka"
	"github.com/siqueiraa/FraudFlow/pkg/metrics"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// Source is a topic consumed in batches with manual commits.
type Source interface {
	ReadBatch(ctx context.Context, size int, wait time.Duration) ([]kafka.Message, error)
	CommitBatch(msgs []kafka.Message) error
}

// Publisher writes a batch of records to a topic.
type Publisher interface {
	PublishBatch(ctx context.Context, topic string, msgs []kafka.Message) error
}

// Archiver delivers records to object storage.
type Archiver interface {
	Archive(ctx context.Context, kind archive.Kind, records [][]byte) error
}

type processFunc func(ctx context.Context, msgs []kafka.Message) error

// runLoop reads, processes and commits until ctx is cancelled. A batch is
// retried with backoff until it succeeds, and only then committed, so every
// record is processed at least once.
func runLoop(ctx context.Context, name string, src Source, size int, wait time.Duration, process processFunc) error {
	log.Printf("[%s] consuming (batch=%d wait=%v)", name, size, wait)
	for {
		msgs, err := src.ReadBatch(ctx, size, wait)
		if ctx.Err() != nil {
			log.Printf("[%s] stopped", name)
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: read batch: %w", name, err)
		}
		if len(msgs) == 0 {
			continue
		}

		if err := processWithRetry(ctx, name, msgs, process); err != nil {
			log.Printf("[%s] stopped with %d uncommitted message(s)", name, len(msgs))
			return nil
		}
		if err := src.CommitBatch(msgs); err != nil {
			log.Printf("[%s] commit failed, batch will be redelivered after restart: %v", name, err)
		}
	}
}

// processWithRetry returns nil once process succeeds, or ctx.Err().
func processWithRetry(ctx context.Context, name string, msgs []kafka.Message, process processFunc) error {
	stage := strings.ToLower(name)
	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		start := time.Now()
		err := process(ctx, msgs)
		metrics.BatchAttemptDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[%s] batch of %d failed (attempt %d), retrying in %v: %v", name, len(msgs), attempt, backoff, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func recordID(m kafka.Message) string {
	return fmt.Sprintf("%s-%d-%d", m.Topic, m.Partition, m.Offset)
}
