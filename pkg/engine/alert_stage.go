package engine

import (
	"context"
	"log"
	"time"

	"github.com/siqueiraa/FraudFlow/pkg/alert"
	"github.com/siqueiraa/FraudFlow/pkg/codec"
	"github.com/siqueiraa/FraudFlow/pkg/kafka"
)

// AlertStage publishes alerts for the high-risk records of a topic. With
// TriggerRaw every record is scored; with TriggerEnriched the is_high_risk
// flag written by the transform stage is trusted.
type AlertStage struct {
	Source     Source
	Dispatcher *alert.Dispatcher
	Trigger    alert.Trigger
	Codec      codec.Codec
	BatchSize  int
	BatchWait  time.Duration
}

func (s *AlertStage) Run(ctx context.Context) error {
	return runLoop(ctx, "Alert", s.Source, s.BatchSize, s.BatchWait, s.ProcessBatch)
}

// ProcessBatch dispatches msgs. Records that fail to decode or publish are
// logged and skipped; only cancellation keeps the batch from committing.
func (s *AlertStage) ProcessBatch(ctx context.Context, msgs []kafka.Message) error {
	sources := make([]alert.Source, len(msgs))
	for i, m := range msgs {
		if s.Trigger == alert.TriggerRaw {
			sources[i] = alert.Raw(recordID(m), m.Value, s.Codec)
		} else {
			sources[i] = alert.Enriched(recordID(m), m.Value, s.Codec)
		}
	}

	report := s.Dispatcher.Dispatch(ctx, sources)
	if err := ctx.Err(); err != nil {
		return err
	}
	if failed := len(report.Failed()); failed > 0 || report.Published() > 0 {
		log.Printf("[Alert] batch of %d: %d published, %d failed", len(msgs), report.Published(), failed)
	}
	return nil
}
