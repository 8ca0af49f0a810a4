package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/siqueiraa/FraudFlow/pkg/archive"
	"github.com/siqueiraa/FraudFlow/pkg/codec"
	"github.com/siqueiraa/FraudFlow/pkg/kafka"
	"github.com/siqueiraa/FraudFlow/pkg/transform"
)

// failedRecord is the archived form of a record that could not be
// transformed.
type failedRecord struct {
	RecordID string `json:"recordId"`
	Result   string `json:"result"`
	Error    string `json:"error"`
	RawData  []byte `json:"rawData"`
}

// TransformStage enriches the ingest stream into the enriched topic.
// Enriched records keep their original key.
type TransformStage struct {
	Source      Source
	Publisher   Publisher
	Archiver    Archiver // optional
	Transformer *transform.Transformer
	// Output is the codec the transformer encodes with; archived copies are
	// always JSON lines. Nil means JSON.
	Output    codec.Codec
	Topic     string
	BatchSize int
	BatchWait time.Duration
}

func (s *TransformStage) Run(ctx context.Context) error {
	return runLoop(ctx, "Transform", s.Source, s.BatchSize, s.BatchWait, s.ProcessBatch)
}

// ProcessBatch transforms msgs and delivers the results. A record whose
// archive copy cannot be produced is handled as failed. Any delivery error
// is returned so the batch is retried rather than committed.
func (s *TransformStage) ProcessBatch(ctx context.Context, msgs []kafka.Message) error {
	records := make([]transform.Record, len(msgs))
	for i, m := range msgs {
		records[i] = transform.Record{ID: recordID(m), Data: m.Value}
	}
	outcomes := s.Transformer.Transform(records)

	enriched := make([]kafka.Message, 0, len(outcomes))
	var enrichedLines, failedLines [][]byte
	for i, o := range outcomes {
		if o.Accepted() && s.Archiver != nil {
			line, err := s.archiveLine(o.Data)
			if err == nil {
				enrichedLines = append(enrichedLines, line)
			} else {
				o = transform.Outcome{RecordID: o.RecordID, Result: transform.ResultProcessingFailed, Data: msgs[i].Value, Err: err}
				log.Printf("[Transform] record %s failed to re-encode for archive: %v", o.RecordID, err)
			}
		}
		if o.Accepted() {
			enriched = append(enriched, kafka.Message{Key: msgs[i].Key, Value: o.Data})
			continue
		}

		line, err := codec.API.Marshal(failedRecord{
			RecordID: o.RecordID,
			Result:   string(o.Result),
			Error:    errString(o.Err),
			RawData:  o.Data,
		})
		if err != nil {
			return fmt.Errorf("encode failed record %s: %w", o.RecordID, err)
		}
		failedLines = append(failedLines, line)
	}

	if err := s.Publisher.PublishBatch(ctx, s.Topic, enriched); err != nil {
		return err
	}
	if s.Archiver == nil {
		return nil
	}
	if err := s.Archiver.Archive(ctx, archive.KindEnriched, enrichedLines); err != nil {
		return err
	}
	return s.Archiver.Archive(ctx, archive.KindFailed, failedLines)
}

func (s *TransformStage) archiveLine(data []byte) ([]byte, error) {
	if s.Output == nil || s.Output.Name() == "json" {
		return data, nil
	}
	record, err := s.Output.Decode(data)
	if err != nil {
		return nil, err
	}
	return codec.NewJSONLines().Encode(record)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
