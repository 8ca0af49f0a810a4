package transform

import (
	"fmt"
	"log"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/siqueiraa/FraudFlow/pkg/codec"
	"github.com/siqueiraa/FraudFlow/pkg/metrics"
	"github.com/siqueiraa/FraudFlow/pkg/risk"
	"github.com/siqueiraa/FraudFlow/pkg/transaction"
)

// Result tags an outcome.
type Result string

const (
	ResultOk               Result = "Ok"
	ResultProcessingFailed Result = "ProcessingFailed"
)

// Record is one raw record of a batch.
type Record struct {
	ID   string
	Data []byte
}

// Outcome is the per-record result of Transform. On ProcessingFailed, Data
// is the record's original bytes and Err says why.
type Outcome struct {
	RecordID string
	Result   Result
	Data     []byte
	Err      error
}

func (o Outcome) Accepted() bool { return o.Result == ResultOk }

// Transformer decodes, scores, enriches and re-encodes stream records.
type Transformer struct {
	evaluator *risk.Evaluator
	input     codec.Codec
	output    codec.Codec
	envelope  Envelope
	now       func() time.Time
	workers   int
}

type Option func(*Transformer)

// WithInputCodec sets how record payloads are decoded (default JSON).
func WithInputCodec(c codec.Codec) Option { return func(t *Transformer) { t.input = c } }

// WithOutputCodec sets how enriched payloads are encoded (default JSON lines).
func WithOutputCodec(c codec.Codec) Option { return func(t *Transformer) { t.output = c } }

// WithEnvelope sets the payload envelope (default Binary).
func WithEnvelope(e Envelope) Option { return func(t *Transformer) { t.envelope = e } }

// WithClock overrides the source of ingest_ts.
func WithClock(now func() time.Time) Option { return func(t *Transformer) { t.now = now } }

// WithWorkers bounds how many records are processed at once.
func WithWorkers(n int) Option {
	return func(t *Transformer) {
		if n > 0 {
			t.workers = n
		}
	}
}

func New(evaluator *risk.Evaluator, opts ...Option) *Transformer {
	t := &Transformer{
		evaluator: evaluator,
		input:     codec.NewJSON(),
		output:    codec.NewJSONLines(),
		envelope:  Binary{},
		now:       time.Now,
		workers:   runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform returns exactly one outcome per record, in input order. A record
// that cannot be processed yields ProcessingFailed with its original bytes;
// it never affects the other records.
func (t *Transformer) Transform(batch []Record) []Outcome {
	start := time.Now()
	outcomes := make([]Outcome, len(batch))

	var g errgroup.Group
	g.SetLimit(t.workers)
	for i := range batch {
		g.Go(func() error {
			outcomes[i] = t.transformRecord(batch[i])
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		metrics.TransformRecords.WithLabelValues(string(o.Result)).Inc()
		if !o.Accepted() {
			failed++
			log.Printf("[Transform] record %s failed: %v", o.RecordID, o.Err)
		}
	}
	metrics.BatchDuration.WithLabelValues("transform").Observe(time.Since(start).Seconds())
	if failed > 0 {
		log.Printf("[Transform] batch of %d: %d ok, %d failed", len(batch), len(batch)-failed, failed)
	}
	return outcomes
}

func (t *Transformer) transformRecord(rec Record) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed(rec, fmt.Errorf("panic: %v", r))
		}
	}()

	data, err := t.Enrich(rec.Data)
	if err != nil {
		return failed(rec, err)
	}
	return Outcome{RecordID: rec.ID, Result: ResultOk, Data: data}
}

// Enrich runs a single payload through the transform and returns the sealed,
// enriched bytes.
func (t *Transformer) Enrich(data []byte) ([]byte, error) {
	opened, err := t.envelope.Open(data)
	if err != nil {
		return nil, err
	}
	record, err := t.input.Decode(opened)
	if err != nil {
		return nil, err
	}

	verdict := t.evaluator.EvaluatePayload(record)
	record[transaction.FieldIngestTS] = t.now().UTC().Format(transaction.IngestTSLayout)
	record[transaction.FieldIsHighRisk] = verdict.HighRisk

	encoded, err := t.output.Encode(record)
	if err != nil {
		return nil, err
	}
	return t.envelope.Seal(encoded), nil
}

func failed(rec Record, err error) Outcome {
	return Outcome{RecordID: rec.ID, Result: ResultProcessingFailed, Data: rec.Data, Err: err}
}
