package alert

import (
	"fmt"

	"github.com/siqueiraa/FraudFlow/pkg/codec"
	"github.com/siqueiraa/FraudFlow/pkg/risk"
	"github.com/siqueiraa/FraudFlow/pkg/transaction"
)

// Trigger says which kind of record an alert came from.
type Trigger string

const (
	// TriggerRaw records are ingested transactions scored by the dispatcher.
	TriggerRaw Trigger = "raw"
	// TriggerEnriched records were already scored by the transform.
	TriggerEnriched Trigger = "enriched"
)

// Scored is a decoded transaction with its risk verdict, whatever shape it
// arrived in.
type Scored struct {
	RecordID string
	Payload  map[string]any
	Verdict  risk.Verdict
	Trigger  Trigger
}

// Source is one record handed to the dispatcher.
type Source interface {
	ID() string
	Trigger() Trigger
	Score(ev *risk.Evaluator) (Scored, error)
}

type rawSource struct {
	id    string
	data  []byte
	codec codec.Codec
}

// Raw wraps an ingested transaction; the dispatcher evaluates its risk.
func Raw(id string, data []byte, c codec.Codec) Source {
	return rawSource{id: id, data: data, codec: c}
}

func (r rawSource) ID() string       { return r.id }
func (r rawSource) Trigger() Trigger { return TriggerRaw }

func (r rawSource) Score(ev *risk.Evaluator) (Scored, error) {
	payload, err := r.codec.Decode(r.data)
	if err != nil {
		return Scored{}, fmt.Errorf("decode raw record: %w", err)
	}
	return Scored{RecordID: r.id, Payload: payload, Verdict: ev.EvaluatePayload(payload), Trigger: TriggerRaw}, nil
}

type enrichedSource struct {
	id    string
	data  []byte
	codec codec.Codec
}

// Enriched wraps a transformed record; its is_high_risk flag is trusted.
func Enriched(id string, data []byte, c codec.Codec) Source {
	return enrichedSource{id: id, data: data, codec: c}
}

func (e enrichedSource) ID() string       { return e.id }
func (e enrichedSource) Trigger() Trigger { return TriggerEnriched }

func (e enrichedSource) Score(*risk.Evaluator) (Scored, error) {
	payload, err := e.codec.Decode(e.data)
	if err != nil {
		return Scored{}, fmt.Errorf("decode enriched record: %w", err)
	}
	s := Scored{RecordID: e.id, Payload: payload, Trigger: TriggerEnriched}
	if flag, ok := payload[transaction.FieldIsHighRisk].(bool); ok && flag {
		s.Verdict = risk.Verdict{HighRisk: true, Reason: risk.ReasonPrecomputedFlag}
	}
	return s, nil
}
