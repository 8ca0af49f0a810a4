package alert

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/siqueiraa/FraudFlow/pkg/codec"
	"github.com/siqueiraa/FraudFlow/pkg/risk"
)

// MockNotifier records published messages and can fail selected transactions.
type MockNotifier struct {
	mu       sync.Mutex
	Messages []Message
	FailFor  map[string]bool
}

func (m *MockNotifier) Publish(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFor[msg.TransactionID()] {
		return errors.New("sink unavailable")
	}
	m.Messages = append(m.Messages, msg)
	return nil
}

func newDispatcher(n Notifier) *Dispatcher {
	ev := risk.NewEvaluator(risk.NewPolicy(2000, []string{"RU", "BY", "UA", "KP", "IR"}))
	return NewDispatcher(ev, n, 4)
}

func TestDispatchRawRecords(t *testing.T) {
	n := &MockNotifier{}
	d := newDispatcher(n)
	c := codec.NewJSON()

	batch := []Source{
		Raw("1", []byte(`{"transaction_id":"t1","amount":2500,"currency":"USD","country":"US"}`), c),
		Raw("2", []byte(`{"transaction_id":"t2","amount":50,"currency":"EUR","country":"FR"}`), c),
		Raw("3", []byte(`{"transaction_id":"t3","amount":"10","currency":"RUB","country":"ru"}`), c),
	}

	report := d.Dispatch(context.Background(), batch)

	if report.Published() != 2 {
		t.Fatalf("published = %d, want 2", report.Published())
	}
	if got := report.Results[1].Status; got != StatusNotHighRisk {
		t.Errorf("t2 status = %s, want not_high_risk", got)
	}
	for _, m := range n.Messages {
		if m.Subject != SubjectSuspicious {
			t.Errorf("raw alerts use the suspicious subject, got %q", m.Subject)
		}
	}
	if report.Results[0].AlertID == "" {
		t.Errorf("published result should carry the alert id")
	}
}

func TestDispatchEnrichedTrustsFlag(t *testing.T) {
	n := &MockNotifier{}
	d := newDispatcher(n)
	c := codec.NewJSON()

	batch := []Source{
		// Flag says high risk even though the policy would not.
		Enriched("1", []byte(`{"transaction_id":"t1","amount":5,"is_high_risk":true}`), c),
		// Flag says low risk even though the policy would flag it.
		Enriched("2", []byte(`{"transaction_id":"t2","amount":999999,"is_high_risk":false}`), c),
		// Only a real boolean counts.
		Enriched("3", []byte(`{"transaction_id":"t3","is_high_risk":"true"}`), c),
		Enriched("4", []byte(`{"transaction_id":"t4"}`), c),
	}

	report := d.Dispatch(context.Background(), batch)

	if report.Published() != 1 {
		t.Fatalf("published = %d, want 1", report.Published())
	}
	if len(n.Messages) != 1 || n.Messages[0].TransactionID() != "t1" {
		t.Fatalf("unexpected messages: %+v", n.Messages)
	}
	if n.Messages[0].Subject != SubjectHighRisk {
		t.Errorf("enriched alerts use the high risk subject, got %q", n.Messages[0].Subject)
	}
	if n.Messages[0].Body.Reason != string(risk.ReasonPrecomputedFlag) {
		t.Errorf("reason = %q", n.Messages[0].Body.Reason)
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	n := &MockNotifier{FailFor: map[string]bool{"t2": true}}
	d := newDispatcher(n)
	c := codec.NewJSON()

	batch := []Source{
		Raw("1", []byte(`{"transaction_id":"t1","amount":3000}`), c),
		Raw("2", []byte(`{"transaction_id":"t2","amount":3000}`), c),
		Raw("3", []byte(`not json`), c),
		Raw("4", []byte(`{"transaction_id":"t4","amount":3000}`), c),
	}

	report := d.Dispatch(context.Background(), batch)

	if len(report.Results) != 4 {
		t.Fatalf("got %d results, want 4", len(report.Results))
	}
	if report.Published() != 2 {
		t.Errorf("published = %d, want 2", report.Published())
	}

	failed := report.Failed()
	if len(failed) != 2 {
		t.Fatalf("failed = %d, want 2", len(failed))
	}
	stages := map[string]Stage{}
	for _, f := range failed {
		stages[f.RecordID] = f.Stage
		if f.Err == nil {
			t.Errorf("failed result %s has no error", f.RecordID)
		}
	}
	if stages["2"] != StagePublish || stages["3"] != StageDecode {
		t.Errorf("unexpected failure stages: %v", stages)
	}
}

func TestDispatchRecoversNotifierPanic(t *testing.T) {
	d := newDispatcher(NotifierFunc(func(context.Context, Message) error { panic("boom") }))

	report := d.Dispatch(context.Background(), []Source{
		Raw("1", []byte(`{"transaction_id":"t1","amount":3000}`), codec.NewJSON()),
	})

	if res := report.Results[0]; res.Status != StatusFailed || res.Stage != StagePublish {
		t.Errorf("panic should surface as a publish failure, got %+v", res)
	}
}

func TestDispatchEmptyBatch(t *testing.T) {
	report := newDispatcher(&MockNotifier{}).Dispatch(context.Background(), nil)
	if len(report.Results) != 0 || report.Published() != 0 {
		t.Errorf("empty batch should produce an empty report")
	}
}
