package transaction

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func validPayload() map[string]any {
	return map[string]any{
		"transaction_id": "t1",
		"timestamp":      "2024-01-01T00:00:00Z",
		"amount":         json.Number("2500"),
		"currency":       "USD",
		"country":        "US",
	}
}

func TestValidateAccepts(t *testing.T) {
	payload := validPayload()
	payload["merchant"] = "ACME"
	payload["card_last4"] = "4242"
	payload["features"] = map[string]any{"device_trust": 0.2}
	before := copyMap(payload)

	tx, err := Validate(payload)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	if tx.ID != "t1" || tx.Currency != "USD" || tx.Amount != 2500 || tx.Country != "US" {
		t.Errorf("unexpected transaction: %+v", tx)
	}
	if tx.Merchant != "ACME" || tx.CardLast4 != "4242" {
		t.Errorf("optional fields not carried: %+v", tx)
	}
	if !reflect.DeepEqual(payload, before) {
		t.Errorf("payload was mutated: %v", payload)
	}
}

func TestValidateNumericKinds(t *testing.T) {
	for _, amount := range []any{json.Number("10.5"), 10.5, float32(3), 7, int64(9), int32(1)} {
		p := validPayload()
		p["amount"] = amount
		if _, err := Validate(p); err != nil {
			t.Errorf("amount %T(%v) rejected: %v", amount, amount, err)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]any)
		field   string
		problem Problem
		message string
	}{
		{"missing id", func(p map[string]any) { delete(p, "transaction_id") }, "transaction_id", Missing, "missing field: transaction_id"},
		{"empty id", func(p map[string]any) { p["transaction_id"] = "" }, "transaction_id", Empty, "empty field: transaction_id"},
		{"numeric id", func(p map[string]any) { p["transaction_id"] = json.Number("1") }, "transaction_id", WrongType, "wrong type for transaction_id"},
		{"missing timestamp", func(p map[string]any) { delete(p, "timestamp") }, "timestamp", Missing, "missing field: timestamp"},
		{"missing amount", func(p map[string]any) { delete(p, "amount") }, "amount", Missing, "missing field: amount"},
		{"string amount", func(p map[string]any) { p["amount"] = "100" }, "amount", WrongType, "wrong type for amount"},
		{"bool amount", func(p map[string]any) { p["amount"] = true }, "amount", WrongType, "wrong type for amount"},
		{"null amount", func(p map[string]any) { p["amount"] = nil }, "amount", WrongType, "wrong type for amount"},
		{"missing currency", func(p map[string]any) { delete(p, "currency") }, "currency", Missing, "missing field: currency"},
		{"object currency", func(p map[string]any) { p["currency"] = map[string]any{} }, "currency", WrongType, "wrong type for currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload()
			tt.mutate(p)

			_, err := Validate(p)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Field != tt.field || verr.Problem != tt.problem {
				t.Errorf("got field=%s problem=%d, want field=%s problem=%d", verr.Field, verr.Problem, tt.field, tt.problem)
			}
			if err.Error() != tt.message {
				t.Errorf("message = %q, want %q", err.Error(), tt.message)
			}
		})
	}
}

func TestValidateReportsFirstViolation(t *testing.T) {
	p := map[string]any{"amount": "x"}
	_, err := Validate(p)
	if err == nil || err.Error() != "missing field: transaction_id" {
		t.Errorf("expected transaction_id to be reported first, got %v", err)
	}

	p = map[string]any{"transaction_id": "t", "timestamp": 5, "amount": "x"}
	_, err = Validate(p)
	if err == nil || err.Error() != "wrong type for timestamp" {
		t.Errorf("expected timestamp to be reported first, got %v", err)
	}
}

func TestPartitionKey(t *testing.T) {
	tests := []struct {
		name string
		card any
		want string
	}{
		{"card present", "4242", "4242"},
		{"card empty", "", "t1"},
		{"card absent", nil, "t1"},
		{"card numeric", json.Number("1234"), "1234"},
		{"card bool", true, "t1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload()
			if tt.card != nil {
				p["card_last4"] = tt.card
			}
			tx, err := Validate(p)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			got := PartitionKey(tx)
			if got != tt.want {
				t.Errorf("PartitionKey = %q, want %q", got, tt.want)
			}
			if got == "" {
				t.Errorf("partition key must never be empty")
			}
		})
	}
}

func TestDeviceTrust(t *testing.T) {
	v, ok := DeviceTrust(map[string]any{"features": map[string]any{"device_trust": 0.4}})
	if !ok || v != 0.4 {
		t.Errorf("DeviceTrust = %v, %v", v, ok)
	}
	if _, ok := DeviceTrust(map[string]any{"features": "nope"}); ok {
		t.Errorf("non-map features should not yield a value")
	}
	if _, ok := DeviceTrust(map[string]any{}); ok {
		t.Errorf("missing features should not yield a value")
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
