package risk

import (
	"encoding/json"
	"testing"
)

func TestEvaluate(t *testing.T) {
	ev := NewEvaluator(NewPolicy(1000, []string{"ru", " IR ", "KP"}))

	tests := []struct {
		name    string
		amount  float64
		country string
		want    Verdict
	}{
		{"below threshold, safe country", 50, "FR", Verdict{}},
		{"at threshold is not over", 1000, "US", Verdict{}},
		{"over threshold", 2500, "US", Verdict{HighRisk: true, Reason: ReasonAmountOverLimit}},
		{"risky country upper", 10, "RU", Verdict{HighRisk: true, Reason: ReasonHighRiskCountry}},
		{"risky country lower", 10, "ir", Verdict{HighRisk: true, Reason: ReasonHighRiskCountry}},
		{"amount wins over country", 5000, "KP", Verdict{HighRisk: true, Reason: ReasonAmountOverLimit}},
		{"empty country", 0, "", Verdict{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ev.Evaluate(tt.amount, tt.country); got != tt.want {
				t.Errorf("Evaluate(%v, %q) = %+v, want %+v", tt.amount, tt.country, got, tt.want)
			}
		})
	}
}

func TestEvaluateMonotonicInAmount(t *testing.T) {
	ev := NewEvaluator(NewPolicy(1000, DefaultCountries))

	prev := false
	for amount := 0.0; amount <= 3000; amount += 50 {
		got := ev.Evaluate(amount, "DE").HighRisk
		if prev && !got {
			t.Fatalf("verdict went from high to low risk at amount %v", amount)
		}
		prev = got
	}
	if !prev {
		t.Errorf("expected high risk at the top of the range")
	}
}

func TestEvaluateCountryMembershipBelowThreshold(t *testing.T) {
	ev := NewEvaluator(NewPolicy(1000, []string{"RU", "BY"}))

	for _, c := range []string{"RU", "ru", "By", "bY"} {
		if !ev.Evaluate(1, c).HighRisk {
			t.Errorf("country %q should be high risk", c)
		}
	}
	for _, c := range []string{"US", "FR", "R", "RUS", ""} {
		if ev.Evaluate(1, c).HighRisk {
			t.Errorf("country %q should not be high risk", c)
		}
	}
}

func TestEvaluatePayloadCoercion(t *testing.T) {
	ev := NewEvaluator(NewPolicy(2000, []string{"RU"}))

	tests := []struct {
		name    string
		payload map[string]any
		want    bool
	}{
		{"json number", map[string]any{"amount": json.Number("2500")}, true},
		{"float", map[string]any{"amount": 2000.01}, true},
		{"int", map[string]any{"amount": 2001}, true},
		{"numeric string", map[string]any{"amount": "2500.5"}, true},
		{"garbage string", map[string]any{"amount": "lots"}, false},
		{"bool amount", map[string]any{"amount": true}, false},
		{"missing amount", map[string]any{}, false},
		{"lowercase country", map[string]any{"country": "ru"}, true},
		{"numeric country", map[string]any{"country": 7}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ev.EvaluatePayload(tt.payload).HighRisk; got != tt.want {
				t.Errorf("EvaluatePayload(%v) = %v, want %v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestSetPolicy(t *testing.T) {
	ev := NewEvaluator(DefaultPolicy())
	if ev.Evaluate(1500, "US").HighRisk != true {
		t.Fatalf("default policy should flag 1500")
	}

	ev.SetPolicy(NewPolicy(5000, nil))
	if ev.Evaluate(1500, "US").HighRisk {
		t.Errorf("raised threshold should not flag 1500")
	}
	if ev.Evaluate(1, "RU").HighRisk {
		t.Errorf("empty country set should not flag RU")
	}
	if got := ev.Policy().AmountThreshold; got != 5000 {
		t.Errorf("Policy().AmountThreshold = %v, want 5000", got)
	}
}
