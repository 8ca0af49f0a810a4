package risk

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
)

// Reason names the rule that produced a high-risk verdict.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonAmountOverLimit Reason = "amount_over_threshold"
	ReasonHighRiskCountry Reason = "high_risk_country"
	// ReasonPrecomputedFlag marks verdicts read from an enriched record
	// rather than computed here.
	ReasonPrecomputedFlag Reason = "precomputed_flag"
)

const defaultAmountThreshold = 1000.0

// DefaultCountries is the country set used when none is configured.
var DefaultCountries = []string{"RU", "BY", "UA", "KP", "IR"}

// Verdict is the outcome of evaluating one transaction.
type Verdict struct {
	HighRisk bool
	Reason   Reason
}

// Policy holds the thresholds the evaluator applies. A Policy is never
// mutated once built; use NewPolicy to get a normalized copy.
type Policy struct {
	AmountThreshold float64
	countries       map[string]struct{}
}

// NewPolicy builds a policy with the country codes upper-cased and trimmed.
func NewPolicy(amountThreshold float64, countries []string) Policy {
	set := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			set[c] = struct{}{}
		}
	}
	return Policy{AmountThreshold: amountThreshold, countries: set}
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return NewPolicy(defaultAmountThreshold, DefaultCountries)
}

// Countries returns the configured country codes in no particular order.
func (p Policy) Countries() []string {
	out := make([]string, 0, len(p.countries))
	for c := range p.countries {
		out = append(out, c)
	}
	return out
}

// IsHighRiskCountry reports whether country (any case) is in the set.
func (p Policy) IsHighRiskCountry(country string) bool {
	_, ok := p.countries[strings.ToUpper(country)]
	return ok
}

// Evaluator applies a Policy. One Evaluator is shared by the transform and
// alert stages; the policy can be swapped at runtime without locking readers.
type Evaluator struct {
	policy atomic.Pointer[Policy]
}

func NewEvaluator(p Policy) *Evaluator {
	e := &Evaluator{}
	e.policy.Store(&p)
	return e
}

// Policy returns the policy currently in effect.
func (e *Evaluator) Policy() Policy {
	return *e.policy.Load()
}

// SetPolicy replaces the policy for all subsequent evaluations.
func (e *Evaluator) SetPolicy(p Policy) {
	e.policy.Store(&p)
}

// Evaluate returns the verdict for an already-coerced amount and country.
func (e *Evaluator) Evaluate(amount float64, country string) Verdict {
	p := e.policy.Load()
	if amount > p.AmountThreshold {
		return Verdict{HighRisk: true, Reason: ReasonAmountOverLimit}
	}
	if p.IsHighRiskCountry(country) {
		return Verdict{HighRisk: true, Reason: ReasonHighRiskCountry}
	}
	return Verdict{}
}

// EvaluatePayload coerces the amount and country fields of a decoded
// transaction and evaluates them.
func (e *Evaluator) EvaluatePayload(payload map[string]any) Verdict {
	return e.Evaluate(Amount(payload["amount"]), Country(payload["country"]))
}

// Amount coerces a decoded amount field to a float. Numbers pass through,
// numeric strings are parsed, anything else is 0.
func Amount(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Country coerces a decoded country field to an upper-case code; non-string
// values become "".
func Country(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.ToUpper(s)
}
