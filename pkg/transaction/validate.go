package transaction

import (
	"encoding/json"
	"fmt"
)

// Problem is what was wrong with a required field.
type Problem int

const (
	Missing Problem = iota
	WrongType
	Empty
)

// ValidationError reports the first required field that failed validation.
type ValidationError struct {
	Field   string
	Problem Problem
}

func (e *ValidationError) Error() string {
	switch e.Problem {
	case Missing:
		return "missing field: " + e.Field
	case Empty:
		return "empty field: " + e.Field
	default:
		return "wrong type for " + e.Field
	}
}

type kind int

const (
	kindString kind = iota
	kindNumber
)

var required = []struct {
	name string
	kind kind
}{
	{FieldID, kindString},
	{FieldTimestamp, kindString},
	{FieldAmount, kindNumber},
	{FieldCurrency, kindString},
}

// Validate checks payload against the required-field schema. The payload is
// not modified; the returned Transaction references it.
func Validate(payload map[string]any) (Transaction, error) {
	for _, f := range required {
		v, ok := payload[f.name]
		if !ok {
			return Transaction{}, &ValidationError{Field: f.name, Problem: Missing}
		}
		if !hasKind(v, f.kind) {
			return Transaction{}, &ValidationError{Field: f.name, Problem: WrongType}
		}
	}
	// The id doubles as the partition key of last resort, so it must not be blank.
	if payload[FieldID] == "" {
		return Transaction{}, &ValidationError{Field: FieldID, Problem: Empty}
	}

	amount, err := toFloat(payload[FieldAmount])
	if err != nil {
		return Transaction{}, &ValidationError{Field: FieldAmount, Problem: WrongType}
	}

	tx := Transaction{
		ID:        payload[FieldID].(string),
		Timestamp: payload[FieldTimestamp].(string),
		Amount:    amount,
		Currency:  payload[FieldCurrency].(string),
		Payload:   payload,
	}
	tx.Country, _ = payload[FieldCountry].(string)
	tx.Merchant, _ = payload[FieldMerchant].(string)
	tx.CardLast4 = optionalText(payload[FieldCardLast4])
	tx.Features, _ = payload[FieldFeatures].(map[string]any)
	return tx, nil
}

func hasKind(v any, k kind) bool {
	switch k {
	case kindString:
		_, ok := v.(string)
		return ok
	case kindNumber:
		switch v.(type) {
		case json.Number, float64, float32, int, int32, int64:
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

// optionalText renders string and numeric optional fields as text.
func optionalText(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return ""
	}
}
