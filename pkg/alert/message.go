package alert

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/siqueiraa/FraudFlow/pkg/transaction"
)

const (
	SubjectSuspicious = "Fraud Alert - Suspicious transaction detected"
	SubjectHighRisk   = "Fraud Alert - High Risk Transaction"
)

// Body is the structured part of an alert. The first four fields are always
// present (null when the record lacks them); the rest only when known.
type Body struct {
	AlertID       string `json:"alert_id"`
	TransactionID any    `json:"transaction_id"`
	Amount        any    `json:"amount"`
	Currency      any    `json:"currency"`
	Country       any    `json:"country"`
	Merchant      any    `json:"merchant,omitempty"`
	CardLast4     any    `json:"card_last4,omitempty"`
	Timestamp     any    `json:"timestamp,omitempty"`
	DeviceTrust   any    `json:"device_trust,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// Message is what gets published for one high-risk transaction.
type Message struct {
	Subject string
	Body    Body
	Trigger Trigger
}

// NewMessage builds the alert for a scored transaction.
func NewMessage(s Scored) Message {
	p := s.Payload
	body := Body{
		AlertID:       uuid.NewString(),
		TransactionID: p[transaction.FieldID],
		Amount:        p[transaction.FieldAmount],
		Currency:      p[transaction.FieldCurrency],
		Country:       p[transaction.FieldCountry],
		Merchant:      p[transaction.FieldMerchant],
		CardLast4:     p[transaction.FieldCardLast4],
		Timestamp:     p[transaction.FieldTimestamp],
		Reason:        string(s.Verdict.Reason),
	}
	if v, ok := transaction.DeviceTrust(p); ok {
		body.DeviceTrust = v
	}

	subject := SubjectSuspicious
	if s.Trigger == TriggerEnriched {
		subject = SubjectHighRisk
	}
	return Message{Subject: subject, Body: body, Trigger: s.Trigger}
}

// TransactionID returns the transaction id as text, or "" when absent.
func (m Message) TransactionID() string {
	if m.Body.TransactionID == nil {
		return ""
	}
	return fmt.Sprint(m.Body.TransactionID)
}

// Text renders the alert for human readers.
func (m Message) Text() string {
	var b strings.Builder
	b.WriteString("HIGH RISK TRANSACTION DETECTED\n\n")
	line(&b, "Transaction ID", m.Body.TransactionID)
	line(&b, "Amount", m.Body.Amount)
	line(&b, "Currency", m.Body.Currency)
	line(&b, "Country", m.Body.Country)
	optional(&b, "Merchant", m.Body.Merchant)
	optional(&b, "Timestamp", m.Body.Timestamp)
	optional(&b, "Card Last4", m.Body.CardLast4)
	optional(&b, "Risk Score", m.Body.DeviceTrust)
	if m.Body.Reason != "" {
		line(&b, "Reason", m.Body.Reason)
	}
	return b.String()
}

func line(b *strings.Builder, label string, v any) {
	if v == nil {
		v = "-"
	}
	fmt.Fprintf(b, "%s: %v\n", label, v)
}

func optional(b *strings.Builder, label string, v any) {
	if v != nil {
		line(b, label, v)
	}
}
