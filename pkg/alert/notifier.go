package alert

import (
	"context"
	"log"
)

// Notifier delivers an alert to operators.
type Notifier interface {
	Publish(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) Publish(ctx context.Context, msg Message) error { return f(ctx, msg) }

// LogNotifier writes alerts to the process log. Used when no notification
// target is configured.
type LogNotifier struct{}

func (LogNotifier) Publish(_ context.Context, msg Message) error {
	log.Printf("[Alert] %s | tx=%s amount=%v currency=%v country=%v reason=%s",
		msg.Subject, msg.TransactionID(), msg.Body.Amount, msg.Body.Currency, msg.Body.Country, msg.Body.Reason)
	return nil
}
