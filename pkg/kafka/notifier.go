package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/siqueiraa/FraudFlow/pkg/alert"
	"github.com/siqueiraa/FraudFlow/pkg/codec"
)

const (
	headerSubject = "subject"
	headerAlertID = "alert_id"
)

type alertValue struct {
	AlertID string     `json:"alert_id"`
	Subject string     `json:"subject"`
	Body    alert.Body `json:"body"`
	Text    string     `json:"text"`
}

// AlertNotifier publishes alerts to a notification topic keyed by
// transaction id.
type AlertNotifier struct {
	producer *Producer
	topic    string
}

func NewAlertNotifier(p *Producer, topic string) *AlertNotifier {
	return &AlertNotifier{producer: p, topic: topic}
}

func (n *AlertNotifier) Publish(ctx context.Context, msg alert.Message) error {
	value, err := codec.API.Marshal(alertValue{
		AlertID: msg.Body.AlertID,
		Subject: msg.Subject,
		Body:    msg.Body,
		Text:    msg.Text(),
	})
	if err != nil {
		return err
	}
	return n.producer.write(ctx, n.topic, kafka.Message{
		Topic: n.topic,
		Key:   []byte(msg.TransactionID()),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: headerSubject, Value: []byte(msg.Subject)},
			{Key: headerAlertID, Value: []byte(msg.Body.AlertID)},
		},
	})
}
