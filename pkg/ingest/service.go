// Package ingest admits transactions into the stream.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/siqueiraa/FraudFlow/pkg/codec"
	"github.com/siqueiraa/FraudFlow/pkg/metrics"
	"github.com/siqueiraa/FraudFlow/pkg/transaction"
)

// Stream is the durable stream accepted transactions are written to.
type Stream interface {
	Put(ctx context.Context, key string, value []byte) error
}

// ErrInvalidJSON wraps request bodies that are not a JSON object.
var ErrInvalidJSON = errors.New("invalid JSON")

// Response is the outcome of one ingestion request.
type Response struct {
	StatusCode int
	Body       map[string]string
}

type Service struct {
	stream Stream
	codec  codec.Codec
}

func NewService(stream Stream) *Service {
	return &Service{stream: stream, codec: codec.NewJSON()}
}

// Admit validates payload and writes it to the stream under its partition key.
func (s *Service) Admit(ctx context.Context, payload map[string]any) (transaction.Transaction, error) {
	tx, err := transaction.Validate(payload)
	if err != nil {
		return transaction.Transaction{}, err
	}
	data, err := s.codec.Encode(tx.Payload)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("encode transaction %s: %w", tx.ID, err)
	}
	key := transaction.PartitionKey(tx)
	if err := s.stream.Put(ctx, key, data); err != nil {
		return transaction.Transaction{}, fmt.Errorf("put transaction %s: %w", tx.ID, err)
	}
	return tx, nil
}

// Ingest handles a raw request body. An empty body is treated as an empty
// object, so it is rejected for its first missing field.
func (s *Service) Ingest(ctx context.Context, body []byte) Response {
	payload, err := s.decode(body)
	if err != nil {
		metrics.TransactionsIngested.WithLabelValues("rejected").Inc()
		return errorResponse(http.StatusBadRequest, err)
	}

	tx, err := s.Admit(ctx, payload)
	var verr *transaction.ValidationError
	switch {
	case errors.As(err, &verr):
		metrics.TransactionsIngested.WithLabelValues("rejected").Inc()
		log.Printf("[Ingest] rejected: %v", verr)
		return errorResponse(http.StatusBadRequest, verr)
	case err != nil:
		metrics.TransactionsIngested.WithLabelValues("failed").Inc()
		log.Printf("[Ingest] failed: %v", err)
		return errorResponse(http.StatusInternalServerError, err)
	}

	metrics.TransactionsIngested.WithLabelValues("accepted").Inc()
	log.Printf("[Ingest] accepted tx=%s key=%s", tx.ID, transaction.PartitionKey(tx))
	return Response{StatusCode: http.StatusAccepted, Body: map[string]string{"status": "accepted"}}
}

func (s *Service) decode(body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}
	payload, err := s.codec.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return payload, nil
}

func errorResponse(status int, err error) Response {
	return Response{StatusCode: status, Body: map[string]string{"error": err.Error()}}
}
