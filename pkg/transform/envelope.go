package transform

import (
	"encoding/base64"
	"fmt"
)

// Envelope unwraps a record's payload before decoding and wraps the encoded
// result again.
type Envelope interface {
	Open(data []byte) ([]byte, error)
	Seal(data []byte) []byte
}

// Binary passes payloads through untouched (Kafka records).
type Binary struct{}

func (Binary) Open(data []byte) ([]byte, error) { return data, nil }
func (Binary) Seal(data []byte) []byte          { return data }

// Base64 carries payloads as standard base64 text (delivery-stream records).
type Base64 struct{}

func (Base64) Open(data []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(out, data)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	return out[:n], nil
}

func (Base64) Seal(data []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(out, data)
	return out
}
