// Package codec turns transaction records into bytes and back. JSON is the
// wire format of the ingest stream; enriched records may instead be written
// as Confluent-framed Avro.
package codec

import "errors"

var (
	ErrNotUTF8     = errors.New("payload is not valid UTF-8")
	ErrNotAnObject = errors.New("payload is not a JSON object")
)

// Codec encodes and decodes one record.
type Codec interface {
	Name() string
	Encode(record map[string]any) ([]byte, error)
	Decode(data []byte) (map[string]any, error)
}
