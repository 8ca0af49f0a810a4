package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/hamba/avro/v2"
	"github.com/riferrei/srclient"
	"golang.org/x/sync/singleflight"
)

const (
	wireHeaderSize = 5 // magic byte + 4-byte schema id
	wireMagicByte  = 0
)

// EnrichedSchema is the Avro schema of an enriched transaction. Features are
// free-form so they travel as JSON text.
const EnrichedSchema = `{
  "type": "record",
  "name": "EnrichedTransaction",
  "namespace": "fraudflow",
  "fields": [
    {"name": "transaction_id", "type": "string"},
    {"name": "timestamp", "type": "string"},
    {"name": "amount", "type": "double"},
    {"name": "currency", "type": "string"},
    {"name": "country", "type": ["null", "string"], "default": null},
    {"name": "merchant", "type": ["null", "string"], "default": null},
    {"name": "card_last4", "type": ["null", "string"], "default": null},
    {"name": "features", "type": ["null", "string"], "default": null},
    {"name": "ingest_ts", "type": "string"},
    {"name": "is_high_risk", "type": "boolean"}
  ]
}`

var (
	requiredStrings = []string{"transaction_id", "timestamp", "currency", "ingest_ts"}
	optionalStrings = []string{"country", "merchant", "card_last4"}

	errBadWireFormat = errors.New("invalid wire format: missing magic byte or too short")
)

// Registry is the part of the schema registry client the codec needs.
type Registry interface {
	GetSchema(schemaID int) (*srclient.Schema, error)
	GetLatestSchema(subject string) (*srclient.Schema, error)
	CreateSchema(subject string, schema string, schemaType srclient.SchemaType, references ...srclient.Reference) (*srclient.Schema, error)
}

// Avro encodes enriched transactions in the Confluent wire format: a zero
// magic byte, the big-endian schema id, then the Avro body.
type Avro struct {
	registry Registry
	subject  string
	schemaID int
	schema   avro.Schema

	byID  sync.Map // int -> avro.Schema
	group singleflight.Group
}

// NewAvro makes sure EnrichedSchema is registered under subject and returns
// a codec bound to it.
func NewAvro(registry Registry, subject string) (*Avro, error) {
	schema, err := avro.Parse(EnrichedSchema)
	if err != nil {
		return nil, fmt.Errorf("parse enriched schema: %w", err)
	}
	meta, err := registerIfMissing(registry, subject, schema)
	if err != nil {
		return nil, err
	}
	a := &Avro{registry: registry, subject: subject, schemaID: meta.ID(), schema: schema}
	a.byID.Store(meta.ID(), schema)
	return a, nil
}

// registerIfMissing reuses the latest registered version when it has the
// same fingerprint and registers a new version otherwise.
func registerIfMissing(registry Registry, subject string, schema avro.Schema) (*srclient.Schema, error) {
	latest, err := registry.GetLatestSchema(subject)
	if err == nil && latest != nil {
		existing, parseErr := avro.Parse(latest.Schema())
		if parseErr == nil && existing.Fingerprint() == schema.Fingerprint() {
			return latest, nil
		}
	}
	created, err := registry.CreateSchema(subject, schema.String(), srclient.Avro)
	if err != nil {
		return nil, fmt.Errorf("register schema %s: %w", subject, err)
	}
	return created, nil
}

func (a *Avro) Name() string { return "avro" }

// SchemaID is the registry id encoded into every message.
func (a *Avro) SchemaID() int { return a.schemaID }

func (a *Avro) Encode(record map[string]any) ([]byte, error) {
	native, err := toNative(record)
	if err != nil {
		return nil, err
	}
	body, err := avro.Marshal(a.schema, native)
	if err != nil {
		return nil, fmt.Errorf("avro marshal for %s: %w", a.subject, err)
	}
	if a.schemaID < 0 || a.schemaID > 0xFFFFFFFF {
		return nil, fmt.Errorf("schema ID %d out of uint32 range", a.schemaID)
	}
	out := make([]byte, wireHeaderSize+len(body))
	out[0] = wireMagicByte
	binary.BigEndian.PutUint32(out[1:wireHeaderSize], uint32(a.schemaID)) //nolint:gosec // range checked above
	copy(out[wireHeaderSize:], body)
	return out, nil
}

func (a *Avro) Decode(data []byte) (map[string]any, error) {
	if len(data) < wireHeaderSize || data[0] != wireMagicByte {
		return nil, errBadWireFormat
	}
	id := int(binary.BigEndian.Uint32(data[1:wireHeaderSize]))
	schema, err := a.schemaFor(id)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := avro.Unmarshal(schema, data[wireHeaderSize:], &raw); err != nil {
		return nil, fmt.Errorf("avro unmarshal for ID %d: %w", id, err)
	}
	return fromNative(raw)
}

// schemaFor fetches and caches writer schemas by id.
func (a *Avro) schemaFor(id int) (avro.Schema, error) {
	if v, ok := a.byID.Load(id); ok {
		return v.(avro.Schema), nil
	}
	v, err, _ := a.group.Do(fmt.Sprintf("id:%d", id), func() (any, error) {
		meta, err := a.registry.GetSchema(id)
		if err != nil {
			return nil, fmt.Errorf("fetch schema ID %d: %w", id, err)
		}
		schema, err := avro.Parse(meta.Schema())
		if err != nil {
			return nil, fmt.Errorf("parse schema ID %d: %w", id, err)
		}
		a.byID.Store(id, schema)
		return schema, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(avro.Schema), nil
}

// toNative maps a decoded JSON record onto the Avro schema's Go types.
func toNative(record map[string]any) (map[string]any, error) {
	native := make(map[string]any, 10)
	for _, f := range requiredStrings {
		s, ok := record[f].(string)
		if !ok {
			return nil, fmt.Errorf("avro: field %s must be a string", f)
		}
		native[f] = s
	}
	for _, f := range optionalStrings {
		if s, ok := record[f].(string); ok {
			native[f] = s
		} else {
			native[f] = nil
		}
	}

	amount, ok := number(record["amount"])
	if !ok {
		return nil, errors.New("avro: field amount must be a number")
	}
	native["amount"] = amount

	flag, ok := record["is_high_risk"].(bool)
	if !ok {
		return nil, errors.New("avro: field is_high_risk must be a boolean")
	}
	native["is_high_risk"] = flag

	native["features"] = nil
	if v, ok := record["features"]; ok && v != nil {
		features, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("avro: field features must be an object, got %T", v)
		}
		text, err := API.MarshalToString(features)
		if err != nil {
			return nil, fmt.Errorf("avro: encode features: %w", err)
		}
		native["features"] = text
	}
	return native, nil
}

// fromNative reverses toNative. Union values may arrive either bare or
// wrapped as {"type": value} depending on the decoder configuration. Features
// text that is not a JSON object is kept as text.
func fromNative(raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		v = unwrapUnion(v)
		if v == nil {
			continue
		}
		out[k] = v
	}
	if text, ok := out["features"].(string); ok {
		var features map[string]any
		if err := API.UnmarshalFromString(text, &features); err == nil && features != nil {
			out["features"] = features
		}
	}
	return out, nil
}

// unionBranches are the branch names a wrapped union value can carry.
var unionBranches = map[string]bool{"null": true, "string": true, "double": true, "boolean": true}

func unwrapUnion(v any) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}
	for branch, inner := range m {
		if unionBranches[branch] {
			return inner
		}
	}
	return v
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case interface{ Float64() (float64, error) }:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
