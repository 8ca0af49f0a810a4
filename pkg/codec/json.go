package codec

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

// API is the JSON configuration shared across the module. Numbers decode as
// json.Number so amounts round-trip without losing their original text.
var API = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// JSON is the JSON codec. With Lines set, every encoded record is
// terminated by a newline so that concatenated output stays line-delimited.
type JSON struct {
	Lines bool
}

func NewJSON() *JSON      { return &JSON{} }
func NewJSONLines() *JSON { return &JSON{Lines: true} }

func (j *JSON) Name() string { return "json" }

func (j *JSON) Encode(record map[string]any) ([]byte, error) {
	data, err := API.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("json marshal failed: %w", err)
	}
	if j.Lines {
		data = append(data, '\n')
	}
	return data, nil
}

func (j *JSON) Decode(data []byte) (map[string]any, error) {
	if !utf8.Valid(data) {
		return nil, ErrNotUTF8
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotAnObject
	}
	var out map[string]any
	if err := API.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}
	return out, nil
}
