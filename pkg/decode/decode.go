// Package decode turns untrusted model completions into structured values.
//
// Decoding is two-tier: a strict JSON decode first, then a permissive
// literal decoder that accepts the near-JSON models tend to produce (single
// quotes, True/False/None, tuples, trailing commas, bare keys). Objects come
// back as ordered maps so key order survives into validation and output.
package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/sieve/pkg/domain"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Mapping is the decoded form of an object.
type Mapping = *orderedmap.OrderedMap[string, any]

// NewMapping returns an empty Mapping.
func NewMapping() Mapping {
	return orderedmap.New[string, any]()
}

// Response cleans a completion and decodes it. The error wraps
// domain.ErrMalformedResponse when both tiers fail.
func Response(text string) (any, error) {
	content := Clean(text)
	v, strictErr := Strict(content)
	if strictErr == nil {
		return v, nil
	}
	v, lenientErr := Lenient(content)
	if lenientErr == nil {
		return v, nil
	}
	return nil, fmt.Errorf("%w: strict: %v; lenient: %v", domain.ErrMalformedResponse, strictErr, lenientErr)
}

// Clean strips markdown code fences and surrounding whitespace.
func Clean(text string) string {
	s := strings.ReplaceAll(text, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// AsMapping reports whether v is an object. Plain maps (as produced by
// encoding/json) are converted, with keys in sorted order.
func AsMapping(v any) (Mapping, bool) {
	switch m := v.(type) {
	case Mapping:
		return m, m != nil
	case map[string]any:
		out := NewMapping()
		for _, k := range sortedKeys(m) {
			out.Set(k, m[k])
		}
		return out, true
	}
	return nil, false
}

// Keys returns the keys of m in insertion order.
func Keys(m Mapping) []string {
	keys := make([]string, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// KindOf names the JSON type of a decoded value.
func KindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case Mapping, map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, int:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

// ToPlain converts ordered maps into map[string]any recursively, the shape
// encoding/json and schema validators expect.
func ToPlain(v any) any {
	switch t := v.(type) {
	case Mapping:
		out := make(map[string]any, t.Len())
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			out[pair.Key] = ToPlain(pair.Value)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = ToPlain(e)
		}
		return out
	}
	return v
}

// Marshal encodes v as JSON, keeping mapping key order.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// MarshalIndent encodes v as indented JSON, keeping mapping key order.
func MarshalIndent(v any, indent string) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", indent); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
