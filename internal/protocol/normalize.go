package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DecodePayload turns one raw event argument into an untyped value. Numbers
// keep their literal form. A payload that is itself a JSON string is decoded a
// second time; when that fails the plain string is returned unchanged.
func DecodePayload(raw json.RawMessage) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	v, err := decodeJSON(raw)
	if err != nil {
		return string(raw)
	}

	if s, ok := v.(string); ok {
		if inner, err := decodeJSON([]byte(s)); err == nil {
			if _, nested := inner.(string); !nested {
				return inner
			}
		}
	}
	return v
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after json value")
	}
	return v, nil
}

// Text coerces a field that should be a string into something displayable.
func Text(v any, placeholder string) string {
	switch t := v.(type) {
	case nil:
		return placeholder
	case string:
		if t == "" {
			return placeholder
		}
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case map[string]any, []any:
		return Pretty(t)
	default:
		return fmt.Sprint(t)
	}
}

// Pretty renders v as indented JSON, falling back to fmt formatting.
func Pretty(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// Field returns obj[key] when v is a JSON object.
func Field(v any, key string) (any, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	val, ok := obj[key]
	return val, ok
}

// Present reports whether a field carries a usable value: not absent, not
// null, not false, not zero and not an empty string.
func Present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number, float64, int:
		n, ok := Number(t)
		return !ok || (n != 0 && !math.IsNaN(n))
	default:
		return true
	}
}

func Number(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
