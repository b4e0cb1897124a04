package protocol

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{"object", `{"answer":"hi"}`, map[string]any{"answer": "hi"}},
		{"serialized object", `"{\"answer\":\"hi\"}"`, map[string]any{"answer": "hi"}},
		{"plain string", `"just text"`, "just text"},
		{"number keeps literal", `{"n":1.50}`, map[string]any{"n": json.Number("1.50")}},
		{"empty", ``, nil},
		{"invalid json", `{broken`, "{broken"},
		{"null", `null`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodePayload(json.RawMessage(tt.raw))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodePayload(%s) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name        string
		value       any
		placeholder string
		want        string
	}{
		{"string", "hello", "none", "hello"},
		{"empty string", "", "none", "none"},
		{"nil", nil, "unknown", "unknown"},
		{"number", json.Number("42"), "none", "42"},
		{"bool", true, "none", "true"},
		{"object", map[string]any{"a": "b"}, "none", "{\n  \"a\": \"b\"\n}"},
		{"array", []any{"x", json.Number("1")}, "none", "[\n  \"x\",\n  1\n]"},
		{"html not escaped", map[string]any{"t": "<b>"}, "none", "{\n  \"t\": \"<b>\"\n}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.value, tt.placeholder); got != tt.want {
				t.Errorf("Text(%#v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestPresent(t *testing.T) {
	if Present(nil) {
		t.Error("nil should not be present")
	}
	if Present("") {
		t.Error("empty string should not be present")
	}
	if !Present("x") {
		t.Error("non-empty string should be present")
	}
	if !Present(map[string]any{}) {
		t.Error("structured value should be present")
	}
	if Present(json.Number("0")) || Present(float64(0)) {
		t.Error("zero number should not be present")
	}
	if !Present(json.Number("2")) {
		t.Error("non-zero number should be present")
	}
	if Present(false) {
		t.Error("false should not be present")
	}
	if !Present(true) {
		t.Error("true should be present")
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		value any
		want  float64
		ok    bool
	}{
		{json.Number("0.876"), 0.876, true},
		{" 0.5 ", 0.5, true},
		{float64(2), 2, true},
		{"abc", 0, false},
		{map[string]any{}, 0, false},
		{nil, 0, false},
	}

	for _, tt := range tests {
		got, ok := Number(tt.value)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Number(%#v) = (%v, %v), want (%v, %v)", tt.value, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTextRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("pretty text of an object decodes back to the same content", prop.ForAll(
		func(fields map[string]string) bool {
			value := make(map[string]any, len(fields))
			for k, v := range fields {
				value[k] = v
			}

			var decoded map[string]any
			if err := json.Unmarshal([]byte(Text(value, PlaceholderNone)), &decoded); err != nil {
				return false
			}
			return reflect.DeepEqual(decoded, value)
		},
		gen.MapOf(gen.Identifier(), gen.AnyString()),
	))

	properties.Property("non-empty strings pass through unchanged", prop.ForAll(
		func(s string) bool {
			return Text(s, PlaceholderUnknown) == s
		},
		gen.AnyString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t)
}
