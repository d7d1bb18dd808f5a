package capability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Payload is a decoded JSON object of operation parameters or results.
type Payload map[string]any

// ParsePayload decodes text that must hold a JSON object. A JSON null decodes to an
// empty payload. Blank text, other JSON values and malformed input are errors.
func ParsePayload(text string) (Payload, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, NewError(CodeEmptyPayload, "payload text is empty")
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, NewError(CodeInvalidPayload, fmt.Sprintf("payload is not valid JSON: %v", err))
	}
	if dec.More() {
		return nil, NewError(CodeInvalidPayload, "payload has trailing data after the JSON object")
	}
	switch obj := v.(type) {
	case nil:
		return Payload{}, nil
	case map[string]any:
		return Payload(obj), nil
	default:
		return nil, NewError(CodeInvalidPayload, fmt.Sprintf("payload is a JSON %T, not an object", v))
	}
}

// Encode converts an SDK output struct (or any JSON-marshalable value) to a Payload.
// The ResultMetadata field carried by AWS SDK outputs is dropped.
func Encode(v any) (Payload, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	if p == nil {
		p = Payload{}
	}
	delete(p, "ResultMetadata")
	return p, nil
}

// Decode fills an SDK input struct from p. Unknown parameters are rejected the way the
// remote API rejects them, so a malformed request reaches the repair path.
func (p Payload) Decode(v any) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return NewError(CodeInvalidPayload, fmt.Sprintf("parameter validation failed: %v", err))
	}
	return nil
}

// Clone returns a deep copy of p.
func (p Payload) Clone() Payload {
	if p == nil {
		return Payload{}
	}
	out, _ := cloneValue(map[string]any(p)).(map[string]any)
	return Payload(out)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case Payload:
		return cloneValue(map[string]any(t))
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}

// Lookup walks a dot-separated path through nested objects.
func (p Payload) Lookup(path string) (any, bool) {
	var cur any = map[string]any(p)
	for _, part := range strings.Split(path, ".") {
		var m map[string]any
		switch t := cur.(type) {
		case map[string]any:
			m = t
		case Payload:
			m = t
		default:
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Has reports whether path holds a non-empty value.
func (p Payload) Has(path string) bool {
	v, ok := p.Lookup(path)
	return ok && !isEmpty(v)
}

// String returns the value at path formatted as text, or "" when absent.
func (p Payload) String(path string) string {
	v, ok := p.Lookup(path)
	if !ok || v == nil {
		return ""
	}
	return FormatValue(v)
}

// FirstString returns the value of the first path holding a non-empty value.
func (p Payload) FirstString(paths ...string) string {
	for _, path := range paths {
		if p.Has(path) {
			return p.String(path)
		}
	}
	return ""
}

// FirstStrings is Strings for the first path holding a non-empty value.
func (p Payload) FirstStrings(paths ...string) []string {
	for _, path := range paths {
		if p.Has(path) {
			return p.Strings(path)
		}
	}
	return nil
}

// Object returns the nested object at path, or nil.
func (p Payload) Object(path string) Payload {
	v, ok := p.Lookup(path)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case map[string]any:
		return Payload(t)
	case Payload:
		return t
	}
	return nil
}

// List returns the array at path, or nil.
func (p Payload) List(path string) []any {
	v, ok := p.Lookup(path)
	if !ok {
		return nil
	}
	s, _ := v.([]any)
	return s
}

// Strings returns the values at path as strings. A comma-separated string is split;
// an array is flattened element by element. Blank entries are dropped.
func (p Payload) Strings(path string) []string {
	v, ok := p.Lookup(path)
	if !ok || v == nil {
		return nil
	}
	var raw []string
	switch t := v.(type) {
	case string:
		raw = strings.Split(t, ",")
	case []any:
		for _, e := range t {
			raw = append(raw, FormatValue(e))
		}
	default:
		raw = []string{FormatValue(v)}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// JSON returns the compact JSON form of p.
func (p Payload) JSON() string {
	if p == nil {
		return "{}"
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// FormatValue renders a JSON value as text. Strings are returned as-is.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool, float64, float32, int, int32, int64:
		return fmt.Sprint(t)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case Payload:
		return len(t) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}
