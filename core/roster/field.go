package roster

import (
	"fmt"
	"strconv"
	"strings"
)

// RawRecord is one upstream record, as decoded from JSON (numbers decoded as json.Number).
type RawRecord map[string]interface{}

type fieldKind uint8

const (
	fieldAbsent fieldKind = iota
	fieldPlain
	fieldNumber
	fieldBool
	fieldWrapped
)

// wrappedKeys is the priority order of the sub-fields of object-shaped values.
var wrappedKeys = []string{"value", "text", "name"}

// FieldValue is an upstream field value. Upstream delivers the same field either as a plain value
// or as an object like {"value": ..} / {"text": ..} / {"name": ..}: both shapes resolve here.
type FieldValue struct {
	kind    fieldKind
	text    string
	flag    bool
	wrapped map[string]string
}

// fieldValueOf is the only place inspecting the dynamic type of decoded JSON values.
func fieldValueOf(v interface{}) FieldValue {
	switch x := v.(type) {
	case nil:
		return FieldValue{}
	case string:
		return FieldValue{kind: fieldPlain, text: x}
	case bool:
		return FieldValue{kind: fieldBool, flag: x}
	case float64:
		return FieldValue{kind: fieldNumber, text: strconv.FormatFloat(x, 'f', -1, 64)}
	case int:
		return FieldValue{kind: fieldNumber, text: strconv.Itoa(x)}
	case int64:
		return FieldValue{kind: fieldNumber, text: strconv.FormatInt(x, 10)}
	case fmt.Stringer: // json.Number
		return FieldValue{kind: fieldNumber, text: x.String()}
	case map[string]interface{}:
		wrapped := make(map[string]string, len(wrappedKeys))
		for _, key := range wrappedKeys {
			sub := fieldValueOf(x[key])
			if sub.kind == fieldPlain || sub.kind == fieldNumber {
				wrapped[key] = sub.text
			}
		}
		return FieldValue{kind: fieldWrapped, wrapped: wrapped}
	default:
		return FieldValue{} // arrays & co. carry nothing we can use
	}
}

// Text resolves the value to a trimmed string: the plain value first, then the wrapped
// sub-fields in priority order, then `fallback`.
func (f FieldValue) Text(fallback string) string {
	switch f.kind {
	case fieldPlain, fieldNumber:
		if s := strings.TrimSpace(f.text); s != "" {
			return s
		}
	case fieldWrapped:
		for _, key := range wrappedKeys {
			if s := strings.TrimSpace(f.wrapped[key]); s != "" {
				return s
			}
		}
	}
	return fallback
}

// IsAbsent reports whether the field was missing or null.
func (f FieldValue) IsAbsent() bool { return f.kind == fieldAbsent }

// IsActive tolerates the upstream status typings: "active", "Active", 1, "1" and true are active.
func (f FieldValue) IsActive() bool {
	switch f.kind {
	case fieldBool:
		return f.flag
	case fieldPlain:
		return f.text == "active" || f.text == "Active" || f.text == "1"
	case fieldNumber:
		return f.text == "1"
	}
	return false
}

// Field returns the value of the first present key among `keys` (aliases of the same field).
func (r RawRecord) Field(keys ...string) FieldValue {
	for _, key := range keys {
		if fv := fieldValueOf(r[key]); !fv.IsAbsent() {
			return fv
		}
	}
	return FieldValue{}
}

// Text is a shortcut for r.Field(keys...).Text(fallback).
func (r RawRecord) Text(fallback string, keys ...string) string {
	return r.Field(keys...).Text(fallback)
}
