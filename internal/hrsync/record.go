package hrsync

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// NullSentinel is the canonical representation of a missing or null value.
const NullSentinel = "NULL"

// isoLayout is the canonical date layout (UTC, millisecond precision).
const isoLayout = "2006-01-02T15:04:05.000Z"

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindDate
	KindObject
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindObject:
		return "object"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Value is a single scalar field value from one parsed row.
// The zero Value is Null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	t    time.Time
	obj  any
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Date returns a date/time value.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t} }

// Object returns a structured value that canonicalizes to deterministic JSON.
func Object(v any) Value {
	if v == nil {
		return Null()
	}
	return Value{kind: KindObject, obj: v}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// ValueOf converts a native Go value into a Value. It never fails: types with
// no dedicated variant keep their default text representation.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return String(t)
	case []byte:
		return String(string(t))
	case bool:
		return Bool(t)
	case int:
		return Number(float64(t))
	case int8:
		return Number(float64(t))
	case int16:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint8:
		return Number(float64(t))
	case uint16:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return Value{kind: KindText, str: t.String()}
	case time.Time:
		return Date(t)
	case *time.Time:
		if t == nil {
			return Null()
		}
		return Date(*t)
	case fmt.Stringer:
		return Value{kind: KindText, str: t.String()}
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null()
		}
		return ValueOf(rv.Elem().Interface())
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		if (rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice) && rv.IsNil() {
			return Null()
		}
		return Object(x)
	}
	return Value{kind: KindText, str: fmt.Sprint(x)}
}

// Canonical returns the stable string representation used for hashing and
// field-level comparison.
func (v Value) Canonical() string {
	switch v.kind {
	case KindNull:
		return NullSentinel
	case KindString, KindText:
		return strings.TrimSpace(validUTF8(v.str))
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.t.UTC().Format(isoLayout)
	case KindObject:
		data, err := json.Marshal(v.obj)
		if err != nil {
			return strings.TrimSpace(fmt.Sprint(v.obj))
		}
		return strings.TrimSpace(string(data))
	default:
		return NullSentinel
	}
}

// Interface returns the value as a JSON-friendly Go value. Dates become their
// canonical ISO-8601 string so a stored record canonicalizes identically after
// a round trip through the store.
func (v Value) Interface() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindString, KindText:
		return v.str
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return formatNumber(v.num)
		}
		return v.num
	case KindBool:
		return v.b
	case KindDate:
		return v.t.UTC().Format(isoLayout)
	case KindObject:
		return v.obj
	default:
		return nil
	}
}

// String implements fmt.Stringer using the canonical form.
func (v Value) String() string { return v.Canonical() }

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Record is one parsed row: field name to value.
type Record map[string]Value

// RecordFromMap converts a map of native values into a Record.
func RecordFromMap(m map[string]any) Record {
	r := make(Record, len(m))
	for k, v := range m {
		r[k] = ValueOf(v)
	}
	return r
}

// Get returns the value for field, or Null when the field is absent.
func (r Record) Get(field string) Value {
	if v, ok := r[field]; ok {
		return v
	}
	return Null()
}

// Map returns the record as a map of JSON-friendly values.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r))
	for k, v := range r {
		m[k] = v.Interface()
	}
	return m
}

// MarshalJSON encodes the record as a flat JSON object.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// UnmarshalJSON decodes a flat JSON object. Numbers are kept as numbers,
// nested objects and arrays become Object values.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	out := make(Record, len(m))
	for k, v := range m {
		out[k] = ValueOf(v)
	}
	*r = out
	return nil
}

// MarshalJSON encodes the value as its JSON-friendly form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes any JSON value.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return err
	}
	*v = ValueOf(x)
	return nil
}

// validUTF8 replaces every invalid byte with U+FFFD, the way encoding/json
// does when the value is stored.
func validUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteString("\uFFFD")
		} else {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}
