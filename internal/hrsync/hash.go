package hrsync

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// CanonicalField is one (field, canonical value) pair of a canonical form.
type CanonicalField struct {
	Field string
	Value string
}

// CanonicalForm is a record with fields sorted by name and every value
// reduced to its canonical string.
type CanonicalForm []CanonicalField

// Canonicalize returns the canonical form of r. It depends only on the
// record's field names and values, never on map iteration order. Fields
// whose canonical value is NULL are left out, so a null field and an absent
// one hash alike.
func Canonicalize(r Record) CanonicalForm {
	fields := make([]string, 0, len(r))
	for k := range r {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	form := make(CanonicalForm, 0, len(fields))
	for _, f := range fields {
		v := r[f].Canonical()
		if v == NullSentinel {
			continue
		}
		form = append(form, CanonicalField{Field: f, Value: v})
	}
	return form
}

// MarshalJSON serializes the canonical form as a JSON object whose keys
// appear in sorted order.
func (c CanonicalForm) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Field)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Lookup returns a field-to-canonical-value map.
func (c CanonicalForm) Lookup() map[string]string {
	m := make(map[string]string, len(c))
	for _, f := range c {
		m[f.Field] = f.Value
	}
	return m
}

// Hash returns the lowercase hex SHA-256 of the serialized canonical form.
func Hash(r Record) string {
	return hashCanonical(Canonicalize(r))
}

func hashCanonical(c CanonicalForm) string {
	// MarshalJSON on a slice of strings cannot fail.
	data, _ := c.MarshalJSON()
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RecordKey builds the business key of r from keyFields. It returns false
// when any key field is missing, null, or blank.
func RecordKey(r Record, keyFields []string) (string, bool) {
	parts := make([]string, len(keyFields))
	for i, f := range keyFields {
		v := r.Get(f)
		c := v.Canonical()
		if v.IsNull() || c == "" {
			return "", false
		}
		parts[i] = c
	}
	return strings.Join(parts, "|"), true
}
