package hrsync_test

import (
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"hrsync/internal/hrsync"
)

func recordOf(m map[string]string) hrsync.Record {
	r := make(hrsync.Record, len(m))
	for k, v := range m {
		r[k] = hrsync.String(v)
	}
	return r
}

// rebuilt copies r inserting fields in reverse name order.
func rebuilt(r hrsync.Record) hrsync.Record {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	out := make(hrsync.Record, len(r))
	for _, k := range keys {
		out[k] = r[k]
	}
	return out
}

func TestProperty_HashStability(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("hash ignores field insertion order", prop.ForAll(
		func(m map[string]string) bool {
			r := recordOf(m)
			return hrsync.Hash(r) == hrsync.Hash(rebuilt(r))
		},
		gen.MapOf(gen.Identifier(), gen.AlphaString()),
	))

	properties.Property("hash is deterministic across calls", prop.ForAll(
		func(m map[string]string) bool {
			r := recordOf(m)
			return hrsync.Hash(r) == hrsync.Hash(r)
		},
		gen.MapOf(gen.Identifier(), gen.AlphaString()),
	))

	properties.Property("changing one field changes the hash", prop.ForAll(
		func(m map[string]string, suffix string) bool {
			if len(m) == 0 {
				return true
			}
			r := recordOf(m)
			mutated := rebuilt(r)
			for k, v := range m {
				mutated[k] = hrsync.String(v + "x" + suffix)
				break
			}
			return hrsync.Hash(r) != hrsync.Hash(mutated)
		},
		gen.MapOf(gen.Identifier(), gen.AlphaString()),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestHash(t *testing.T) {
	base := hrsync.Record{
		"num":   hrsync.Number(5),
		"dept":  hrsync.String("HR"),
		"start": hrsync.Date(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)),
	}

	tests := []struct {
		name  string
		other hrsync.Record
		equal bool
	}{
		{
			name: "surrounding whitespace is ignored",
			other: hrsync.Record{
				"num":   hrsync.Number(5),
				"dept":  hrsync.String("  HR "),
				"start": hrsync.Date(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)),
			},
			equal: true,
		},
		{
			name: "date in another zone at the same instant",
			other: hrsync.Record{
				"num":   hrsync.Number(5),
				"dept":  hrsync.String("HR"),
				"start": hrsync.Date(time.Date(2021, 6, 1, 2, 0, 0, 0, time.FixedZone("CEST", 2*3600))),
			},
			equal: true,
		},
		{
			name: "date stored as its ISO string",
			other: hrsync.Record{
				"num":   hrsync.Number(5),
				"dept":  hrsync.String("HR"),
				"start": hrsync.String("2021-06-01T00:00:00.000Z"),
			},
			equal: true,
		},
		{
			name: "department changed",
			other: hrsync.Record{
				"num":   hrsync.Number(5),
				"dept":  hrsync.String("Finance"),
				"start": hrsync.Date(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)),
			},
			equal: false,
		},
		{
			name: "case is significant",
			other: hrsync.Record{
				"num":   hrsync.Number(5),
				"dept":  hrsync.String("hr"),
				"start": hrsync.Date(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)),
			},
			equal: false,
		},
		{
			name: "null field and absent field",
			other: hrsync.Record{
				"num":      hrsync.Number(5),
				"dept":     hrsync.String("HR"),
				"start":    hrsync.Date(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)),
				"location": hrsync.Null(),
			},
			equal: true,
		},
		{
			name: "number changed",
			other: hrsync.Record{
				"num":   hrsync.Number(6),
				"dept":  hrsync.String("HR"),
				"start": hrsync.Date(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)),
			},
			equal: false,
		},
	}

	want := hrsync.Hash(base)
	if len(want) != 64 {
		t.Fatalf("Hash() length = %d, want 64", len(want))
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hrsync.Hash(tt.other)
			if (got == want) != tt.equal {
				t.Errorf("Hash() equal = %v, want %v", got == want, tt.equal)
			}
		})
	}
}

func TestValue_Canonical(t *testing.T) {
	tests := []struct {
		name  string
		value hrsync.Value
		want  string
	}{
		{"null", hrsync.Null(), "NULL"},
		{"string trimmed", hrsync.String("  Jane Doe\t"), "Jane Doe"},
		{"invalid utf-8 byte", hrsync.String("Caf\xe9"), "Caf\uFFFD"},
		{"invalid utf-8 run", hrsync.String("a\xff\xfeb"), "a\uFFFD\uFFFDb"},
		{"integer number", hrsync.Number(42), "42"},
		{"fractional number", hrsync.Number(7.25), "7.25"},
		{"bool", hrsync.Bool(true), "true"},
		{"date", hrsync.Date(time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)), "2024-03-04T09:30:00.000Z"},
		{"int via ValueOf", hrsync.ValueOf(int64(5)), "5"},
		{"nil via ValueOf", hrsync.ValueOf(nil), "NULL"},
		{"nil pointer via ValueOf", hrsync.ValueOf((*time.Time)(nil)), "NULL"},
		{"object", hrsync.Object(map[string]int{"b": 2, "a": 1}), `{"a":1,"b":2}`},
		{"unsupported type", hrsync.ValueOf(complex(1, 2)), "(1+2i)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.Canonical(); got != tt.want {
				t.Errorf("Canonical() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCanonicalize(t *testing.T) {
	r := hrsync.Record{"b": hrsync.Number(2), "a": hrsync.String("x"), "c": hrsync.Null()}

	data, err := hrsync.Canonicalize(r).MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	want := `{"a":"x","b":"2"}`
	if string(data) != want {
		t.Errorf("Canonicalize() = %s, want %s", data, want)
	}
}

func TestHash_InvalidUTF8MatchesStoredForm(t *testing.T) {
	incoming := hrsync.Record{"num": hrsync.Number(1), "name": hrsync.String("Caf\xe9")}

	data, err := incoming.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	var stored hrsync.Record
	if err := stored.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}

	if got, want := hrsync.Hash(stored), hrsync.Hash(incoming); got != want {
		t.Errorf("Hash(stored) = %s, want %s", got, want)
	}
}

func TestRecordKey(t *testing.T) {
	tests := []struct {
		name   string
		record hrsync.Record
		fields []string
		want   string
		ok     bool
	}{
		{
			name:   "single field",
			record: hrsync.Record{"num": hrsync.Number(5)},
			fields: []string{"num"},
			want:   "5",
			ok:     true,
		},
		{
			name:   "composite key",
			record: hrsync.Record{"num": hrsync.String("E7"), "date": hrsync.String(" 2024-03-01 ")},
			fields: []string{"num", "date"},
			want:   "E7|2024-03-01",
			ok:     true,
		},
		{
			name:   "missing field",
			record: hrsync.Record{"num": hrsync.Number(5)},
			fields: []string{"num", "date"},
		},
		{
			name:   "null field",
			record: hrsync.Record{"num": hrsync.Null()},
			fields: []string{"num"},
		},
		{
			name:   "blank field",
			record: hrsync.Record{"num": hrsync.String("   ")},
			fields: []string{"num"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := hrsync.RecordKey(tt.record, tt.fields)
			if ok != tt.ok || got != tt.want {
				t.Errorf("RecordKey() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRecord_JSONRoundTripKeepsHash(t *testing.T) {
	r := hrsync.Record{
		"num":    hrsync.Number(5),
		"name":   hrsync.String("Jane"),
		"active": hrsync.Bool(true),
		"hired":  hrsync.Date(time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)),
		"note":   hrsync.Null(),
	}
	data, err := r.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	var back hrsync.Record
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if hrsync.Hash(back) != hrsync.Hash(r) {
		t.Errorf("Hash() after round trip differs: %s", data)
	}
}
