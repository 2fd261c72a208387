package hrsync_test

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"hrsync/internal/hrsync"
	"hrsync/internal/testutil"
)

func employee(num float64, dept string) hrsync.Record {
	return hrsync.Record{"num": hrsync.Number(num), "dept": hrsync.String(dept)}
}

func keyed(key string, r hrsync.Record) hrsync.KeyedRecord {
	return hrsync.KeyedRecord{Key: key, Record: r}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		previous hrsync.Record
		current  hrsync.Record
		exists   bool
		want     hrsync.ChangeType
		fields   []string
	}{
		{
			name:    "absent record is an insert",
			current: employee(5, "HR"),
			want:    hrsync.ChangeInsert,
		},
		{
			name:     "identical record is unchanged",
			previous: employee(5, "HR"),
			current:  employee(5, "HR"),
			exists:   true,
			want:     hrsync.ChangeNoChange,
		},
		{
			name:     "changed field is an update",
			previous: employee(5, "HR"),
			current:  employee(5, "Finance"),
			exists:   true,
			want:     hrsync.ChangeUpdate,
			fields:   []string{"dept"},
		},
		{
			name:     "null on one side and absent on the other is unchanged",
			previous: hrsync.Record{"num": hrsync.Number(5)},
			current:  hrsync.Record{"num": hrsync.Number(5), "location": hrsync.Null()},
			exists:   true,
			want:     hrsync.ChangeNoChange,
		},
		{
			name:     "new populated column is an update",
			previous: hrsync.Record{"num": hrsync.Number(5)},
			current:  hrsync.Record{"num": hrsync.Number(5), "location": hrsync.String("Berlin")},
			exists:   true,
			want:     hrsync.ChangeUpdate,
			fields:   []string{"location"},
		},
		{
			name:     "dropped populated column is an update",
			previous: hrsync.Record{"num": hrsync.Number(5), "badge": hrsync.String("B-1")},
			current:  hrsync.Record{"num": hrsync.Number(5)},
			exists:   true,
			want:     hrsync.ChangeUpdate,
			fields:   []string{"badge"},
		},
		{
			name:     "stored string equals parsed number",
			previous: hrsync.Record{"num": hrsync.String("5")},
			current:  hrsync.Record{"num": hrsync.Number(5)},
			exists:   true,
			want:     hrsync.ChangeNoChange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := hrsync.Classify("5", tt.previous, tt.current, tt.exists)
			if d.ChangeType != tt.want {
				t.Fatalf("Classify() ChangeType = %s, want %s", d.ChangeType, tt.want)
			}
			if d.HashCurrent != hrsync.Hash(tt.current) {
				t.Errorf("Classify() HashCurrent = %s, want %s", d.HashCurrent, hrsync.Hash(tt.current))
			}
			if tt.want == hrsync.ChangeNoChange && d.HashPrevious != d.HashCurrent {
				t.Errorf("Classify() HashPrevious = %s, HashCurrent = %s, want equal for no_change", d.HashPrevious, d.HashCurrent)
			}
			if !tt.exists && d.HashPrevious != "" {
				t.Errorf("Classify() HashPrevious = %q for insert, want empty", d.HashPrevious)
			}
			var fields []string
			for _, fc := range d.FieldsChanged {
				fields = append(fields, fc.Field)
			}
			if !reflect.DeepEqual(fields, tt.fields) {
				t.Errorf("Classify() fields = %v, want %v", fields, tt.fields)
			}
		})
	}
}

func TestDiffEngine_DiffBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("classifies every record and keeps input order", func(t *testing.T) {
		existing := map[string]hrsync.Record{
			"1": employee(1, "HR"),
			"2": employee(2, "Sales"),
		}
		incoming := []hrsync.KeyedRecord{
			keyed("3", employee(3, "Ops")),
			keyed("2", employee(2, "Sales")),
			keyed("1", employee(1, "Legal")),
		}

		engine := hrsync.NewDiffEngine(nil)
		got, err := engine.DiffBatch(ctx, "employees", incoming, existing)
		if err != nil {
			t.Fatalf("DiffBatch() error = %v", err)
		}

		want := []hrsync.ChangeType{hrsync.ChangeInsert, hrsync.ChangeNoChange, hrsync.ChangeUpdate}
		if len(got.Diffs) != len(want) {
			t.Fatalf("DiffBatch() returned %d diffs, want %d", len(got.Diffs), len(want))
		}
		for i, d := range got.Diffs {
			if d.RecordKey != incoming[i].Key {
				t.Errorf("diff[%d].RecordKey = %s, want %s", i, d.RecordKey, incoming[i].Key)
			}
			if d.ChangeType != want[i] {
				t.Errorf("diff[%d].ChangeType = %s, want %s", i, d.ChangeType, want[i])
			}
		}
		wantSummary := hrsync.DiffCounts{Inserts: 1, Updates: 1, Unchanged: 1}
		if got.Summary != wantSummary {
			t.Errorf("DiffBatch() Summary = %+v, want %+v", got.Summary, wantSummary)
		}
		if got.Summary.Total() != len(incoming) {
			t.Errorf("Summary.Total() = %d, want %d", got.Summary.Total(), len(incoming))
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		db := testutil.NewTestDatabase(t, testutil.FixedClock())
		got, err := hrsync.NewDiffEngine(db).DiffBatch(ctx, "employees", nil, nil)
		if err != nil {
			t.Fatalf("DiffBatch() error = %v", err)
		}
		if len(got.Diffs) != 0 || got.Summary.Total() != 0 {
			t.Errorf("DiffBatch() = %+v, want empty", got)
		}
	})

	t.Run("store read failure is returned", func(t *testing.T) {
		db := testutil.NewFaultyDatabase(testutil.NewTestDatabase(t, testutil.FixedClock()))
		db.ReadErr = errors.New("connection reset")

		_, err := hrsync.NewDiffEngine(db).DiffBatch(ctx, "employees", []hrsync.KeyedRecord{keyed("1", employee(1, "HR"))}, nil)
		if !errors.Is(err, db.ReadErr) {
			t.Errorf("DiffBatch() error = %v, want %v", err, db.ReadErr)
		}
	})
}

// An update is reported until the store is brought up to date, after which
// the same incoming record is unchanged.
func TestDiffEngine_UpdateThenApply(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t, testutil.FixedClock())
	engine := hrsync.NewDiffEngine(db)

	_, err := db.Upsert(ctx, "employees", "seed", []hrsync.StoredRecord{{Key: "5", Fields: employee(5, "HR")}})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	baseline := hrsync.Hash(employee(5, "HR"))

	incoming := []hrsync.KeyedRecord{keyed("5", employee(5, "Finance"))}

	first, err := engine.DiffBatch(ctx, "employees", incoming, nil)
	if err != nil {
		t.Fatalf("DiffBatch() error = %v", err)
	}
	d := first.Diffs[0]
	if d.ChangeType != hrsync.ChangeUpdate {
		t.Fatalf("ChangeType = %s, want update", d.ChangeType)
	}
	if d.HashPrevious != baseline {
		t.Errorf("HashPrevious = %s, want %s", d.HashPrevious, baseline)
	}
	if len(d.FieldsChanged) != 1 {
		t.Fatalf("FieldsChanged = %+v, want one change", d.FieldsChanged)
	}
	fc := d.FieldsChanged[0]
	if fc.Field != "dept" || fc.OldValue.Canonical() != "HR" || fc.NewValue.Canonical() != "Finance" {
		t.Errorf("FieldsChanged[0] = {%s %s %s}, want {dept HR Finance}", fc.Field, fc.OldValue, fc.NewValue)
	}

	second, err := engine.DiffBatch(ctx, "employees", incoming, nil)
	if err != nil {
		t.Fatalf("DiffBatch() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("DiffBatch() is not repeatable: %+v vs %+v", first, second)
	}

	_, err = db.Upsert(ctx, "employees", "run-2", []hrsync.StoredRecord{{Key: "5", Fields: employee(5, "Finance")}})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	third, err := engine.DiffBatch(ctx, "employees", incoming, nil)
	if err != nil {
		t.Fatalf("DiffBatch() error = %v", err)
	}
	if third.Diffs[0].ChangeType != hrsync.ChangeNoChange {
		t.Errorf("ChangeType after apply = %s, want no_change", third.Diffs[0].ChangeType)
	}
}

func TestProperty_DiffBatchTotality(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	engine := hrsync.NewDiffEngine(nil)

	properties.Property("every incoming record gets exactly one classification", prop.ForAll(
		func(incomingNums, storedNums []int) bool {
			existing := make(map[string]hrsync.Record)
			for _, n := range storedNums {
				existing[strconv.Itoa(n)] = employee(float64(n), "HR")
			}
			incoming := make([]hrsync.KeyedRecord, 0, len(incomingNums))
			for _, n := range incomingNums {
				dept := "HR"
				if n%3 == 0 {
					dept = "Ops"
				}
				incoming = append(incoming, keyed(strconv.Itoa(n), employee(float64(n), dept)))
			}

			got, err := engine.DiffBatch(context.Background(), "employees", incoming, existing)
			if err != nil || len(got.Diffs) != len(incoming) || got.Summary.Total() != len(incoming) {
				return false
			}
			for i, d := range got.Diffs {
				_, stored := existing[incoming[i].Key]
				if stored == (d.ChangeType == hrsync.ChangeInsert) {
					return false
				}
				if d.HashCurrent != hrsync.Hash(incoming[i].Record) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(1, 40)),
		gen.SliceOf(gen.IntRange(1, 40)),
	))

	properties.TestingRun(t)
}
