package hrsync

import (
	"context"
	"fmt"
	"sort"
)

// ChangeType classifies an incoming record against the store.
type ChangeType string

const (
	ChangeInsert   ChangeType = "insert"
	ChangeUpdate   ChangeType = "update"
	ChangeNoChange ChangeType = "no_change"
)

// FieldChange is one changed field of an updated record.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue Value  `json:"oldValue"`
	NewValue Value  `json:"newValue"`
}

// RecordDiff is the classified delta of one incoming record.
type RecordDiff struct {
	RecordKey     string
	ChangeType    ChangeType
	HashPrevious  string // empty for inserts
	HashCurrent   string
	FieldsChanged []FieldChange
}

// Significant reports whether the diff carries audit value.
func (d RecordDiff) Significant() bool {
	return d.ChangeType == ChangeInsert || d.ChangeType == ChangeUpdate
}

// DiffCounts tallies diffs by change type.
type DiffCounts struct {
	Inserts   int `json:"inserts"`
	Updates   int `json:"updates"`
	Unchanged int `json:"unchanged"`
}

// Total returns the number of classified records.
func (c DiffCounts) Total() int { return c.Inserts + c.Updates + c.Unchanged }

func (c *DiffCounts) add(t ChangeType) {
	switch t {
	case ChangeInsert:
		c.Inserts++
	case ChangeUpdate:
		c.Updates++
	case ChangeNoChange:
		c.Unchanged++
	}
}

// KeyedRecord pairs an incoming record with its business key.
type KeyedRecord struct {
	Key    string
	Record Record
}

// BatchDiff is the output of DiffBatch.
type BatchDiff struct {
	Diffs   []RecordDiff
	Summary DiffCounts
}

// DiffEngine classifies incoming records against the record store.
type DiffEngine struct {
	store RecordStore
}

// NewDiffEngine creates a diff engine reading existing rows from store.
func NewDiffEngine(store RecordStore) *DiffEngine {
	return &DiffEngine{store: store}
}

// DiffBatch classifies every incoming record as insert, update or no_change.
// When existing is nil, the stored rows for exactly the incoming keys are
// fetched from the store. Output order matches incoming.
func (e *DiffEngine) DiffBatch(ctx context.Context, table string, incoming []KeyedRecord, existing map[string]Record) (*BatchDiff, error) {
	if existing == nil {
		var err error
		existing, err = e.fetchExisting(ctx, table, incoming)
		if err != nil {
			return nil, err
		}
	}

	out := &BatchDiff{Diffs: make([]RecordDiff, 0, len(incoming))}
	for _, in := range incoming {
		prev, exists := existing[in.Key]
		d := Classify(in.Key, prev, in.Record, exists)
		out.Diffs = append(out.Diffs, d)
		out.Summary.add(d.ChangeType)
	}
	return out, nil
}

func (e *DiffEngine) fetchExisting(ctx context.Context, table string, incoming []KeyedRecord) (map[string]Record, error) {
	keys := make([]string, 0, len(incoming))
	seen := make(map[string]bool, len(incoming))
	for _, in := range incoming {
		if !seen[in.Key] {
			seen[in.Key] = true
			keys = append(keys, in.Key)
		}
	}
	existing := make(map[string]Record, len(keys))
	if len(keys) == 0 {
		return existing, nil
	}
	rows, err := e.store.ReadByKeys(ctx, table, keys)
	if err != nil {
		return nil, fmt.Errorf("reading existing %s records: %w", table, err)
	}
	for _, r := range rows {
		existing[r.Key] = r.Fields
	}
	return existing, nil
}

// Classify classifies one incoming record against its stored counterpart.
// exists is false when no record is stored under key.
func Classify(key string, previous, current Record, exists bool) RecordDiff {
	currForm := Canonicalize(current)
	d := RecordDiff{
		RecordKey:   key,
		HashCurrent: hashCanonical(currForm),
	}
	if !exists {
		d.ChangeType = ChangeInsert
		return d
	}

	prevForm := Canonicalize(previous)
	d.HashPrevious = hashCanonical(prevForm)
	if d.HashPrevious == d.HashCurrent {
		d.ChangeType = ChangeNoChange
		return d
	}

	d.FieldsChanged = fieldChanges(previous, current, prevForm.Lookup(), currForm.Lookup())
	d.ChangeType = ChangeUpdate
	return d
}

// fieldChanges compares canonical values over the union of both records'
// fields. A field missing on one side compares as NULL.
func fieldChanges(previous, current Record, prev, curr map[string]string) []FieldChange {
	fields := make([]string, 0, len(prev)+len(curr))
	for f := range prev {
		fields = append(fields, f)
	}
	for f := range curr {
		if _, ok := prev[f]; !ok {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)

	var changes []FieldChange
	for _, f := range fields {
		if canonicalOrNull(prev, f) == canonicalOrNull(curr, f) {
			continue
		}
		changes = append(changes, FieldChange{
			Field:    f,
			OldValue: previous.Get(f),
			NewValue: current.Get(f),
		})
	}
	return changes
}

func canonicalOrNull(m map[string]string, f string) string {
	if v, ok := m[f]; ok {
		return v
	}
	return NullSentinel
}
