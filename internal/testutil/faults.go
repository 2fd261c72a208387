package testutil

import (
	"context"
	"sync"

	"hrsync/internal/hrsync"
)

// FaultyDatabase wraps a Database and fails selected calls.
type FaultyDatabase struct {
	hrsync.Database

	mu sync.Mutex
	// UpsertErr is returned by the Upsert calls whose 1-based index is in
	// FailUpserts.
	UpsertErr   error
	FailUpserts map[int]bool
	upserts     int
	// ReadErr, when set, is returned by every ReadByKeys call.
	ReadErr error
	// InsertDiffsErr is returned by the InsertDiffs calls whose 1-based
	// index is in FailInsertDiffs.
	InsertDiffsErr  error
	FailInsertDiffs map[int]bool
	insertDiffs     int

	// Upserted counts records written per table.
	Upserted map[string]int
}

// NewFaultyDatabase wraps db without injecting any fault.
func NewFaultyDatabase(db hrsync.Database) *FaultyDatabase {
	return &FaultyDatabase{
		Database:        db,
		FailUpserts:     map[int]bool{},
		FailInsertDiffs: map[int]bool{},
		Upserted:        map[string]int{},
	}
}

func (f *FaultyDatabase) Upsert(ctx context.Context, table, importLogID string, records []hrsync.StoredRecord) (int, error) {
	f.mu.Lock()
	f.upserts++
	fail := f.FailUpserts[f.upserts]
	f.mu.Unlock()
	if fail {
		return 0, f.UpsertErr
	}
	n, err := f.Database.Upsert(ctx, table, importLogID, records)
	f.mu.Lock()
	f.Upserted[table] += n
	f.mu.Unlock()
	return n, err
}

func (f *FaultyDatabase) ReadByKeys(ctx context.Context, table string, keys []string) ([]hrsync.StoredRecord, error) {
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	return f.Database.ReadByKeys(ctx, table, keys)
}

func (f *FaultyDatabase) InsertDiffs(ctx context.Context, rows []*hrsync.DiffRecord) error {
	f.mu.Lock()
	f.insertDiffs++
	fail := f.FailInsertDiffs[f.insertDiffs]
	f.mu.Unlock()
	if fail {
		return f.InsertDiffsErr
	}
	return f.Database.InsertDiffs(ctx, rows)
}

// UpsertCalls returns the number of Upsert calls so far.
func (f *FaultyDatabase) UpsertCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}
