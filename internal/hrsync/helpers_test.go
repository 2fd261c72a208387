package hrsync_test

import (
	"context"
	"testing"

	"hrsync/internal/hrsync"
)

// seedRun inserts a finished import log with one file version so rows that
// reference them can be written. The file version ID is "fv-" + id.
func seedRun(t *testing.T, db hrsync.Database, id string) {
	t.Helper()
	ctx := context.Background()

	log := hrsync.NewImportLog(id, hrsync.TriggerManual, t0)
	if err := db.BeginImportLog(ctx, log); err != nil {
		t.Fatalf("BeginImportLog(%s) error = %v", id, err)
	}
	if err := log.Fail(hrsync.StepBegin, "seeded", t0); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	if err := db.SaveImportLog(ctx, log, hrsync.StatusPending); err != nil {
		t.Fatalf("SaveImportLog(%s) error = %v", id, err)
	}
	fv := &hrsync.FileVersion{
		ID:          "fv-" + id,
		ImportLogID: id,
		SourceName:  "roster.csv",
		Table:       "employees",
		Filename:    "roster.csv",
		Checksum:    "00",
		ModifiedAt:  t0,
		CreatedAt:   t0,
	}
	if err := db.CreateFileVersion(ctx, fv); err != nil {
		t.Fatalf("CreateFileVersion(%s) error = %v", id, err)
	}
}
