package hrsync

import (
	"context"
	"time"
)

// StoredRecord is a record with its business key as held in the store.
type StoredRecord struct {
	Key    string
	Fields Record
}

// RecordStore is the keyed record store backing the target tables.
type RecordStore interface {
	// ReadByKeys returns the stored records of table whose key is in keys.
	// Keys that do not exist are simply absent from the result.
	ReadByKeys(ctx context.Context, table string, keys []string) ([]StoredRecord, error)

	// Upsert inserts or replaces records by key in a single transaction and
	// returns the number of rows written.
	Upsert(ctx context.Context, table string, importLogID string, records []StoredRecord) (int, error)

	// Count returns the number of records in table.
	Count(ctx context.Context, table string) (int, error)
}

// StructureStore holds the append-only file structure snapshots.
type StructureStore interface {
	// LatestSnapshot returns the most recent snapshot for filename.
	// found is false when the file has never been imported.
	LatestSnapshot(ctx context.Context, filename string) (snap *FileStructureSnapshot, found bool, err error)

	// AppendSnapshot records a new snapshot. Existing snapshots are never modified.
	AppendSnapshot(ctx context.Context, snap *FileStructureSnapshot) error

	// ListSnapshots returns every snapshot for filename, newest first.
	ListSnapshots(ctx context.Context, filename string) ([]*FileStructureSnapshot, error)
}

// ImportLogStore persists import logs and enforces the single-flight rule.
type ImportLogStore interface {
	// BeginImportLog inserts log (status pending) unless another log is in a
	// non-terminal status, in which case it returns a *BlockedError.
	BeginImportLog(ctx context.Context, log *ImportLog) error

	// SaveImportLog writes log only if the stored status still equals
	// expected. Returns ErrConcurrentUpdate otherwise.
	SaveImportLog(ctx context.Context, log *ImportLog, expected Status) error

	// GetImportLog returns the log with id, or ErrNotFound.
	GetImportLog(ctx context.Context, id string) (*ImportLog, error)

	// ListImportLogs returns the most recent logs, newest first. When
	// statuses is non-empty only logs in those statuses are returned.
	ListImportLogs(ctx context.Context, limit int, statuses ...Status) ([]*ImportLog, error)

	// ActiveImportLog returns the non-terminal log, or ErrNotFound.
	ActiveImportLog(ctx context.Context) (*ImportLog, error)
}

// FileVersion records one downloaded export file.
type FileVersion struct {
	ID          string
	ImportLogID string
	SourceName  string
	Table       string
	Filename    string
	Checksum    string
	Size        int64
	ModifiedAt  time.Time
	RowCount    int
	Archived    bool
	CreatedAt   time.Time
}

// FileVersionStore persists downloaded file metadata.
type FileVersionStore interface {
	CreateFileVersion(ctx context.Context, fv *FileVersion) error
	ListFileVersions(ctx context.Context, importLogID string) ([]*FileVersion, error)
}

// DiffRecord is a persisted record diff.
type DiffRecord struct {
	ID            string
	ImportLogID   string
	FileVersionID string
	Table         string
	RecordDiff
	CreatedAt time.Time
}

// DiffFilter narrows ListDiffs.
type DiffFilter struct {
	Table      string
	ChangeType ChangeType
	Limit      int
	Offset     int
}

// DiffStore persists the audit trail of record diffs.
type DiffStore interface {
	// InsertDiffs writes all rows in one transaction.
	InsertDiffs(ctx context.Context, rows []*DiffRecord) error
	ListDiffs(ctx context.Context, importLogID string, filter DiffFilter) ([]*DiffRecord, error)
	// CountDiffs returns per-table counts of persisted diffs for a run.
	CountDiffs(ctx context.Context, importLogID string) (map[string]DiffCounts, error)
}

// Database is the full persistence surface used by the pipeline.
type Database interface {
	RecordStore
	StructureStore
	ImportLogStore
	FileVersionStore
	DiffStore

	// Close closes the database connection.
	Close() error
}
