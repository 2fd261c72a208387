package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"hrsync/internal/hrsync"
)

const snapshotColumns = `id, filename, file_type, columns, row_count, import_log_id, imported_at`

// LatestSnapshot returns the most recently appended snapshot for filename.
func (s *SQLDatabase) LatestSnapshot(ctx context.Context, filename string) (*hrsync.FileStructureSnapshot, bool, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+snapshotColumns+`
		FROM file_structures WHERE filename = ? ORDER BY seq DESC LIMIT 1`), filename)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("getting latest snapshot: %w", err)
	}
	snap, err := row.toSnapshot()
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

// AppendSnapshot inserts a new snapshot.
func (s *SQLDatabase) AppendSnapshot(ctx context.Context, snap *hrsync.FileStructureSnapshot) error {
	cols := snap.Columns
	if cols == nil {
		cols = []string{}
	}
	data, err := json.Marshal(cols)
	if err != nil {
		return fmt.Errorf("encoding columns: %w", err)
	}
	row := snapshotRow{
		ID:          snap.ID,
		Filename:    snap.Filename,
		FileType:    snap.FileType,
		Columns:     string(data),
		RowCount:    snap.RowCount,
		ImportLogID: snap.ImportLogID,
		ImportedAt:  snap.ImportedAt.UTC(),
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO file_structures (`+snapshotColumns+`)
		VALUES (:id, :filename, :file_type, :columns, :row_count, :import_log_id, :imported_at)`, row)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns every snapshot for filename, newest first.
func (s *SQLDatabase) ListSnapshots(ctx context.Context, filename string) ([]*hrsync.FileStructureSnapshot, error) {
	var rows []snapshotRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT `+snapshotColumns+`
		FROM file_structures WHERE filename = ? ORDER BY seq DESC`), filename)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	snaps := make([]*hrsync.FileStructureSnapshot, 0, len(rows))
	for i := range rows {
		snap, err := rows[i].toSnapshot()
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}
