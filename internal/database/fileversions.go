package database

import (
	"context"
	"fmt"

	"hrsync/internal/hrsync"
)

// CreateFileVersion records a downloaded file.
func (s *SQLDatabase) CreateFileVersion(ctx context.Context, fv *hrsync.FileVersion) error {
	row := fileVersionRow{
		ID:          fv.ID,
		ImportLogID: fv.ImportLogID,
		SourceName:  fv.SourceName,
		TableName:   fv.Table,
		Filename:    fv.Filename,
		Checksum:    fv.Checksum,
		Size:        fv.Size,
		ModifiedAt:  fv.ModifiedAt.UTC(),
		RowCount:    fv.RowCount,
		Archived:    fv.Archived,
		CreatedAt:   fv.CreatedAt.UTC(),
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO file_versions
			(id, import_log_id, source_name, table_name, filename, checksum, size, modified_at, row_count, archived, created_at)
		VALUES (:id, :import_log_id, :source_name, :table_name, :filename, :checksum, :size, :modified_at, :row_count, :archived, :created_at)`, row)
	if err != nil {
		return fmt.Errorf("inserting file version: %w", err)
	}
	return nil
}

// ListFileVersions returns the files downloaded by a run in download order.
func (s *SQLDatabase) ListFileVersions(ctx context.Context, importLogID string) ([]*hrsync.FileVersion, error) {
	var rows []fileVersionRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT id, import_log_id, source_name, table_name, filename,
			checksum, size, modified_at, row_count, archived, created_at
		FROM file_versions WHERE import_log_id = ? ORDER BY created_at, id`), importLogID)
	if err != nil {
		return nil, fmt.Errorf("listing file versions: %w", err)
	}
	out := make([]*hrsync.FileVersion, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toFileVersion())
	}
	return out, nil
}
