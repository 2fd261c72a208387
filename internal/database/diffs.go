package database

import (
	"context"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"

	"hrsync/internal/hrsync"
)

const diffColumns = `id, import_log_id, file_version_id, table_name, record_key, change_type,
	hash_previous, hash_current, fields_changed, created_at`

// InsertDiffs writes a batch of diffs in one transaction.
func (s *SQLDatabase) InsertDiffs(ctx context.Context, diffs []*hrsync.DiffRecord) error {
	if len(diffs) == 0 {
		return nil
	}
	rows := make([]*diffRow, 0, len(diffs))
	for _, d := range diffs {
		row, err := diffToRow(d)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO record_diffs (`+diffColumns+`)
			VALUES (:id, :import_log_id, :file_version_id, :table_name, :record_key, :change_type,
				:hash_previous, :hash_current, :fields_changed, :created_at)`)
		if err != nil {
			return fmt.Errorf("preparing diff insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row); err != nil {
				return fmt.Errorf("inserting diff for %s: %w", row.RecordKey, err)
			}
		}
		return nil
	})
}

// ListDiffs returns the diffs of a run in insertion order.
func (s *SQLDatabase) ListDiffs(ctx context.Context, importLogID string, filter hrsync.DiffFilter) ([]*hrsync.DiffRecord, error) {
	query := `SELECT ` + diffColumns + ` FROM record_diffs WHERE import_log_id = ?`
	args := []any{importLogID}
	if filter.Table != "" {
		query += ` AND table_name = ?`
		args = append(args, filter.Table)
	}
	if filter.ChangeType != "" {
		query += ` AND change_type = ?`
		args = append(args, string(filter.ChangeType))
	}
	query += ` ORDER BY seq`
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = math.MaxInt32
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, max(filter.Offset, 0))
	}

	var rows []diffRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing diffs: %w", err)
	}
	out := make([]*hrsync.DiffRecord, 0, len(rows))
	for i := range rows {
		d, err := rows[i].toDiff()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// CountDiffs returns per-table counts of the persisted diffs of a run.
func (s *SQLDatabase) CountDiffs(ctx context.Context, importLogID string) (map[string]hrsync.DiffCounts, error) {
	var rows []struct {
		TableName  string `db:"table_name"`
		ChangeType string `db:"change_type"`
		N          int    `db:"n"`
	}
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT table_name, change_type, COUNT(*) AS n
		FROM record_diffs WHERE import_log_id = ? GROUP BY table_name, change_type`), importLogID)
	if err != nil {
		return nil, fmt.Errorf("counting diffs: %w", err)
	}

	counts := make(map[string]hrsync.DiffCounts)
	for _, r := range rows {
		c := counts[r.TableName]
		switch hrsync.ChangeType(r.ChangeType) {
		case hrsync.ChangeInsert:
			c.Inserts += r.N
		case hrsync.ChangeUpdate:
			c.Updates += r.N
		}
		counts[r.TableName] = c
	}
	return counts, nil
}
