package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"hrsync/internal/hrsync"
)

// readChunkSize bounds the number of keys bound in one IN clause.
const readChunkSize = 500

// ReadByKeys returns the stored records of table whose key is in keys.
func (s *SQLDatabase) ReadByKeys(ctx context.Context, table string, keys []string) ([]hrsync.StoredRecord, error) {
	var out []hrsync.StoredRecord
	for start := 0; start < len(keys); start += readChunkSize {
		chunk := keys[start:min(start+readChunkSize, len(keys))]

		query, args, err := sqlx.In(`SELECT table_name, record_key, data, row_hash, import_log_id, updated_at
			FROM records WHERE table_name = ? AND record_key IN (?)`, table, chunk)
		if err != nil {
			return nil, fmt.Errorf("building record query: %w", err)
		}

		var rows []recordRow
		if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("reading %s records: %w", table, err)
		}
		for _, r := range rows {
			var fields hrsync.Record
			if err := json.Unmarshal([]byte(r.Data), &fields); err != nil {
				return nil, fmt.Errorf("decoding %s record %s: %w", table, r.RecordKey, err)
			}
			out = append(out, hrsync.StoredRecord{Key: r.RecordKey, Fields: fields})
		}
	}
	return out, nil
}

// Upsert inserts or replaces records by key in one transaction.
func (s *SQLDatabase) Upsert(ctx context.Context, table string, importLogID string, records []hrsync.StoredRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	now := s.clock.Now().UTC()

	written := 0
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO records
				(table_name, record_key, data, row_hash, import_log_id, updated_at)
			VALUES (:table_name, :record_key, :data, :row_hash, :import_log_id, :updated_at)
			ON CONFLICT (table_name, record_key) DO UPDATE SET
				data = excluded.data,
				row_hash = excluded.row_hash,
				import_log_id = excluded.import_log_id,
				updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			data, err := json.Marshal(r.Fields)
			if err != nil {
				return fmt.Errorf("encoding record %s: %w", r.Key, err)
			}
			row := recordRow{
				TableName:   table,
				RecordKey:   r.Key,
				Data:        string(data),
				RowHash:     hrsync.Hash(r.Fields),
				ImportLogID: importLogID,
				UpdatedAt:   now,
			}
			if _, err := stmt.ExecContext(ctx, row); err != nil {
				return fmt.Errorf("upserting record %s: %w", r.Key, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upserting %s records: %w", table, err)
	}
	return written, nil
}

// Count returns the number of records stored for table.
func (s *SQLDatabase) Count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM records WHERE table_name = ?`), table); err != nil {
		return 0, fmt.Errorf("counting %s records: %w", table, err)
	}
	return n, nil
}
