package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"hrsync/internal/hrsync"
)

const importLogColumns = `id, trigger_type, status, has_structure_changes, structure_changes,
	requires_approval, approved_by, approved_at, completed_at, results,
	error_step, error_message, started_at, updated_at`

// BeginImportLog inserts a pending log unless another run is active.
// The check and the insert share a transaction, and the partial unique index
// on lock_key rejects a concurrent insert that slipped past the check.
func (s *SQLDatabase) BeginImportLog(ctx context.Context, log *hrsync.ImportLog) error {
	row, err := importLogToRow(log)
	if err != nil {
		return err
	}

	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		active, err := activeImportLog(ctx, tx)
		if err != nil && !errors.Is(err, hrsync.ErrNotFound) {
			return err
		}
		if active != nil {
			return &hrsync.BlockedError{LogID: active.ID, Status: active.Status}
		}

		_, err = tx.NamedExecContext(ctx, `INSERT INTO import_logs (`+importLogColumns+`)
			VALUES (:id, :trigger_type, :status, :has_structure_changes, :structure_changes,
				:requires_approval, :approved_by, :approved_at, :completed_at, :results,
				:error_step, :error_message, :started_at, :updated_at)`, row)
		return err
	})
	if err == nil {
		return nil
	}

	var blocked *hrsync.BlockedError
	if errors.As(err, &blocked) {
		return blocked
	}
	if isUniqueViolation(err) {
		// Lost the race: report whichever run holds the slot now.
		active, aerr := s.ActiveImportLog(ctx)
		if aerr != nil {
			return &hrsync.BlockedError{}
		}
		return &hrsync.BlockedError{LogID: active.ID, Status: active.Status}
	}
	return fmt.Errorf("inserting import log: %w", err)
}

// SaveImportLog updates log if its stored status still equals expected.
func (s *SQLDatabase) SaveImportLog(ctx context.Context, log *hrsync.ImportLog, expected hrsync.Status) error {
	row, err := importLogToRow(log)
	if err != nil {
		return err
	}

	query, args, err := sqlx.Named(`UPDATE import_logs SET
			status = :status,
			has_structure_changes = :has_structure_changes,
			structure_changes = :structure_changes,
			requires_approval = :requires_approval,
			approved_by = :approved_by,
			approved_at = :approved_at,
			completed_at = :completed_at,
			results = :results,
			error_step = :error_step,
			error_message = :error_message,
			updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return fmt.Errorf("binding import log update: %w", err)
	}
	query = s.db.Rebind(query + " AND status = ?")
	args = append(args, string(expected))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating import log %s: %w", log.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating import log %s: %w", log.ID, err)
	}
	if n == 1 {
		return nil
	}

	if _, err := s.GetImportLog(ctx, log.ID); err != nil {
		return err
	}
	return fmt.Errorf("import log %s is no longer %s: %w", log.ID, expected, hrsync.ErrConcurrentUpdate)
}

// GetImportLog returns the log with id, or hrsync.ErrNotFound.
func (s *SQLDatabase) GetImportLog(ctx context.Context, id string) (*hrsync.ImportLog, error) {
	var row importLogRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+importLogColumns+` FROM import_logs WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("import log %s: %w", id, hrsync.ErrNotFound)
		}
		return nil, fmt.Errorf("getting import log: %w", err)
	}
	return row.toImportLog()
}

// ListImportLogs returns logs newest first. A limit of zero or less returns all.
func (s *SQLDatabase) ListImportLogs(ctx context.Context, limit int, statuses ...hrsync.Status) ([]*hrsync.ImportLog, error) {
	query := `SELECT ` + importLogColumns + ` FROM import_logs`
	var args []any
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		q, a, err := sqlx.In(query+` WHERE status IN (?)`, names)
		if err != nil {
			return nil, fmt.Errorf("building import log query: %w", err)
		}
		query, args = q, a
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []importLogRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing import logs: %w", err)
	}
	return toImportLogs(rows)
}

// ActiveImportLog returns the log in a non-terminal status, or hrsync.ErrNotFound.
func (s *SQLDatabase) ActiveImportLog(ctx context.Context) (*hrsync.ImportLog, error) {
	return activeImportLog(ctx, s.db)
}

func activeImportLog(ctx context.Context, q sqlx.QueryerContext) (*hrsync.ImportLog, error) {
	names := make([]string, len(hrsync.ActiveStatuses))
	for i, st := range hrsync.ActiveStatuses {
		names[i] = string(st)
	}
	query, args, err := sqlx.In(`SELECT `+importLogColumns+` FROM import_logs WHERE status IN (?) ORDER BY started_at LIMIT 1`, names)
	if err != nil {
		return nil, fmt.Errorf("building active import log query: %w", err)
	}

	var row importLogRow
	if err := sqlx.GetContext(ctx, q, &row, rebind(q, query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hrsync.ErrNotFound
		}
		return nil, fmt.Errorf("finding active import log: %w", err)
	}
	return row.toImportLog()
}

func toImportLogs(rows []importLogRow) ([]*hrsync.ImportLog, error) {
	logs := make([]*hrsync.ImportLog, 0, len(rows))
	for i := range rows {
		l, err := rows[i].toImportLog()
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// rebind converts ? placeholders for the driver behind q.
func rebind(q sqlx.QueryerContext, query string) string {
	type rebinder interface{ Rebind(string) string }
	if r, ok := q.(rebinder); ok {
		return r.Rebind(query)
	}
	return query
}
