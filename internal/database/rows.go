package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"hrsync/internal/hrsync"
)

type importLogRow struct {
	ID                  string         `db:"id"`
	TriggerType         string         `db:"trigger_type"`
	Status              string         `db:"status"`
	HasStructureChanges bool           `db:"has_structure_changes"`
	StructureChanges    sql.NullString `db:"structure_changes"`
	RequiresApproval    bool           `db:"requires_approval"`
	ApprovedBy          sql.NullString `db:"approved_by"`
	ApprovedAt          sql.NullTime   `db:"approved_at"`
	CompletedAt         sql.NullTime   `db:"completed_at"`
	Results             sql.NullString `db:"results"`
	ErrorStep           sql.NullString `db:"error_step"`
	ErrorMessage        sql.NullString `db:"error_message"`
	StartedAt           time.Time      `db:"started_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func importLogToRow(l *hrsync.ImportLog) (*importLogRow, error) {
	row := &importLogRow{
		ID:                  l.ID,
		TriggerType:         string(l.TriggerType),
		Status:              string(l.Status),
		HasStructureChanges: l.HasStructureChanges,
		RequiresApproval:    l.RequiresApproval,
		ApprovedBy:          nullString(l.ApprovedBy),
		ApprovedAt:          nullTime(l.ApprovedAt),
		CompletedAt:         nullTime(l.CompletedAt),
		ErrorStep:           nullString(l.ErrorStep),
		ErrorMessage:        nullString(l.ErrorMessage),
		StartedAt:           l.StartedAt.UTC(),
		UpdatedAt:           l.UpdatedAt.UTC(),
	}
	if l.StructureChanges != nil {
		data, err := json.Marshal(l.StructureChanges)
		if err != nil {
			return nil, fmt.Errorf("encoding structure changes: %w", err)
		}
		row.StructureChanges = sql.NullString{String: string(data), Valid: true}
	}
	if l.Results != nil {
		data, err := json.Marshal(l.Results)
		if err != nil {
			return nil, fmt.Errorf("encoding results: %w", err)
		}
		row.Results = sql.NullString{String: string(data), Valid: true}
	}
	return row, nil
}

func (r *importLogRow) toImportLog() (*hrsync.ImportLog, error) {
	l := &hrsync.ImportLog{
		ID:                  r.ID,
		TriggerType:         hrsync.TriggerType(r.TriggerType),
		Status:              hrsync.Status(r.Status),
		HasStructureChanges: r.HasStructureChanges,
		RequiresApproval:    r.RequiresApproval,
		ApprovedBy:          r.ApprovedBy.String,
		ApprovedAt:          timePtr(r.ApprovedAt),
		CompletedAt:         timePtr(r.CompletedAt),
		ErrorStep:           r.ErrorStep.String,
		ErrorMessage:        r.ErrorMessage.String,
		StartedAt:           r.StartedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}
	if r.StructureChanges.Valid {
		if err := json.Unmarshal([]byte(r.StructureChanges.String), &l.StructureChanges); err != nil {
			return nil, fmt.Errorf("decoding structure changes of %s: %w", r.ID, err)
		}
	}
	if r.Results.Valid {
		l.Results = &hrsync.RunResults{}
		if err := json.Unmarshal([]byte(r.Results.String), l.Results); err != nil {
			return nil, fmt.Errorf("decoding results of %s: %w", r.ID, err)
		}
	}
	return l, nil
}

type snapshotRow struct {
	ID          string    `db:"id"`
	Filename    string    `db:"filename"`
	FileType    string    `db:"file_type"`
	Columns     string    `db:"columns"`
	RowCount    int       `db:"row_count"`
	ImportLogID string    `db:"import_log_id"`
	ImportedAt  time.Time `db:"imported_at"`
}

func (r *snapshotRow) toSnapshot() (*hrsync.FileStructureSnapshot, error) {
	var cols []string
	if err := json.Unmarshal([]byte(r.Columns), &cols); err != nil {
		return nil, fmt.Errorf("decoding columns of snapshot %s: %w", r.ID, err)
	}
	return &hrsync.FileStructureSnapshot{
		ID:          r.ID,
		Filename:    r.Filename,
		FileType:    r.FileType,
		Columns:     cols,
		RowCount:    r.RowCount,
		ImportLogID: r.ImportLogID,
		ImportedAt:  r.ImportedAt.UTC(),
	}, nil
}

type fileVersionRow struct {
	ID          string    `db:"id"`
	ImportLogID string    `db:"import_log_id"`
	SourceName  string    `db:"source_name"`
	TableName   string    `db:"table_name"`
	Filename    string    `db:"filename"`
	Checksum    string    `db:"checksum"`
	Size        int64     `db:"size"`
	ModifiedAt  time.Time `db:"modified_at"`
	RowCount    int       `db:"row_count"`
	Archived    bool      `db:"archived"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *fileVersionRow) toFileVersion() *hrsync.FileVersion {
	return &hrsync.FileVersion{
		ID:          r.ID,
		ImportLogID: r.ImportLogID,
		SourceName:  r.SourceName,
		Table:       r.TableName,
		Filename:    r.Filename,
		Checksum:    r.Checksum,
		Size:        r.Size,
		ModifiedAt:  r.ModifiedAt.UTC(),
		RowCount:    r.RowCount,
		Archived:    r.Archived,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type diffRow struct {
	ID            string         `db:"id"`
	ImportLogID   string         `db:"import_log_id"`
	FileVersionID string         `db:"file_version_id"`
	TableName     string         `db:"table_name"`
	RecordKey     string         `db:"record_key"`
	ChangeType    string         `db:"change_type"`
	HashPrevious  sql.NullString `db:"hash_previous"`
	HashCurrent   string         `db:"hash_current"`
	FieldsChanged string         `db:"fields_changed"`
	CreatedAt     time.Time      `db:"created_at"`
}

func diffToRow(d *hrsync.DiffRecord) (*diffRow, error) {
	fields := d.FieldsChanged
	if fields == nil {
		fields = []hrsync.FieldChange{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding changed fields of %s: %w", d.RecordKey, err)
	}
	return &diffRow{
		ID:            d.ID,
		ImportLogID:   d.ImportLogID,
		FileVersionID: d.FileVersionID,
		TableName:     d.Table,
		RecordKey:     d.RecordKey,
		ChangeType:    string(d.ChangeType),
		HashPrevious:  nullString(d.HashPrevious),
		HashCurrent:   d.HashCurrent,
		FieldsChanged: string(data),
		CreatedAt:     d.CreatedAt.UTC(),
	}, nil
}

func (r *diffRow) toDiff() (*hrsync.DiffRecord, error) {
	var fields []hrsync.FieldChange
	if err := json.Unmarshal([]byte(r.FieldsChanged), &fields); err != nil {
		return nil, fmt.Errorf("decoding changed fields of diff %s: %w", r.ID, err)
	}
	return &hrsync.DiffRecord{
		ID:            r.ID,
		ImportLogID:   r.ImportLogID,
		FileVersionID: r.FileVersionID,
		Table:         r.TableName,
		RecordDiff: hrsync.RecordDiff{
			RecordKey:     r.RecordKey,
			ChangeType:    hrsync.ChangeType(r.ChangeType),
			HashPrevious:  r.HashPrevious.String,
			HashCurrent:   r.HashCurrent,
			FieldsChanged: fields,
		},
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}

type recordRow struct {
	TableName   string    `db:"table_name"`
	RecordKey   string    `db:"record_key"`
	Data        string    `db:"data"`
	RowHash     string    `db:"row_hash"`
	ImportLogID string    `db:"import_log_id"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
