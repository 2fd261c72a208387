package hrsync

// Table is the parsed content of one export file.
type Table struct {
	// Columns are the original header cells, trimmed, in file order.
	Columns []string
	// FileType is the detected format, e.g. "csv" or "xlsx".
	FileType string
	Records  []Record
}

// ParseOptions configures how one source's file is decoded.
type ParseOptions struct {
	// Format overrides detection from the file extension.
	Format string
	// ColumnTypes coerces cells of a column: "number", "bool", "date:<layout>".
	ColumnTypes map[string]string
	// ColumnMap renames header cells to record fields.
	ColumnMap map[string]string
}

// Parser decodes raw file bytes into records, preserving original headers.
type Parser interface {
	Parse(filename string, data []byte, opts ParseOptions) (*Table, error)
}
