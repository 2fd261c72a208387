package parse

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"hrsync/internal/hrsync"
)

// Parser decodes CSV, TSV and XLSX exports, optionally compressed.
type Parser struct{}

var _ hrsync.Parser = (*Parser)(nil)

func New() *Parser { return &Parser{} }

// Parse decodes data into a table. Columns keep the file's header cells
// (trimmed, NFC-normalized, in file order); record fields use the mapped
// names from opts.ColumnMap.
func (p *Parser) Parse(filename string, data []byte, opts hrsync.ParseOptions) (*hrsync.Table, error) {
	format, compression, err := Detect(filename, opts.Format)
	if err != nil {
		return nil, err
	}
	raw, err := decompress(data, compression)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	var rows [][]string
	switch format {
	case FormatCSV, FormatTSV:
		rows, err = readDelimited(raw, format)
	case FormatXLSX:
		rows, err = readXLSX(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	table, err := buildTable(rows, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	table.FileType = format
	return table, nil
}

func readDelimited(data []byte, format string) ([][]string, error) {
	text, _, err := toUTF8(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(text))
	if format == FormatTSV {
		r.Comma = '\t'
	}
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", format, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// readXLSX returns the rows of the first sheet.
func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// buildTable turns raw rows into a table. Leading blank rows are skipped,
// the first remaining row is the header, blank data rows are dropped and
// ragged rows are padded with nulls or truncated to the header.
func buildTable(rows [][]string, opts hrsync.ParseOptions) (*hrsync.Table, error) {
	for len(rows) > 0 && blankRow(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, errors.New("file has no header row")
	}

	columns := headerColumns(rows[0])
	fields := make([]string, len(columns))
	types := make([]columnType, len(columns))
	for i, col := range columns {
		fields[i] = col
		if mapped, ok := opts.ColumnMap[col]; ok && strings.TrimSpace(mapped) != "" {
			fields[i] = strings.TrimSpace(mapped)
		}
		types[i] = columnType{kind: TypeString}
		if decl, ok := lookupType(opts.ColumnTypes, col, fields[i]); ok {
			ct, err := parseColumnType(decl)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", col, err)
			}
			types[i] = ct
		}
	}

	records := make([]hrsync.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec := make(hrsync.Record, len(fields))
		for i, field := range fields {
			if i < len(row) {
				rec[field] = coerce(row[i], types[i])
			} else {
				rec[field] = hrsync.Null()
			}
		}
		records = append(records, rec)
	}

	return &hrsync.Table{Columns: columns, Records: records}, nil
}

// lookupType finds the column type by original header, then by mapped field.
func lookupType(types map[string]string, header, field string) (string, bool) {
	if decl, ok := types[header]; ok {
		return decl, true
	}
	decl, ok := types[field]
	return decl, ok
}

// headerColumns cleans header cells. Blank headers become column_<n> and
// repeated headers get a _<n> suffix so every field name is unique.
func headerColumns(header []string) []string {
	cols := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := norm.NFC.String(strings.TrimSpace(h))
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name += "_" + strconv.Itoa(n)
		}
		cols[i] = name
	}
	return cols
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
