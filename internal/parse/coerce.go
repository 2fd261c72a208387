package parse

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"hrsync/internal/hrsync"
)

// Column types accepted in column_types.
const (
	TypeString = "string"
	TypeNumber = "number"
	TypeBool   = "bool"
	TypeDate   = "date"
)

// dateLayouts are tried, in order, for "date" columns without a layout.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
}

// columnType is a parsed column_types entry.
type columnType struct {
	kind   string
	layout string
}

func parseColumnType(decl string) (columnType, error) {
	kind, layout, _ := strings.Cut(strings.TrimSpace(decl), ":")
	switch kind {
	case TypeString, TypeNumber, TypeBool:
		if layout != "" {
			return columnType{}, fmt.Errorf("type %q takes no layout", kind)
		}
		return columnType{kind: kind}, nil
	case TypeDate:
		return columnType{kind: kind, layout: layout}, nil
	}
	return columnType{}, fmt.Errorf("unknown column type %q", decl)
}

// ValidateColumnType reports whether decl is a valid column_types entry.
func ValidateColumnType(decl string) error {
	_, err := parseColumnType(decl)
	return err
}

// coerce turns one cell into a Value. Blank cells are null. A cell that
// does not fit its column type stays a string so no data is lost.
func coerce(cell string, ct columnType) hrsync.Value {
	s := strings.TrimSpace(cell)
	if s == "" {
		return hrsync.Null()
	}

	switch ct.kind {
	case TypeNumber:
		if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			return hrsync.Number(f)
		}
	case TypeBool:
		switch strings.ToLower(s) {
		case "true", "t", "yes", "y", "1":
			return hrsync.Bool(true)
		case "false", "f", "no", "n", "0":
			return hrsync.Bool(false)
		}
	case TypeDate:
		layouts := dateLayouts
		if ct.layout != "" {
			layouts = []string{ct.layout}
		}
		for _, layout := range layouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return hrsync.Date(t)
			}
		}
	}
	return hrsync.String(s)
}
