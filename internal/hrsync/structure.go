package hrsync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// FileStructureSnapshot is the recorded column set of one import of a file.
// Snapshots are append-only.
type FileStructureSnapshot struct {
	ID          string
	Filename    string
	FileType    string
	Columns     []string
	RowCount    int
	ImportLogID string
	ImportedAt  time.Time
}

// StructureChange is the column drift of one file.
type StructureChange struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Empty reports whether no columns were added or removed.
func (c StructureChange) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// Equal reports whether two changes add and remove the same columns.
func (c StructureChange) Equal(o StructureChange) bool {
	return sameSet(c.Added, o.Added) && sameSet(c.Removed, o.Removed)
}

// ComparisonResult is the outcome of comparing a file's columns against its
// latest snapshot.
type ComparisonResult struct {
	HasChanges      bool
	Added           []string
	Removed         []string
	PreviousColumns []string // nil on first import
	IsFirstImport   bool
}

// Change returns the added/removed pair.
func (r ComparisonResult) Change() StructureChange {
	return StructureChange{Added: r.Added, Removed: r.Removed}
}

// StructureComparator diffs incoming column sets against recorded snapshots.
type StructureComparator struct {
	store StructureStore
	clock Clock
	idgen IDGenerator
}

// NewStructureComparator creates a comparator over store.
func NewStructureComparator(store StructureStore, clock Clock, idgen IDGenerator) *StructureComparator {
	return &StructureComparator{store: store, clock: clock, idgen: idgen}
}

// Compare diffs currentColumns against the latest snapshot for filename.
// Column names are trimmed and order is ignored. A file with no snapshot is
// a first import and never reports changes.
func (c *StructureComparator) Compare(ctx context.Context, filename string, currentColumns []string) (ComparisonResult, error) {
	prev, found, err := c.store.LatestSnapshot(ctx, filename)
	if err != nil {
		return ComparisonResult{}, fmt.Errorf("reading latest structure for %s: %w", filename, err)
	}
	if !found {
		return ComparisonResult{IsFirstImport: true, Added: []string{}, Removed: []string{}}, nil
	}
	return CompareColumns(prev.Columns, currentColumns), nil
}

// CompareColumns diffs two column lists.
func CompareColumns(previous, current []string) ComparisonResult {
	prevSet := columnSet(previous)
	currSet := columnSet(current)

	added := []string{}
	for col := range currSet {
		if !prevSet[col] {
			added = append(added, col)
		}
	}
	removed := []string{}
	for col := range prevSet {
		if !currSet[col] {
			removed = append(removed, col)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)

	prevCopy := make([]string, len(previous))
	copy(prevCopy, previous)

	return ComparisonResult{
		HasChanges:      len(added) > 0 || len(removed) > 0,
		Added:           added,
		Removed:         removed,
		PreviousColumns: prevCopy,
	}
}

// SaveStructure appends a new snapshot for filename.
func (c *StructureComparator) SaveStructure(ctx context.Context, importLogID, filename, fileType string, columns []string, rowCount int) (*FileStructureSnapshot, error) {
	cols := make([]string, 0, len(columns))
	for _, col := range columns {
		cols = append(cols, strings.TrimSpace(col))
	}
	snap := &FileStructureSnapshot{
		ID:          c.idgen.New(),
		Filename:    filename,
		FileType:    fileType,
		Columns:     cols,
		RowCount:    rowCount,
		ImportLogID: importLogID,
		ImportedAt:  c.clock.Now(),
	}
	if err := c.store.AppendSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("saving structure for %s: %w", filename, err)
	}
	return snap, nil
}

func columnSet(cols []string) map[string]bool {
	set := make(map[string]bool, len(cols))
	for _, c := range cols {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		set[c] = true
	}
	return set
}

func sameSet(a, b []string) bool {
	sa, sb := columnSet(a), columnSet(b)
	if len(sa) != len(sb) {
		return false
	}
	for k := range sa {
		if !sb[k] {
			return false
		}
	}
	return true
}
