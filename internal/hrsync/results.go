package hrsync

// TableResult is the outcome of writing one table in a run.
type TableResult struct {
	Table         string `json:"table"`
	Source        string `json:"source"`
	Inserts       int    `json:"inserts"`
	Updates       int    `json:"updates"`
	Unchanged     int    `json:"unchanged"`
	Skipped       int    `json:"skipped"`
	Written       int    `json:"written"`
	FailedBatches int    `json:"failedBatches"`
}

// Counts returns the diff counts of the table.
func (t TableResult) Counts() DiffCounts {
	return DiffCounts{Inserts: t.Inserts, Updates: t.Updates, Unchanged: t.Unchanged}
}

// RunResults is the summary attached to a completed import log.
type RunResults struct {
	Tables   []TableResult `json:"tables"`
	Errors   []string      `json:"errors,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

// HasWarnings reports whether the run completed with partial failures.
func (r *RunResults) HasWarnings() bool {
	return r != nil && (len(r.Errors) > 0 || len(r.Warnings) > 0)
}

// Table returns the result for table, or nil.
func (r *RunResults) Table(table string) *TableResult {
	if r == nil {
		return nil
	}
	for i := range r.Tables {
		if r.Tables[i].Table == table {
			return &r.Tables[i]
		}
	}
	return nil
}

// Summary returns per-table diff counts keyed by table name.
func (r *RunResults) Summary() map[string]DiffCounts {
	out := make(map[string]DiffCounts)
	if r == nil {
		return out
	}
	for _, t := range r.Tables {
		c := out[t.Table]
		c.Inserts += t.Inserts
		c.Updates += t.Updates
		c.Unchanged += t.Unchanged
		out[t.Table] = c
	}
	return out
}
