package hrsync

import (
	"context"
	"fmt"
)

// apply diffs and writes every fetched file in table order.
func (o *Orchestrator) apply(ctx context.Context, log *ImportLog, files []*fetchedFile) (*RunResults, error) {
	results := &RunResults{Tables: []TableResult{}}
	for _, f := range files {
		tr, err := o.applyTable(ctx, log, f, results)
		if err != nil {
			return nil, err
		}
		results.Tables = append(results.Tables, tr)
	}
	return results, nil
}

// applyTable runs the diff engine over one file, upserts inserts and updates
// in batches and persists the audit diffs. A failed upsert batch is recorded
// in results and skipped; its diffs are not persisted.
func (o *Orchestrator) applyTable(ctx context.Context, log *ImportLog, f *fetchedFile, results *RunResults) (TableResult, error) {
	table := f.spec.Table
	tr := TableResult{Table: table, Source: f.spec.Name}

	keyed, warnings := keyRecords(f.spec, f.table.Records)
	tr.Skipped = len(f.table.Records) - len(keyed)
	for _, w := range warnings {
		o.logger.Warn(w, "log_id", log.ID, "table", table)
	}
	results.Warnings = append(results.Warnings, warnings...)

	var diff *BatchDiff
	err := o.storeCall(ctx, func(ctx context.Context) error {
		var err error
		diff, err = o.differ.DiffBatch(ctx, table, keyed, nil)
		return err
	})
	if err != nil {
		return tr, newImportError(KindStore, StepDiff, f.remote.Name, err)
	}
	tr.Inserts = diff.Summary.Inserts
	tr.Updates = diff.Summary.Updates
	tr.Unchanged = diff.Summary.Unchanged
	o.logger.Info("table diffed", "log_id", log.ID, "table", table, "inserts", tr.Inserts, "updates", tr.Updates, "unchanged", tr.Unchanged)

	var pending []StoredRecord
	for i, d := range diff.Diffs {
		if d.Significant() {
			pending = append(pending, StoredRecord{Key: keyed[i].Key, Fields: keyed[i].Record})
		}
	}

	failed := make(map[string]bool)
	size := f.spec.batchSize()
	for start, batchNo := 0, 1; start < len(pending); start, batchNo = start+size, batchNo+1 {
		batch := pending[start:min(start+size, len(pending))]
		var n int
		err := o.storeCall(ctx, func(ctx context.Context) error {
			var err error
			n, err = o.db.Upsert(ctx, table, log.ID, batch)
			return err
		})
		if err != nil {
			tr.FailedBatches++
			results.Errors = append(results.Errors, fmt.Sprintf("%s: batch %d (%d records) failed: %v", table, batchNo, len(batch), err))
			o.logger.Warn("upsert batch failed", "log_id", log.ID, "table", table, "batch", batchNo, "size", len(batch), "error", err)
			for _, r := range batch {
				failed[r.Key] = true
			}
			continue
		}
		tr.Written += n
	}

	audit := diff.Diffs
	if len(failed) > 0 {
		audit = make([]RecordDiff, 0, len(diff.Diffs))
		for _, d := range diff.Diffs {
			if !failed[d.RecordKey] {
				audit = append(audit, d)
			}
		}
	}
	pr := o.persister.Persist(ctx, log.ID, f.version.ID, table, audit)
	results.Errors = append(results.Errors, pr.Errors...)

	return tr, nil
}

// keyRecords derives the business key of every record. Records with a blank
// key are dropped; for duplicate keys the last occurrence wins.
func keyRecords(spec SourceSpec, records []Record) ([]KeyedRecord, []string) {
	var warnings []string
	index := make(map[string]int, len(records))
	keyed := make([]KeyedRecord, 0, len(records))
	blank := 0
	for _, r := range records {
		key, ok := RecordKey(r, spec.KeyFields)
		if !ok {
			blank++
			continue
		}
		if i, dup := index[key]; dup {
			keyed[i].Record = nil
		}
		index[key] = len(keyed)
		keyed = append(keyed, KeyedRecord{Key: key, Record: r})
	}

	out := keyed[:0]
	dups := 0
	for _, k := range keyed {
		if k.Record == nil {
			dups++
			continue
		}
		out = append(out, k)
	}
	if blank > 0 {
		warnings = append(warnings, fmt.Sprintf("%s: skipped %d records with blank key", spec.Name, blank))
	}
	if dups > 0 {
		warnings = append(warnings, fmt.Sprintf("%s: dropped %d duplicate keys, last occurrence kept", spec.Name, dups))
	}
	return out, warnings
}
