package hrsync

import (
	"context"
	"fmt"
)

// DefaultDiffBatchSize is the number of diffs written per store call.
const DefaultDiffBatchSize = 100

// PersistResult reports what a Persist call wrote.
type PersistResult struct {
	Written       int
	Filtered      int
	FailedBatches int
	Errors        []string
}

// DiffPersister writes significant record diffs to the audit trail.
type DiffPersister struct {
	store     DiffStore
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	batchSize int
}

// NewDiffPersister creates a persister. A batchSize below one uses
// DefaultDiffBatchSize.
func NewDiffPersister(store DiffStore, logger Logger, clock Clock, idgen IDGenerator, batchSize int) *DiffPersister {
	if batchSize < 1 {
		batchSize = DefaultDiffBatchSize
	}
	return &DiffPersister{store: store, logger: logger, clock: clock, idgen: idgen, batchSize: batchSize}
}

// Persist drops no_change diffs and writes the rest in fixed-size batches.
// A failing batch is logged and skipped; later batches are still written.
func (p *DiffPersister) Persist(ctx context.Context, importLogID, fileVersionID, table string, diffs []RecordDiff) PersistResult {
	var res PersistResult

	now := p.clock.Now()
	rows := make([]*DiffRecord, 0, len(diffs))
	for _, d := range diffs {
		if !d.Significant() {
			res.Filtered++
			continue
		}
		rows = append(rows, &DiffRecord{
			ID:            p.idgen.New(),
			ImportLogID:   importLogID,
			FileVersionID: fileVersionID,
			Table:         table,
			RecordDiff:    d,
			CreatedAt:     now,
		})
	}

	for start := 0; start < len(rows); start += p.batchSize {
		end := min(start+p.batchSize, len(rows))
		batch := rows[start:end]
		if err := p.store.InsertDiffs(ctx, batch); err != nil {
			res.FailedBatches++
			msg := fmt.Sprintf("%s: persisting diffs %d-%d: %v", table, start, end-1, err)
			res.Errors = append(res.Errors, msg)
			p.logger.Warn("diff batch failed", "log_id", importLogID, "table", table, "offset", start, "size", len(batch), "error", err)
			continue
		}
		res.Written += len(batch)
	}

	p.logger.Debug("diffs persisted", "log_id", importLogID, "table", table, "written", res.Written, "filtered", res.Filtered)
	return res
}
