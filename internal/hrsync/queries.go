package hrsync

import (
	"context"
	"fmt"
)

// GetImportLog returns the import log with id.
func (o *Orchestrator) GetImportLog(ctx context.Context, id string) (*ImportLog, error) {
	log, err := callWithTimeout(ctx, o.cfg.Timeouts.Store, func(ctx context.Context) (*ImportLog, error) {
		return o.db.GetImportLog(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("loading import log %s: %w", id, err)
	}
	return log, nil
}

// ListImportLogs returns recent import logs, optionally restricted to statuses.
func (o *Orchestrator) ListImportLogs(ctx context.Context, limit int, statuses ...Status) ([]*ImportLog, error) {
	return o.db.ListImportLogs(ctx, limit, statuses...)
}

// PendingApprovals returns the runs waiting for an operator.
func (o *Orchestrator) PendingApprovals(ctx context.Context) ([]*ImportLog, error) {
	return o.db.ListImportLogs(ctx, 0, StatusAwaitingApproval)
}

// ListDiffs returns the persisted diffs of a run.
func (o *Orchestrator) ListDiffs(ctx context.Context, logID string, filter DiffFilter) ([]*DiffRecord, error) {
	return o.db.ListDiffs(ctx, logID, filter)
}

// CountDiffs returns per-table counts of the persisted diffs of a run.
func (o *Orchestrator) CountDiffs(ctx context.Context, logID string) (map[string]DiffCounts, error) {
	return o.db.CountDiffs(ctx, logID)
}

// StructureHistory returns every structure snapshot of a file family.
func (o *Orchestrator) StructureHistory(ctx context.Context, name string) ([]*FileStructureSnapshot, error) {
	return o.db.ListSnapshots(ctx, name)
}

// FileVersions returns the files downloaded by a run.
func (o *Orchestrator) FileVersions(ctx context.Context, logID string) ([]*FileVersion, error) {
	return o.db.ListFileVersions(ctx, logID)
}

// CountRecords returns the number of stored records in table.
func (o *Orchestrator) CountRecords(ctx context.Context, table string) (int, error) {
	return o.db.Count(ctx, table)
}
