package hrsync

import (
	"context"
	"fmt"
	"time"
)

// Approve records an operator's authorization of a run that is awaiting
// approval. The run does not continue until Resume is called.
func (o *Orchestrator) Approve(ctx context.Context, logID, by string) (*ImportLog, error) {
	log, err := o.GetImportLog(ctx, logID)
	if err != nil {
		return nil, err
	}
	err = o.advance(ctx, log, StepApproval, func(now time.Time) error {
		return log.Approve(by, now)
	})
	if err != nil {
		return nil, err
	}
	o.logger.Info("import approved", "log_id", log.ID, "approved_by", by)
	return log, nil
}

// Reject fails a run that is awaiting approval. Nothing is written and the
// single-flight lock is released.
func (o *Orchestrator) Reject(ctx context.Context, logID, by, reason string) (*ImportLog, error) {
	log, err := o.GetImportLog(ctx, logID)
	if err != nil {
		return nil, err
	}
	err = o.advance(ctx, log, StepApproval, func(now time.Time) error {
		return log.Reject(by, reason, now)
	})
	if err != nil {
		return nil, err
	}
	o.logger.Info("import rejected", "log_id", log.ID, "rejected_by", by, "reason", reason)
	return log, nil
}

// Resume continues an approved run: files are fetched again and written.
// If the drift found now differs from the drift that was approved the run
// fails instead.
func (o *Orchestrator) Resume(ctx context.Context, logID string) (*ImportLog, error) {
	log, err := o.GetImportLog(ctx, logID)
	if err != nil {
		return nil, err
	}
	if log.Status != StatusApproved {
		return log, &TransitionError{LogID: log.ID, From: log.Status, To: StatusCompleted}
	}
	o.logger.Info("resuming approved import", "log_id", log.ID, "approved_by", log.ApprovedBy)

	files, err := o.fetchAll(ctx, log)
	if err != nil {
		return log, o.fail(ctx, log, err)
	}

	current := structureChanges(files)
	if !sameChanges(current, log.StructureChanges) {
		err := newImportError(KindApproval, StepResume, "",
			fmt.Errorf("structure changed since approval: approved %d file(s), found %d", len(log.StructureChanges), len(current)))
		return log, o.fail(ctx, log, err)
	}

	if err := o.finish(ctx, log, files); err != nil {
		return log, o.fail(ctx, log, err)
	}
	return log, nil
}
