package hrsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// TableOrder is the fixed processing order of target tables. Later tables
// reference employee identity, so employees are always written first.
var TableOrder = []string{"employees", "terminations", "attendance", "incidents"}

// DefaultBatchSizes are the upsert batch sizes used when a source does not
// set one. Employee rows are wide, attendance rows are narrow.
var DefaultBatchSizes = map[string]int{
	"employees":  50,
	"attendance": 500,
}

// DefaultBatchSize applies to tables without an entry in DefaultBatchSizes.
const DefaultBatchSize = 100

// SourceSpec describes one export file the pipeline imports.
type SourceSpec struct {
	// Name identifies the file family; it is the structure baseline key.
	Name string
	// Table is the target table.
	Table string
	// Dir is the remote directory listed for candidate files.
	Dir string
	// Pattern selects candidate files by basename. Defaults to Name.
	Pattern string
	// Exclude drops candidates matching any of these patterns.
	Exclude   []string
	KeyFields []string
	BatchSize int
	// Required sources fail the run when missing or empty.
	Required bool
	Parse    ParseOptions
}

func (s SourceSpec) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	if n, ok := DefaultBatchSizes[s.Table]; ok {
		return n
	}
	return DefaultBatchSize
}

// Timeouts bounds each blocking collaborator call. Zero disables the bound.
type Timeouts struct {
	Download time.Duration
	Store    time.Duration
	Notify   time.Duration
}

// OrchestratorConfig configures an Orchestrator.
type OrchestratorConfig struct {
	Sources           []SourceSpec
	Timeouts          Timeouts
	DiffBatchSize     int
	RetryConnectivity bool
}

// Collaborators are the external services an Orchestrator drives.
// Archiver and Notifier may be nil.
type Collaborators struct {
	Database Database
	Source   FileSource
	Parser   Parser
	Notifier Notifier
	Archiver *ExportArchiver
	Logger   Logger
	Clock    Clock
	IDGen    IDGenerator
}

// Orchestrator drives import runs end to end.
type Orchestrator struct {
	db       Database
	source   FileSource
	parser   Parser
	notifier Notifier
	archiver *ExportArchiver
	logger   Logger
	clock    Clock
	idgen    IDGenerator

	cfg        OrchestratorConfig
	sources    []SourceSpec
	structures *StructureComparator
	differ     *DiffEngine
	persister  *DiffPersister
}

// NewOrchestrator creates an Orchestrator. Sources are reordered into the
// fixed table processing order.
func NewOrchestrator(c Collaborators, cfg OrchestratorConfig) *Orchestrator {
	if c.Logger == nil {
		c.Logger = NewNopLogger()
	}
	if c.Clock == nil {
		c.Clock = RealClock{}
	}
	if c.IDGen == nil {
		c.IDGen = UUIDGenerator{}
	}
	return &Orchestrator{
		db:         c.Database,
		source:     c.Source,
		parser:     c.Parser,
		notifier:   c.Notifier,
		archiver:   c.Archiver,
		logger:     c.Logger,
		clock:      c.Clock,
		idgen:      c.IDGen,
		cfg:        cfg,
		sources:    orderSources(cfg.Sources),
		structures: NewStructureComparator(c.Database, c.Clock, c.IDGen),
		differ:     NewDiffEngine(c.Database),
		persister:  NewDiffPersister(c.Database, c.Logger, c.Clock, c.IDGen, cfg.DiffBatchSize),
	}
}

// orderSources sorts sources by TableOrder. Sources for the same table, and
// tables outside TableOrder, keep their configured order.
func orderSources(sources []SourceSpec) []SourceSpec {
	rank := func(table string) int {
		for i, t := range TableOrder {
			if t == table {
				return i
			}
		}
		return len(TableOrder)
	}
	out := make([]SourceSpec, len(sources))
	copy(out, sources)
	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i].Table) < rank(out[j].Table)
	})
	return out
}

// Run performs one import attempt. When another run is in flight it returns
// a *BlockedError and no log. When structural drift is found the returned
// log is awaiting approval and nothing was written. A failed run returns the
// failed log together with the cause.
func (o *Orchestrator) Run(ctx context.Context, trigger TriggerType) (*ImportLog, error) {
	log := NewImportLog(o.idgen.New(), trigger, o.clock.Now())

	err := o.storeCall(ctx, func(ctx context.Context) error {
		return o.db.BeginImportLog(ctx, log)
	})
	if err != nil {
		var blocked *BlockedError
		if errors.As(err, &blocked) {
			o.logger.Warn("import blocked", "blocking_log_id", blocked.LogID, "blocking_status", blocked.Status, "trigger", trigger)
			o.notify(ctx, "blocked", "", func(ctx context.Context) error {
				return o.notifier.SendFailure(ctx, "", blocked, FailureContext{
					Step:           StepLock,
					BlockingLogID:  blocked.LogID,
					BlockingStatus: blocked.Status,
				})
			})
			return nil, blocked
		}
		ierr := newImportError(KindConnectivity, StepBegin, "", fmt.Errorf("creating import log: %w", err))
		o.logger.Error("import could not start", "error", err)
		o.notify(ctx, "failure", "", func(ctx context.Context) error {
			return o.notifier.SendFailure(ctx, "", ierr, FailureContext{Step: StepBegin})
		})
		return nil, ierr
	}
	o.logger.Info("import started", "log_id", log.ID, "trigger", trigger)

	if err := o.advance(ctx, log, StepBegin, log.StartAnalysis); err != nil {
		return log, o.fail(ctx, log, err)
	}

	files, err := o.fetchAll(ctx, log)
	if err != nil {
		return log, o.fail(ctx, log, err)
	}

	if changes := structureChanges(files); len(changes) > 0 {
		err := o.advance(ctx, log, StepApproval, func(now time.Time) error {
			return log.RequestApproval(changes, now)
		})
		if err != nil {
			return log, o.fail(ctx, log, err)
		}
		o.logger.Info("structure changes detected, awaiting approval", "log_id", log.ID, "files", len(changes))
		o.notify(ctx, "approval_request", log.ID, func(ctx context.Context) error {
			return o.notifier.SendApprovalRequest(ctx, log.ID, changes)
		})
		return log, nil
	}

	if err := o.finish(ctx, log, files); err != nil {
		return log, o.fail(ctx, log, err)
	}
	return log, nil
}

// finish writes every table, records the new structure baselines and
// completes the run.
func (o *Orchestrator) finish(ctx context.Context, log *ImportLog, files []*fetchedFile) error {
	results, err := o.apply(ctx, log, files)
	if err != nil {
		return err
	}

	for _, f := range files {
		err := o.storeCall(ctx, func(ctx context.Context) error {
			_, err := o.structures.SaveStructure(ctx, log.ID, f.spec.Name, f.table.FileType, f.table.Columns, len(f.table.Records))
			return err
		})
		if err != nil {
			return newImportError(KindStore, StepSnapshot, f.remote.Name, err)
		}
	}

	err = o.advance(ctx, log, StepFinalize, func(now time.Time) error {
		return log.Complete(results, now)
	})
	if err != nil {
		return err
	}
	o.logger.Info("import completed", "log_id", log.ID, "tables", len(results.Tables), "errors", len(results.Errors), "warnings", len(results.Warnings))

	counts, err := callWithTimeout(ctx, o.cfg.Timeouts.Store, func(ctx context.Context) (map[string]DiffCounts, error) {
		return o.db.CountDiffs(ctx, log.ID)
	})
	if err != nil {
		o.logger.Warn("counting persisted diffs", "log_id", log.ID, "error", err)
		counts = results.Summary()
	}
	o.notify(ctx, "completion_summary", log.ID, func(ctx context.Context) error {
		return o.notifier.SendCompletionSummary(ctx, log.ID, results, counts)
	})
	return nil
}

// advance applies a state transition to log and persists it with a
// compare-and-set on the previous status. On failure log is left unchanged.
func (o *Orchestrator) advance(ctx context.Context, log *ImportLog, step string, mutate func(time.Time) error) error {
	prev := *log
	if err := mutate(o.clock.Now()); err != nil {
		return newImportError(KindState, step, "", err)
	}
	err := o.storeCall(ctx, func(ctx context.Context) error {
		return o.db.SaveImportLog(ctx, log, prev.Status)
	})
	if err != nil {
		*log = prev
		kind := KindStore
		if errors.Is(err, ErrConcurrentUpdate) {
			kind = KindConflict
		}
		return newImportError(kind, step, "", fmt.Errorf("saving import log: %w", err))
	}
	o.logger.Debug("import log updated", "log_id", log.ID, "from", prev.Status, "to", log.Status)
	return nil
}

// fail moves log to failed, notifies the operator and returns cause.
func (o *Orchestrator) fail(ctx context.Context, log *ImportLog, cause error) error {
	// Record the failure even when the run's own context has expired.
	ctx = context.WithoutCancel(ctx)

	step, file := StepFinalize, ""
	var ie *ImportError
	if errors.As(cause, &ie) {
		step, file = ie.Step, ie.File
	}
	o.logger.Error("import failed", "log_id", log.ID, "step", step, "file", file, "error", cause)

	if !log.Status.IsTerminal() {
		err := o.advance(ctx, log, step, func(now time.Time) error {
			return log.Fail(step, cause.Error(), now)
		})
		if err != nil {
			o.logger.Error("recording import failure", "log_id", log.ID, "error", err)
		}
	}

	o.notify(ctx, "failure", log.ID, func(ctx context.Context) error {
		return o.notifier.SendFailure(ctx, log.ID, cause, FailureContext{LogID: log.ID, Filename: file, Step: step})
	})
	return cause
}

// notify sends one notification. Failures and an unconfigured notifier are
// logged, never returned.
func (o *Orchestrator) notify(ctx context.Context, event, logID string, send func(context.Context) error) {
	if o.notifier == nil || !o.notifier.IsConfigured() {
		o.logger.Info("notifier not configured, skipping notification", "event", event, "log_id", logID)
		return
	}
	err := withTimeout(ctx, o.cfg.Timeouts.Notify, send)
	if err != nil {
		o.logger.Warn("notification failed", "event", event, "log_id", logID, "error", err)
		return
	}
	o.logger.Debug("notification sent", "event", event, "log_id", logID)
}

func (o *Orchestrator) storeCall(ctx context.Context, fn func(context.Context) error) error {
	return withTimeout(ctx, o.cfg.Timeouts.Store, fn)
}

func withTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
