package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"hrsync/internal/archive"
	"hrsync/internal/config"
	"hrsync/internal/database"
	"hrsync/internal/encryption"
	"hrsync/internal/hrsync"
	"hrsync/internal/notify"
	"hrsync/internal/parse"
	"hrsync/internal/source"
)

// Options tunes how an HRSyncApp is opened.
type Options struct {
	// Parameters are logged with the operation summary.
	Parameters string
	// Verbose enables debug logging.
	Verbose bool
}

// HRSyncApp is the application layer between the CLI and the import
// orchestrator. It constructs all dependencies from config, exposes
// high-level operations and closes every resource on Close.
type HRSyncApp struct {
	cfg       *config.Config
	db        *database.SQLDatabase
	source    hrsync.FileSource
	archiver  *hrsync.ExportArchiver
	encryptor hrsync.Encryptor
	orch      *hrsync.Orchestrator
	logger    *slog.Logger
	op        *Operation
	logFile   *os.File
}

// NewHRSyncApp creates a fully wired HRSyncApp from the given config.
// operation identifies the CLI command being run (e.g. "RunImport").
// The caller must call Close when done.
func NewHRSyncApp(ctx context.Context, cfg *config.Config, operation string, opts Options) (*HRSyncApp, error) {
	clock := hrsync.RealClock{}
	runID := clock.Now().Format("20060102T150405Z")

	logger, logFile, err := newLogger(cfg.LogDir, runID, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	adapter := &slogAdapter{l: logger}

	a := &HRSyncApp{
		cfg:     cfg,
		logger:  logger,
		op:      NewOperation(operation, opts.Parameters, clock.Now()),
		logFile: logFile,
	}
	if err := a.open(ctx, clock, adapter); err != nil {
		a.closeResources()
		return nil, err
	}
	logger.Debug("operation started", "operation", operation, "parameters", opts.Parameters)
	return a, nil
}

func (a *HRSyncApp) open(ctx context.Context, clock hrsync.Clock, logger hrsync.Logger) error {
	cfg := a.cfg

	db, err := database.NewDatabaseFromConfig(ctx, cfg.Database, clock)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db
	if cfg.Database.Type != "memory" {
		if err := db.CheckMigrations(); err != nil {
			return fmt.Errorf("database schema out of date (run `hrsync db migrate`): %w", err)
		}
	}

	src, err := source.NewSourceFromConfig(ctx, cfg.Source, cfg.Timeouts.Connect.Duration)
	if err != nil {
		return fmt.Errorf("creating file source: %w", err)
	}
	a.source = src

	arc, err := archive.NewArchiveFromConfig(ctx, cfg.Archive)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	if arc != nil {
		var enc hrsync.Encryptor
		if cfg.Archive.Encrypt {
			enc, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
			if err != nil {
				return fmt.Errorf("creating encryptor: %w", err)
			}
			if !enc.IsConfigured() {
				return fmt.Errorf("archive encryption enabled but no keys found: run `hrsync keys init`")
			}
			a.encryptor = enc
		}
		a.archiver = hrsync.NewExportArchiver(arc, enc)
	}

	notifier, err := notify.NewNotifierFromConfig(cfg.Notify, cfg.Timeouts.Notify.Duration, logger)
	if err != nil {
		return fmt.Errorf("creating notifier: %w", err)
	}

	a.orch = hrsync.NewOrchestrator(hrsync.Collaborators{
		Database: db,
		Source:   src,
		Parser:   parse.New(),
		Notifier: notifier,
		Archiver: a.archiver,
		Logger:   logger,
		Clock:    clock,
		IDGen:    hrsync.UUIDGenerator{},
	}, OrchestratorConfig(cfg))
	return nil
}

// OrchestratorConfig maps the configuration onto the orchestrator's.
func OrchestratorConfig(cfg *config.Config) hrsync.OrchestratorConfig {
	return hrsync.OrchestratorConfig{
		Sources: SourceSpecs(cfg),
		Timeouts: hrsync.Timeouts{
			Download: cfg.Timeouts.Download.Duration,
			Store:    cfg.Timeouts.Store.Duration,
			Notify:   cfg.Timeouts.Notify.Duration,
		},
		DiffBatchSize:     cfg.Import.DiffBatchSize,
		RetryConnectivity: cfg.Import.RetryConnectivity,
	}
}

// SourceSpecs converts the configured [[sources]] into source specs. A source
// without a directory uses [source].dir, and a source without a batch size
// uses the table default, then [import].default_batch_size.
func SourceSpecs(cfg *config.Config) []hrsync.SourceSpec {
	specs := make([]hrsync.SourceSpec, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		dir := s.Dir
		if dir == "" {
			dir = cfg.Source.Dir
		}
		batch := s.BatchSize
		if batch == 0 {
			if n, ok := hrsync.DefaultBatchSizes[s.Table]; ok {
				batch = n
			} else {
				batch = cfg.Import.DefaultBatchSize
			}
		}
		specs = append(specs, hrsync.SourceSpec{
			Name:      s.Name,
			Table:     s.Table,
			Dir:       dir,
			Pattern:   s.Pattern,
			Exclude:   s.Exclude,
			KeyFields: s.Key,
			BatchSize: batch,
			Required:  s.Required,
			Parse: hrsync.ParseOptions{
				Format:      s.Format,
				ColumnTypes: s.ColumnTypes,
				ColumnMap:   s.ColumnMap,
			},
		})
	}
	return specs
}

// RunImport performs one import attempt.
func (a *HRSyncApp) RunImport(ctx context.Context, trigger hrsync.TriggerType) (*hrsync.ImportLog, error) {
	log, err := a.orch.Run(ctx, trigger)
	return log, a.op.Track(err)
}

// ApproveImport authorizes a run that is awaiting approval. When resume is
// set the run continues immediately.
func (a *HRSyncApp) ApproveImport(ctx context.Context, logID, by string, resume bool) (*hrsync.ImportLog, error) {
	log, err := a.orch.Approve(ctx, logID, by)
	if err != nil || !resume {
		return log, a.op.Track(err)
	}
	log, err = a.orch.Resume(ctx, logID)
	return log, a.op.Track(err)
}

// RejectImport fails a run that is awaiting approval.
func (a *HRSyncApp) RejectImport(ctx context.Context, logID, by, reason string) (*hrsync.ImportLog, error) {
	log, err := a.orch.Reject(ctx, logID, by, reason)
	return log, a.op.Track(err)
}

// ResumeImport continues an approved run.
func (a *HRSyncApp) ResumeImport(ctx context.Context, logID string) (*hrsync.ImportLog, error) {
	log, err := a.orch.Resume(ctx, logID)
	return log, a.op.Track(err)
}

// ListImports returns recent runs. statuses, when given, restrict the result.
func (a *HRSyncApp) ListImports(ctx context.Context, limit int, statuses []string) ([]*hrsync.ImportLog, error) {
	parsed := make([]hrsync.Status, 0, len(statuses))
	for _, s := range statuses {
		st := hrsync.Status(strings.TrimSpace(s))
		if !st.Valid() {
			return nil, a.op.Track(fmt.Errorf("unknown status %q", s))
		}
		parsed = append(parsed, st)
	}
	logs, err := a.orch.ListImportLogs(ctx, limit, parsed...)
	return logs, a.op.Track(err)
}

// PendingApprovals returns the runs awaiting an operator decision.
func (a *HRSyncApp) PendingApprovals(ctx context.Context) ([]*hrsync.ImportLog, error) {
	logs, err := a.orch.PendingApprovals(ctx)
	return logs, a.op.Track(err)
}

// ImportDetails is everything recorded about one run.
type ImportDetails struct {
	Log   *hrsync.ImportLog
	Files []*hrsync.FileVersion
	Diffs map[string]hrsync.DiffCounts
}

// ShowImport returns a run with its files and persisted diff counts.
func (a *HRSyncApp) ShowImport(ctx context.Context, logID string) (*ImportDetails, error) {
	log, err := a.orch.GetImportLog(ctx, logID)
	if err != nil {
		return nil, a.op.Track(err)
	}
	files, err := a.orch.FileVersions(ctx, logID)
	if err != nil {
		return nil, a.op.Track(err)
	}
	diffs, err := a.orch.CountDiffs(ctx, logID)
	if err != nil {
		return nil, a.op.Track(err)
	}
	return &ImportDetails{Log: log, Files: files, Diffs: diffs}, nil
}

// ListDiffs returns the persisted record diffs of a run.
func (a *HRSyncApp) ListDiffs(ctx context.Context, logID string, filter hrsync.DiffFilter) ([]*hrsync.DiffRecord, error) {
	diffs, err := a.orch.ListDiffs(ctx, logID, filter)
	return diffs, a.op.Track(err)
}

// StructureHistory returns the structure snapshots of a source, newest first.
func (a *HRSyncApp) StructureHistory(ctx context.Context, name string) ([]*hrsync.FileStructureSnapshot, error) {
	snaps, err := a.orch.StructureHistory(ctx, name)
	return snaps, a.op.Track(err)
}

// CountRecords returns the number of stored records in table.
func (a *HRSyncApp) CountRecords(ctx context.Context, table string) (int, error) {
	n, err := a.orch.CountRecords(ctx, table)
	return n, a.op.Track(err)
}

// ArchiveEncrypted reports whether archived exports need a passphrase.
func (a *HRSyncApp) ArchiveEncrypted() bool {
	return a.archiver != nil && a.archiver.Encrypted()
}

// RetrieveExport writes the archived export with checksum to w. passphrase
// unlocks the private key when the archive is encrypted.
func (a *HRSyncApp) RetrieveExport(ctx context.Context, checksum, passphrase string, w io.Writer) error {
	if a.archiver == nil {
		return a.op.Track(errors.New("no archive configured"))
	}
	var dc hrsync.DecryptionContext
	if a.archiver.Encrypted() {
		var err error
		dc, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return a.op.Track(fmt.Errorf("unlocking private key: %w", err))
		}
	}
	return a.op.Track(a.archiver.Retrieve(ctx, checksum, dc, w))
}

// Close logs the operation summary and closes all resources.
func (a *HRSyncApp) Close() error {
	now := time.Now().UTC()
	a.logger.Info("operation finished",
		"operation", a.op.Name,
		"parameters", a.op.Parameters,
		"status", a.op.Status,
		"duration", a.op.Duration(now).Truncate(time.Millisecond))
	return a.closeResources()
}

func (a *HRSyncApp) closeResources() error {
	var firstErr error
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			firstErr = fmt.Errorf("closing file source: %w", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// MigrateDatabase applies all pending schema migrations.
func MigrateDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(ctx, cfg.Database, hrsync.RealClock{})
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// InitKeys generates the archive key pair protected by passphrase.
func InitKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("generating keys: %w", err)
	}
	return nil
}
