package hrsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
)

// fetchedFile is one downloaded and parsed source file of a run.
type fetchedFile struct {
	spec       SourceSpec
	remote     RemoteFile
	version    *FileVersion
	table      *Table
	comparison ComparisonResult
}

// fetchAll downloads, parses and structure-checks every configured source in
// table order. Optional sources with no matching file are skipped.
func (o *Orchestrator) fetchAll(ctx context.Context, log *ImportLog) ([]*fetchedFile, error) {
	var files []*fetchedFile
	for _, spec := range o.sources {
		f, err := o.fetch(ctx, log, spec)
		if err != nil {
			return nil, err
		}
		if f == nil {
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

func (o *Orchestrator) fetch(ctx context.Context, log *ImportLog, spec SourceSpec) (*fetchedFile, error) {
	var listing []RemoteFile
	err := o.withRetry(ctx, StepList, spec.Name, func(ctx context.Context) error {
		var err error
		listing, err = o.source.ListFiles(ctx, spec.Dir)
		return err
	})
	if err != nil {
		return nil, newImportError(KindConnectivity, StepList, spec.Name, fmt.Errorf("listing %s: %w", spec.Dir, err))
	}

	pattern := spec.Pattern
	if pattern == "" {
		pattern = spec.Name
	}
	remote, ok := NewFileMatcher([]string{pattern}, spec.Exclude).SelectNewest(listing)
	if !ok {
		if spec.Required {
			return nil, newImportError(KindParse, StepList, spec.Name, fmt.Errorf("no file in %s matches %q", spec.Dir, pattern))
		}
		o.logger.Warn("optional source missing, skipping", "log_id", log.ID, "source", spec.Name, "pattern", pattern)
		return nil, nil
	}
	if remote.Path == "" {
		remote.Path = path.Join(spec.Dir, remote.Name)
	}

	var data []byte
	err = o.withRetry(ctx, StepDownload, remote.Name, func(ctx context.Context) error {
		var err error
		data, err = o.source.Download(ctx, remote.Path)
		return err
	})
	if err != nil {
		return nil, newImportError(KindConnectivity, StepDownload, remote.Name, fmt.Errorf("downloading %s: %w", remote.Path, err))
	}
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])
	o.logger.Info("file downloaded", "log_id", log.ID, "source", spec.Name, "file", remote.Name, "size", len(data), "checksum", checksum)

	archived := o.archive(ctx, log, remote, checksum, data)

	table, err := o.parser.Parse(remote.Name, data, spec.Parse)
	if err != nil {
		return nil, newImportError(KindParse, StepParse, remote.Name, err)
	}
	if spec.Required && len(table.Records) == 0 {
		return nil, newImportError(KindParse, StepParse, remote.Name, errors.New("file contains no records"))
	}

	version := &FileVersion{
		ID:          o.idgen.New(),
		ImportLogID: log.ID,
		SourceName:  spec.Name,
		Table:       spec.Table,
		Filename:    remote.Name,
		Checksum:    checksum,
		Size:        int64(len(data)),
		ModifiedAt:  remote.ModifiedAt,
		RowCount:    len(table.Records),
		Archived:    archived,
		CreatedAt:   o.clock.Now(),
	}
	err = o.storeCall(ctx, func(ctx context.Context) error {
		return o.db.CreateFileVersion(ctx, version)
	})
	if err != nil {
		return nil, newImportError(KindStore, StepDownload, remote.Name, fmt.Errorf("recording file version: %w", err))
	}

	var cmp ComparisonResult
	err = o.storeCall(ctx, func(ctx context.Context) error {
		var err error
		cmp, err = o.structures.Compare(ctx, spec.Name, table.Columns)
		return err
	})
	if err != nil {
		return nil, newImportError(KindStore, StepStructure, remote.Name, err)
	}
	switch {
	case cmp.IsFirstImport:
		o.logger.Info("first import of file, recording baseline", "log_id", log.ID, "source", spec.Name, "columns", len(table.Columns))
	case cmp.HasChanges:
		o.logger.Warn("structure changed", "log_id", log.ID, "source", spec.Name, "added", cmp.Added, "removed", cmp.Removed)
	}

	return &fetchedFile{spec: spec, remote: remote, version: version, table: table, comparison: cmp}, nil
}

// archive stores the raw file when an archiver is configured. Failures are
// warnings.
func (o *Orchestrator) archive(ctx context.Context, log *ImportLog, remote RemoteFile, checksum string, data []byte) bool {
	if o.archiver == nil {
		return false
	}
	err := withTimeout(ctx, o.cfg.Timeouts.Download, func(ctx context.Context) error {
		return o.archiver.Store(ctx, checksum, data)
	})
	if err != nil {
		o.logger.Warn("archiving file failed", "log_id", log.ID, "file", remote.Name, "error", err)
		return false
	}
	return true
}

// withRetry runs a file source call under the download timeout, retrying
// once when enabled and the parent context is still live.
func (o *Orchestrator) withRetry(ctx context.Context, step, name string, fn func(context.Context) error) error {
	err := withTimeout(ctx, o.cfg.Timeouts.Download, fn)
	if err == nil || !o.cfg.RetryConnectivity || ctx.Err() != nil {
		return err
	}
	o.logger.Warn("file source call failed, retrying", "step", step, "file", name, "error", err)
	return withTimeout(ctx, o.cfg.Timeouts.Download, fn)
}

// structureChanges collects the drift of every changed file, keyed by source
// name.
func structureChanges(files []*fetchedFile) map[string]StructureChange {
	changes := make(map[string]StructureChange)
	for _, f := range files {
		if f.comparison.HasChanges {
			changes[f.spec.Name] = f.comparison.Change()
		}
	}
	return changes
}

// sameChanges reports whether two drift maps describe the same columns.
func sameChanges(a, b map[string]StructureChange) bool {
	if len(a) != len(b) {
		return false
	}
	for name, ca := range a {
		cb, ok := b[name]
		if !ok || !ca.Equal(cb) {
			return false
		}
	}
	return true
}
