package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"hrsync/internal/hrsync"
)

// ErrNotArchived is returned for a checksum that was never archived.
var ErrNotArchived = errors.New("export not archived")

// FileSystemArchive stores exports under root, fanned out by the first two
// characters of the checksum:
//
//	<root>/
//	  ab/
//	    ab12…ef    (one file per checksum)
type FileSystemArchive struct {
	root string
}

var _ hrsync.Archive = (*FileSystemArchive)(nil)

// NewFileSystemArchive creates the root directory if needed.
func NewFileSystemArchive(root string) (*FileSystemArchive, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("creating archive root: %w", err)
	}
	return &FileSystemArchive{root: root}, nil
}

func (a *FileSystemArchive) path(checksum string) (string, error) {
	if len(checksum) < 3 || filepath.Base(checksum) != checksum {
		return "", fmt.Errorf("invalid checksum %q", checksum)
	}
	return filepath.Join(a.root, checksum[:2], checksum), nil
}

// PutContent writes via a temp file and rename so a crash never leaves a
// truncated export under its checksum.
func (a *FileSystemArchive) PutContent(ctx context.Context, checksum string, r io.Reader, size int64) error {
	dest, err := a.path(checksum)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0700); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err != nil {
		tmp.Close()
		return fmt.Errorf("writing archive file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true
	return nil
}

func (a *FileSystemArchive) GetContent(ctx context.Context, checksum string, w io.Writer) error {
	src, err := a.path(checksum)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotArchived, checksum)
	}
	if err != nil {
		return fmt.Errorf("opening archive file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, contextReader{ctx: ctx, r: f}); err != nil {
		return fmt.Errorf("reading archive file: %w", err)
	}
	return nil
}

func (a *FileSystemArchive) HasContent(ctx context.Context, checksum string) (bool, error) {
	p, err := a.path(checksum)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking archive file: %w", err)
	}
	return true, nil
}

// ValidateSetup checks that root is a writable directory.
func (a *FileSystemArchive) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(a.root)
	if err != nil {
		return fmt.Errorf("archive root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root is not a directory: %s", a.root)
	}
	probe, err := os.CreateTemp(a.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("archive root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
