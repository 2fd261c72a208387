package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hrsync/internal/hrsync"
)

// FileSystemSource reads exports from a local drop directory. Remote
// directories are resolved under root and may not escape it.
type FileSystemSource struct {
	root string
}

var _ hrsync.FileSource = (*FileSystemSource)(nil)

// NewFileSystemSource creates a source rooted at root.
func NewFileSystemSource(root string) (*FileSystemSource, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving source root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("source root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root is not a directory: %s", abs)
	}
	return &FileSystemSource{root: abs}, nil
}

func (s *FileSystemSource) resolve(p string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(p))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes source root", p)
	}
	return full, nil
}

// ListFiles returns the regular files directly inside dir. Symlinks, devices
// and other special files are skipped.
func (s *FileSystemSource) ListFiles(ctx context.Context, dir string) ([]hrsync.RemoteFile, error) {
	full, err := s.resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var files []hrsync.RemoteFile
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		files = append(files, hrsync.RemoteFile{
			Name:       entry.Name(),
			Path:       filepath.ToSlash(filepath.Join(dir, entry.Name())),
			Size:       info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}
	return files, nil
}

func (s *FileSystemSource) Download(ctx context.Context, p string) ([]byte, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	info, err := os.Lstat(full)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", p)
	}
	return os.ReadFile(full)
}

func (s *FileSystemSource) Close() error { return nil }
