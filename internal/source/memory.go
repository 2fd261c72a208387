// Package source implements the remote drop locations HR exports are
// fetched from.
package source

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"hrsync/internal/hrsync"
)

// MemorySource serves files from memory. Safe for concurrent use.
type MemorySource struct {
	mu    sync.RWMutex
	files map[string]memoryFile // keyed by full path

	// ListErr and DownloadErr, when set, are returned by the next call and
	// then cleared.
	ListErr     error
	DownloadErr error

	lists     int
	downloads int
}

type memoryFile struct {
	data     []byte
	modified time.Time
}

var _ hrsync.FileSource = (*MemorySource)(nil)

func NewMemorySource() *MemorySource {
	return &MemorySource{files: make(map[string]memoryFile)}
}

// Put adds or replaces the file at p.
func (m *MemorySource) Put(p string, data []byte, modified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path.Clean(p)] = memoryFile{data: data, modified: modified}
}

// Remove deletes the file at p.
func (m *MemorySource) Remove(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path.Clean(p))
}

func (m *MemorySource) ListFiles(ctx context.Context, dir string) ([]hrsync.RemoteFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if err := m.ListErr; err != nil {
		m.ListErr = nil
		return nil, err
	}

	dir = path.Clean(dir)
	var out []hrsync.RemoteFile
	for p, f := range m.files {
		if path.Dir(p) != dir {
			continue
		}
		out = append(out, hrsync.RemoteFile{
			Name:       path.Base(p),
			Path:       p,
			Size:       int64(len(f.data)),
			ModifiedAt: f.modified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemorySource) Download(ctx context.Context, p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads++
	if err := m.DownloadErr; err != nil {
		m.DownloadErr = nil
		return nil, err
	}
	f, ok := m.files[path.Clean(p)]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", p)
	}
	data := make([]byte, len(f.data))
	copy(data, f.data)
	return data, nil
}

func (m *MemorySource) Close() error { return nil }

// Calls returns the number of ListFiles and Download calls so far.
func (m *MemorySource) Calls() (lists, downloads int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lists, m.downloads
}
