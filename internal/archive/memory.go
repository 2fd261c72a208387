// Package archive keeps raw export files content-addressed by checksum.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"hrsync/internal/hrsync"
)

// MemoryArchive holds archived content in memory. Safe for concurrent use.
type MemoryArchive struct {
	mu      sync.RWMutex
	content map[string][]byte
}

var _ hrsync.Archive = (*MemoryArchive)(nil)

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{content: make(map[string][]byte)}
}

func (m *MemoryArchive) PutContent(ctx context.Context, checksum string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[checksum] = data
	return nil
}

func (m *MemoryArchive) GetContent(ctx context.Context, checksum string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.content[checksum]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotArchived, checksum)
	}
	_, err := io.Copy(w, bytes.NewReader(data))
	return err
}

func (m *MemoryArchive) HasContent(ctx context.Context, checksum string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.content[checksum]
	return ok, nil
}

func (m *MemoryArchive) ValidateSetup(ctx context.Context) error { return nil }

// Len returns the number of archived files.
func (m *MemoryArchive) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.content)
}
