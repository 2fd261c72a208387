package hrsync

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// Archive stores raw export files for audit, addressed by the SHA-256 of the
// plaintext file. All operations stream so large exports are not buffered
// twice.
type Archive interface {
	// PutContent stores content identified by its checksum.
	// The operation is idempotent: storing the same checksum multiple times is safe.
	// size is the number of bytes that will be read from r.
	PutContent(ctx context.Context, checksum string, r io.Reader, size int64) error

	// GetContent retrieves content by checksum and writes it to w.
	GetContent(ctx context.Context, checksum string, w io.Writer) error

	// HasContent reports whether content with the checksum is already stored.
	HasContent(ctx context.Context, checksum string) (bool, error)

	// ValidateSetup verifies that the archive is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}

// ExportArchiver keeps raw export files in an Archive, encrypting them when
// an Encryptor is set. Files are addressed by the checksum of the plaintext.
type ExportArchiver struct {
	archive   Archive
	encryptor Encryptor
}

// NewExportArchiver creates an archiver. enc may be nil to store plaintext.
func NewExportArchiver(archive Archive, enc Encryptor) *ExportArchiver {
	return &ExportArchiver{archive: archive, encryptor: enc}
}

// Encrypted reports whether archived files are encrypted.
func (a *ExportArchiver) Encrypted() bool { return a.encryptor != nil }

// Store archives data under checksum. Already archived content is skipped.
func (a *ExportArchiver) Store(ctx context.Context, checksum string, data []byte) error {
	has, err := a.archive.HasContent(ctx, checksum)
	if err != nil {
		return fmt.Errorf("checking archive: %w", err)
	}
	if has {
		return nil
	}

	if a.encryptor == nil {
		return a.archive.PutContent(ctx, checksum, bytes.NewReader(data), int64(len(data)))
	}
	var buf bytes.Buffer
	if err := a.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
		return fmt.Errorf("encrypting export: %w", err)
	}
	return a.archive.PutContent(ctx, checksum, &buf, int64(buf.Len()))
}

// Retrieve writes the archived file with checksum to w. dc is required when
// the archive is encrypted.
func (a *ExportArchiver) Retrieve(ctx context.Context, checksum string, dc DecryptionContext, w io.Writer) error {
	if a.encryptor == nil {
		return a.archive.GetContent(ctx, checksum, w)
	}
	if dc == nil {
		return fmt.Errorf("archive is encrypted: decryption context required")
	}

	// Pipe archive output straight into the decryptor.
	pr, pw := io.Pipe()
	errc := make(chan error, 1)
	go func() {
		err := a.archive.GetContent(ctx, checksum, pw)
		pw.CloseWithError(err)
		errc <- err
	}()
	decErr := dc.Decrypt(pr, w)
	pr.Close()
	if err := <-errc; err != nil {
		return fmt.Errorf("reading archived export: %w", err)
	}
	if decErr != nil {
		return fmt.Errorf("decrypting archived export: %w", decErr)
	}
	return nil
}
