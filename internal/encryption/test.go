package encryption

import (
	"bytes"
	"fmt"
	"io"

	"hrsync/internal/hrsync"
)

// markerHeader is prepended by MarkerEncryptor so "encrypted" output differs
// from the plaintext while staying trivially reversible.
var markerHeader = []byte("HRENC\x00\x01\x00")

// MarkerEncryptor is a deterministic, non-cryptographic Encryptor for tests
// and local development. It accepts any passphrase.
type MarkerEncryptor struct {
	setupCalled bool
}

var _ hrsync.Encryptor = (*MarkerEncryptor)(nil)

func NewMarkerEncryptor() *MarkerEncryptor {
	return &MarkerEncryptor{}
}

func (e *MarkerEncryptor) Setup(string) error {
	e.setupCalled = true
	return nil
}

func (e *MarkerEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(markerHeader); err != nil {
		return fmt.Errorf("writing marker: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *MarkerEncryptor) Unlock(string) (hrsync.DecryptionContext, error) {
	return markerDecryptor{}, nil
}

func (e *MarkerEncryptor) IsConfigured() bool { return true }

type markerDecryptor struct{}

func (markerDecryptor) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(markerHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading marker: %w", err)
	}
	if !bytes.Equal(header, markerHeader) {
		return fmt.Errorf("not a marker-encrypted export")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
