package testutil

import (
	"hrsync/internal/encryption"
	"hrsync/internal/hrsync"
)

// NewTestEncryptor returns a reversible, non-cryptographic encryptor.
func NewTestEncryptor() hrsync.Encryptor {
	return encryption.NewMarkerEncryptor()
}
