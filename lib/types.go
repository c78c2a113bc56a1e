package liboralynx

import (
	"encoding/hex"
	"fmt"
)

// BatchID identifies a batch, starting at 1.
type BatchID uint64

// RequestID is the opaque identifier assigned by the decryption oracle to a request.
type RequestID uint64

// Handle is the canonical encoding of an opaque ciphertext.
type Handle []byte

// Clone returns a copy of the handle.
func (h Handle) Clone() Handle {
	c := make(Handle, len(h))
	copy(c, h)
	return c
}

// String returns a short hex prefix of the handle.
func (h Handle) String() string {
	if len(h) > 6 {
		return hex.EncodeToString(h[:6])
	}
	return hex.EncodeToString(h)
}

// HashSize is the size of a fingerprint.
const HashSize = 32

// Hash is a fingerprint binding a request to the encrypted state it was computed over.
type Hash [HashSize]byte

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Batch is the public view of a batch.
type Batch struct {
	ID        BatchID
	Open      bool
	DataCount uint64
}

// String representation of a batch.
func (b Batch) String() string {
	return fmt.Sprintf("Batch{%d, open=%t, count=%d}", b.ID, b.Open, b.DataCount)
}
