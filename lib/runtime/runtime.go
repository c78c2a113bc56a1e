// Package liboralynxruntime defines the capability interface of the ciphertext runtime, the external homomorphic
// engine the protocol folds ciphertexts with, and an EC-ElGamal implementation of it.
package liboralynxruntime

import (
	"github.com/ldsec/oralynx/lib"
)

// Runtime is the ciphertext runtime. Handles are opaque: callers never look inside them.
type Runtime interface {
	Add(a, b liboralynx.Handle) (liboralynx.Handle, error)
	Multiply(a, b liboralynx.Handle) (liboralynx.Handle, error)
	Inverse(a liboralynx.Handle) (liboralynx.Handle, error)
	Constant(value int64) (liboralynx.Handle, error)
	Oracle
}

// Oracle holds the decryption-oracle primitives of a runtime.
type Oracle interface {
	// RequestDecryption submits handles for decryption and returns the identifier the callback will carry.
	RequestDecryption(handles []liboralynx.Handle) (liboralynx.RequestID, error)
	// VerifyProof checks that cleartext is the authentic decryption of the handles of request id.
	VerifyProof(id liboralynx.RequestID, cleartext, proof []byte) bool
}
