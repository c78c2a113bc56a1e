package liboralynx

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"
)

// IdentitySize is the number of bytes of an identity.
const IdentitySize = 20

// Identity is the address-like name of a principal: "0x" followed by the hex encoding of the first IdentitySize bytes
// of the BLAKE3 hash of its public key.
type Identity string

// IdentityFromPoint derives the identity of the owner of a public key.
func IdentityFromPoint(pub kyber.Point) (Identity, error) {
	b, err := pub.MarshalBinary()
	if err != nil {
		return "", err
	}
	digest := blake3.Sum256(b)
	return Identity("0x" + hex.EncodeToString(digest[:IdentitySize])), nil
}

// ParseIdentity checks and normalizes the textual form of an identity.
func ParseIdentity(s string) (Identity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "0x") {
		return "", xerrors.Errorf("%q: missing 0x prefix: %w", s, ErrInvalidIdentity)
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil || len(raw) != IdentitySize {
		return "", xerrors.Errorf("%q: %w", s, ErrInvalidIdentity)
	}
	return Identity(s), nil
}

// IsZero is true for the empty identity.
func (id Identity) IsZero() bool {
	return id == ""
}

// String returns the textual form of the identity.
func (id Identity) String() string {
	return string(id)
}
