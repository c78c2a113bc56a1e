// Package liboralynxfp computes the fingerprint binding a decryption request to the encrypted aggregate it was
// issued for, and to the protocol instance that issued it.
package liboralynxfp

import (
	"encoding/binary"

	"github.com/ldsec/oralynx/lib"
	"github.com/ldsec/oralynx/lib/aggregation"
	"github.com/satori/go.uuid"
	"github.com/zeebo/blake3"
)

// domain separates fingerprints from other BLAKE3 uses of the module.
const domain = "oralynx/fingerprint/v2"

// Fingerprint hashes the instance identity, the batch id, the number of folded observations and the aggregate
// handles, in order and length-prefixed. Batches are append-only, so the count pins the folded collection even when
// an append leaves the mean unchanged.
func Fingerprint(aggr liboralynxaggr.EncryptedAggregate, instance uuid.UUID) liboralynx.Hash {
	h := blake3.New()
	h.Write([]byte(domain))
	h.Write(instance.Bytes())

	var word [8]byte
	binary.BigEndian.PutUint64(word[:], uint64(aggr.BatchID))
	h.Write(word[:])
	binary.BigEndian.PutUint64(word[:], aggr.Count)
	h.Write(word[:])

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(aggr.Handles)))
	h.Write(length[:])
	for _, handle := range aggr.Handles {
		binary.BigEndian.PutUint32(length[:], uint32(len(handle)))
		h.Write(length[:])
		h.Write(handle)
	}

	var fp liboralynx.Hash
	h.Sum(fp[:0])
	return fp
}
