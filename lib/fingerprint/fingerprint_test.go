package liboralynxfp_test

import (
	"testing"

	"github.com/ldsec/oralynx/lib"
	"github.com/ldsec/oralynx/lib/aggregation"
	"github.com/ldsec/oralynx/lib/fingerprint"
	"github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
)

func aggregate(batch liboralynx.BatchID, count uint64, handles ...liboralynx.Handle) liboralynxaggr.EncryptedAggregate {
	return liboralynxaggr.EncryptedAggregate{BatchID: batch, Count: count, Handles: handles}
}

func TestFingerprintDeterministic(t *testing.T) {
	instance := uuid.NewV4()

	fp1 := liboralynxfp.Fingerprint(aggregate(1, 2, liboralynx.Handle{1, 2, 3}, liboralynx.Handle{4, 5}), instance)
	fp2 := liboralynxfp.Fingerprint(aggregate(1, 2, liboralynx.Handle{1, 2, 3}, liboralynx.Handle{4, 5}), instance)
	assert.Equal(t, fp1, fp2)
}

func TestFingerprintBindings(t *testing.T) {
	instance := uuid.NewV4()
	fp := liboralynxfp.Fingerprint(aggregate(1, 2, liboralynx.Handle{1, 2, 3}, liboralynx.Handle{4, 5}), instance)

	// other instance
	assert.NotEqual(t, fp, liboralynxfp.Fingerprint(aggregate(1, 2, liboralynx.Handle{1, 2, 3}, liboralynx.Handle{4, 5}), uuid.NewV4()))
	// other batch
	assert.NotEqual(t, fp, liboralynxfp.Fingerprint(aggregate(2, 2, liboralynx.Handle{1, 2, 3}, liboralynx.Handle{4, 5}), instance))
	// same handles, more observations folded
	assert.NotEqual(t, fp, liboralynxfp.Fingerprint(aggregate(1, 3, liboralynx.Handle{1, 2, 3}, liboralynx.Handle{4, 5}), instance))
	// order
	assert.NotEqual(t, fp, liboralynxfp.Fingerprint(aggregate(1, 2, liboralynx.Handle{4, 5}, liboralynx.Handle{1, 2, 3}), instance))
	// framing: same concatenation, different split
	assert.NotEqual(t, fp, liboralynxfp.Fingerprint(aggregate(1, 2, liboralynx.Handle{1, 2}, liboralynx.Handle{3, 4, 5}), instance))
	assert.NotEqual(t, fp, liboralynxfp.Fingerprint(aggregate(1, 2, liboralynx.Handle{1, 2, 3, 4, 5}), instance))
}
