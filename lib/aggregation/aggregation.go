// Package liboralynxaggr folds the ciphertexts of a batch into an encrypted mean, without leaving the encrypted
// domain.
package liboralynxaggr

import (
	"github.com/ldsec/oralynx/lib"
	"github.com/ldsec/oralynx/lib/runtime"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Source gives read-only access to the observations of a batch, in insertion order.
type Source interface {
	Observations(id liboralynx.BatchID) ([]liboralynx.Handle, error)
}

// EncryptedAggregate is the result of a fold.
type EncryptedAggregate struct {
	BatchID liboralynx.BatchID
	Count   uint64
	// Handles are the ciphertexts sent to the decryption oracle; a mean is a single ciphertext.
	Handles []liboralynx.Handle
}

// Engine folds batches with the homomorphic operators of a runtime.
type Engine struct {
	runtime liboralynxruntime.Runtime
	source  Source
}

// NewEngine creates an aggregation engine.
func NewEngine(rt liboralynxruntime.Runtime, source Source) *Engine {
	return &Engine{runtime: rt, source: source}
}

// Fold computes the encrypted mean of a batch: the sum of its ciphertexts in insertion order, multiplied by the
// inverse of the encrypted count. Folding the same collection twice gives identical handles.
func (e *Engine) Fold(id liboralynx.BatchID) (EncryptedAggregate, error) {
	observations, err := e.source.Observations(id)
	if err != nil {
		return EncryptedAggregate{}, err
	}
	if len(observations) == 0 {
		return EncryptedAggregate{}, xerrors.Errorf("folding batch %d: %w", id, liboralynx.ErrEmptyBatch)
	}

	timer := liboralynx.StartTimer("Fold")
	defer liboralynx.EndTimer(timer)

	sum := observations[0]
	for i := 1; i < len(observations); i++ {
		sum, err = e.runtime.Add(sum, observations[i])
		if err != nil {
			return EncryptedAggregate{}, xerrors.Errorf("adding observation %d of batch %d: %w", i, id, err)
		}
	}

	count, err := e.runtime.Constant(int64(len(observations)))
	if err != nil {
		return EncryptedAggregate{}, xerrors.Errorf("encrypting count: %w", err)
	}
	inv, err := e.runtime.Inverse(count)
	if err != nil {
		return EncryptedAggregate{}, xerrors.Errorf("inverting count: %w", err)
	}
	mean, err := e.runtime.Multiply(sum, inv)
	if err != nil {
		return EncryptedAggregate{}, xerrors.Errorf("dividing sum: %w", err)
	}

	log.Lvl3("folded", len(observations), "observation(s) of batch", id)
	return EncryptedAggregate{
		BatchID: id,
		Count:   uint64(len(observations)),
		Handles: []liboralynx.Handle{mean},
	}, nil
}
