// Package liboralynxbatch owns the lifecycle of batches and the append-only collections of ciphertexts submitted to
// them.
package liboralynxbatch

import (
	"sync"

	"github.com/ldsec/oralynx/lib"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

type batch struct {
	open         bool
	observations []liboralynx.Handle
}

// Store contains all the batches. Batches are never deleted and their observations are never removed.
type Store struct {
	mutex   sync.RWMutex
	batches []*batch // batches[i] has id i+1
}

// NewStore is the store constructor.
func NewStore() *Store {
	return &Store{}
}

// OpenBatch allocates the next batch id, opened and empty.
func (s *Store) OpenBatch() liboralynx.BatchID {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.batches = append(s.batches, &batch{open: true})
	id := liboralynx.BatchID(len(s.batches))
	log.Lvl2("opened batch", id)
	return id
}

// CloseBatch closes an open batch. Its observations are kept.
func (s *Store) CloseBatch(id liboralynx.BatchID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	b := s.get(id)
	if b == nil {
		return xerrors.Errorf("closing unknown batch %d: %w", id, liboralynx.ErrInvalidBatch)
	}
	if !b.open {
		return xerrors.Errorf("batch %d is already closed: %w", id, liboralynx.ErrInvalidBatch)
	}
	b.open = false
	log.Lvl2("closed batch", id)
	return nil
}

// Append adds the observations, in order, to an open batch.
func (s *Store) Append(id liboralynx.BatchID, observations []liboralynx.Handle) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	b := s.get(id)
	if b == nil || !b.open {
		return xerrors.Errorf("appending to batch %d: %w", id, liboralynx.ErrBatchClosed)
	}
	for _, o := range observations {
		b.observations = append(b.observations, o.Clone())
	}
	log.Lvl3("appended", len(observations), "observation(s) to batch", id)
	return nil
}

// Batch returns the public view of a batch.
func (s *Store) Batch(id liboralynx.BatchID) (liboralynx.Batch, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	b := s.get(id)
	if b == nil {
		return liboralynx.Batch{}, xerrors.Errorf("batch %d: %w", id, liboralynx.ErrInvalidBatch)
	}
	return liboralynx.Batch{ID: id, Open: b.open, DataCount: uint64(len(b.observations))}, nil
}

// Observations returns a copy of the observations of a batch, in insertion order.
func (s *Store) Observations(id liboralynx.BatchID) ([]liboralynx.Handle, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	b := s.get(id)
	if b == nil {
		return nil, xerrors.Errorf("batch %d: %w", id, liboralynx.ErrInvalidBatch)
	}
	obs := make([]liboralynx.Handle, len(b.observations))
	for i, o := range b.observations {
		obs[i] = o.Clone()
	}
	return obs, nil
}

// Latest returns the highest allocated batch id, 0 if none.
func (s *Store) Latest() liboralynx.BatchID {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return liboralynx.BatchID(len(s.batches))
}

func (s *Store) get(id liboralynx.BatchID) *batch {
	if id == 0 || uint64(id) > uint64(len(s.batches)) {
		return nil
	}
	return s.batches[id-1]
}
