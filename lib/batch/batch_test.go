package liboralynxbatch_test

import (
	"testing"

	"github.com/ldsec/oralynx/lib"
	"github.com/ldsec/oralynx/lib/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestOpenBatch(t *testing.T) {
	s := liboralynxbatch.NewStore()
	assert.Equal(t, liboralynx.BatchID(0), s.Latest())

	assert.Equal(t, liboralynx.BatchID(1), s.OpenBatch())
	assert.Equal(t, liboralynx.BatchID(2), s.OpenBatch())
	assert.Equal(t, liboralynx.BatchID(2), s.Latest())

	b, err := s.Batch(2)
	require.NoError(t, err)
	assert.Equal(t, liboralynx.Batch{ID: 2, Open: true, DataCount: 0}, b)
}

func TestCloseBatch(t *testing.T) {
	s := liboralynxbatch.NewStore()
	id := s.OpenBatch()
	require.NoError(t, s.Append(id, []liboralynx.Handle{{1}, {2}}))

	assert.True(t, xerrors.Is(s.CloseBatch(0), liboralynx.ErrInvalidBatch))
	assert.True(t, xerrors.Is(s.CloseBatch(2), liboralynx.ErrInvalidBatch))

	require.NoError(t, s.CloseBatch(id))
	assert.True(t, xerrors.Is(s.CloseBatch(id), liboralynx.ErrInvalidBatch))

	// closing keeps the data
	b, err := s.Batch(id)
	require.NoError(t, err)
	assert.False(t, b.Open)
	assert.Equal(t, uint64(2), b.DataCount)
	obs, err := s.Observations(id)
	require.NoError(t, err)
	assert.Equal(t, []liboralynx.Handle{{1}, {2}}, obs)
}

func TestAppend(t *testing.T) {
	s := liboralynxbatch.NewStore()

	assert.True(t, xerrors.Is(s.Append(1, []liboralynx.Handle{{1}}), liboralynx.ErrBatchClosed))

	id := s.OpenBatch()
	require.NoError(t, s.Append(id, []liboralynx.Handle{{1}, {2}}))
	require.NoError(t, s.Append(id, []liboralynx.Handle{{3}}))

	b, err := s.Batch(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), b.DataCount)

	obs, err := s.Observations(id)
	require.NoError(t, err)
	assert.Equal(t, []liboralynx.Handle{{1}, {2}, {3}}, obs)

	// the returned collection is a copy
	obs[0][0] = 9
	obs2, err := s.Observations(id)
	require.NoError(t, err)
	assert.Equal(t, byte(1), obs2[0][0])

	require.NoError(t, s.CloseBatch(id))
	assert.True(t, xerrors.Is(s.Append(id, []liboralynx.Handle{{4}}), liboralynx.ErrBatchClosed))
	b, err = s.Batch(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), b.DataCount)
}
