package liboralynx_test

import (
	"sync"
	"testing"

	"github.com/ldsec/oralynx/lib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNullCipherText verifies encryption, decryption and behavior of null ciphertexts.
func TestNullCipherText(t *testing.T) {
	secKey, pubKey := liboralynx.GenKey()

	nullEnc := liboralynx.EncryptInt(pubKey, 0)
	nullDec, ok := liboralynx.DecryptInt(secKey, *nullEnc)
	require.True(t, ok)
	assert.Equal(t, int64(0), nullDec)

	twoTimesNullEnc := liboralynx.NewCipherText()
	twoTimesNullEnc.Add(*nullEnc, *nullEnc)
	twoTimesNullDec, ok := liboralynx.DecryptInt(secKey, *twoTimesNullEnc)
	require.True(t, ok)
	assert.Equal(t, int64(0), twoTimesNullDec)
}

// TestDecryptionConcurrent tests multiple encryptions/decryptions at the same time, negative values included.
func TestDecryptionConcurrent(t *testing.T) {
	numThreads := 5
	sec, pubKey := liboralynx.GenKey()

	var wg sync.WaitGroup
	for i := 0; i < numThreads; i++ {
		wg.Add(1)
		go func(i int64) {
			defer wg.Done()
			for _, v := range []int64{i, -i, 3 * i} {
				val, ok := liboralynx.DecryptInt(sec, *liboralynx.EncryptInt(pubKey, v))
				assert.True(t, ok)
				assert.Equal(t, v, val)
			}
		}(int64(i))
	}
	wg.Wait()
}

// TestHomomorphicOpp tests homomorphic addition and scaling.
func TestHomomorphicOpp(t *testing.T) {
	secKey, pubKey := liboralynx.GenKey()

	values1 := []int64{0, 1, 2, 3, 100}
	values2 := []int64{0, 0, 1, 3, 3}
	targetAdd := []int64{0, 1, 3, 6, 103}
	for i := range values1 {
		sum := liboralynx.NewCipherText()
		sum.Add(*liboralynx.EncryptInt(pubKey, values1[i]), *liboralynx.EncryptInt(pubKey, values2[i]))
		v, ok := liboralynx.DecryptInt(secKey, *sum)
		require.True(t, ok)
		assert.Equal(t, targetAdd[i], v)
	}

	ct := liboralynx.EncryptInt(pubKey, 2)
	ct.MulCipherTextbyScalar(*ct, liboralynx.SuiTe.Scalar().SetInt64(2))
	pMul, ok := liboralynx.DecryptInt(secKey, *ct)
	require.True(t, ok)
	assert.Equal(t, int64(4), pMul)

	// trivial encryption added to a blinded one
	trivial := liboralynx.PointToCipherText(liboralynx.IntToPoint(5))
	assert.True(t, trivial.K.Equal(liboralynx.SuiTe.Point().Null()))
	sum := liboralynx.NewCipherText()
	sum.Add(trivial, *liboralynx.EncryptInt(pubKey, -2))
	v, ok := liboralynx.DecryptInt(secKey, *sum)
	require.True(t, ok)
	assert.Equal(t, int64(3), v)
}

func TestPointTable(t *testing.T) {
	table := liboralynx.NewPointTable(10)
	assert.Equal(t, int64(10), table.Bound())

	for _, v := range []int64{0, 7, -3, 10, -10, 1} {
		m, ok := table.Lookup(liboralynx.IntToPoint(v))
		require.True(t, ok)
		assert.Equal(t, v, m)
	}
	_, ok := table.Lookup(liboralynx.IntToPoint(11))
	assert.False(t, ok)
}

// TestCiphertextConverter tests the ciphertext byte converters.
func TestCiphertextConverter(t *testing.T) {
	secKey, pubKey := liboralynx.GenKey()

	ct := liboralynx.EncryptInt(pubKey, 2)
	ctb, err := ct.ToBytes()
	require.NoError(t, err)
	assert.Len(t, ctb, liboralynx.CipherTextByteSize())

	newCT := liboralynx.NewCipherText()
	require.NoError(t, newCT.FromBytes(ctb))
	assert.True(t, ct.Equal(newCT))
	p, _ := liboralynx.DecryptInt(secKey, *newCT)
	assert.Equal(t, int64(2), p)

	assert.Error(t, newCT.FromBytes(ctb[1:]))

}

func TestEncryptObservations(t *testing.T) {
	secKey, pubKey := liboralynx.GenKey()

	values := make([]int64, 2*liboralynx.VPARALLELIZE+3)
	for i := range values {
		values[i] = int64(i % 17)
	}
	handles, err := liboralynx.EncryptObservations(pubKey, values)
	require.NoError(t, err)
	require.Len(t, handles, len(values))

	for _, i := range []int{0, liboralynx.VPARALLELIZE, len(values) - 1} {
		ct := liboralynx.NewCipherText()
		require.NoError(t, ct.FromBytes(handles[i]))
		v, ok := liboralynx.DecryptInt(secKey, *ct)
		require.True(t, ok)
		assert.Equal(t, values[i], v)
	}

	handles, err = liboralynx.EncryptObservations(pubKey, nil)
	require.NoError(t, err)
	assert.Empty(t, handles)
}
