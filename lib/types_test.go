package liboralynx_test

import (
	"strings"
	"testing"

	"github.com/ldsec/oralynx/lib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestCleartext(t *testing.T) {
	values := []liboralynx.Fraction{{Num: 6, Den: 1}, {Num: -3, Den: 2}}
	buf := liboralynx.EncodeCleartext(values)
	assert.Len(t, buf, 2*liboralynx.FractionByteSize)

	decoded, err := liboralynx.DecodeCleartext(buf)
	require.NoError(t, err)
	assert.Equal(t, values, decoded)
	assert.Equal(t, "-3/2", decoded[1].String())
	assert.Equal(t, -1.5, decoded[1].Float64())

	_, err = liboralynx.DecodeCleartext(nil)
	assert.Error(t, err)
	_, err = liboralynx.DecodeCleartext(buf[1:])
	assert.Error(t, err)
	_, err = liboralynx.DecodeCleartext(liboralynx.EncodeCleartext([]liboralynx.Fraction{{Num: 1, Den: 0}}))
	assert.Error(t, err)

	// lowest terms only
	for _, f := range []liboralynx.Fraction{{Num: 12, Den: 2}, {Num: 0, Den: 2}, {Num: -6, Den: 4}} {
		_, err = liboralynx.DecodeCleartext(liboralynx.EncodeCleartext([]liboralynx.Fraction{f}))
		assert.Error(t, err, f.String())
	}
	decoded, err = liboralynx.DecodeCleartext(liboralynx.EncodeCleartext([]liboralynx.Fraction{{Num: 0, Den: 1}, {Num: -9223372036854775807, Den: 2}}))
	require.NoError(t, err)
	assert.Len(t, decoded, 2)
}

func TestIdentity(t *testing.T) {
	_, pub := liboralynx.GenKey()
	id, err := liboralynx.IdentityFromPoint(pub)
	require.NoError(t, err)
	assert.Len(t, id.String(), 2+2*liboralynx.IdentitySize)
	assert.False(t, id.IsZero())

	again, err := liboralynx.IdentityFromPoint(pub)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	_, err = liboralynx.ParseIdentity(strings.ToUpper(id.String()[2:]))
	assert.True(t, xerrors.Is(err, liboralynx.ErrInvalidIdentity))
	parsed, err := liboralynx.ParseIdentity(" 0x" + strings.ToUpper(id.String()[2:]) + " ")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = liboralynx.ParseIdentity("0x1234")
	assert.True(t, xerrors.Is(err, liboralynx.ErrInvalidIdentity))
	assert.True(t, liboralynx.Identity("").IsZero())
}
