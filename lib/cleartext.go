package liboralynx

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/xerrors"
)

// FractionByteSize is the size of an encoded Fraction.
const FractionByteSize = 16

// Fraction is a decrypted value n/d, with d > 0 and the fraction in lowest terms.
type Fraction struct {
	Num int64
	Den int64
}

// Float64 returns the value of the fraction.
func (f Fraction) Float64() float64 {
	return float64(f.Num) / float64(f.Den)
}

// String representation of a fraction.
func (f Fraction) String() string {
	if f.Den == 1 {
		return fmt.Sprintf("%d", f.Num)
	}
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// EncodeCleartext encodes the values decrypted for a request, one per handle, as big-endian (num, den) pairs.
func EncodeCleartext(values []Fraction) []byte {
	buf := make([]byte, FractionByteSize*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint64(buf[i*FractionByteSize:], uint64(v.Num))
		binary.BigEndian.PutUint64(buf[i*FractionByteSize+8:], uint64(v.Den))
	}
	return buf
}

// DecodeCleartext decodes a cleartext produced by EncodeCleartext.
func DecodeCleartext(buf []byte) ([]Fraction, error) {
	if len(buf) == 0 || len(buf)%FractionByteSize != 0 {
		return nil, xerrors.Errorf("cleartext of %d bytes is not a sequence of fractions", len(buf))
	}
	values := make([]Fraction, len(buf)/FractionByteSize)
	for i := range values {
		values[i].Num = int64(binary.BigEndian.Uint64(buf[i*FractionByteSize:]))
		values[i].Den = int64(binary.BigEndian.Uint64(buf[i*FractionByteSize+8:]))
		if values[i].Den <= 0 {
			return nil, xerrors.Errorf("fraction %d has non-positive denominator %d", i, values[i].Den)
		}
		if gcd(abs(values[i].Num), uint64(values[i].Den)) != 1 {
			return nil, xerrors.Errorf("fraction %d (%s) is not in lowest terms", i, values[i])
		}
	}
	return values, nil
}

func abs(n int64) uint64 {
	if n < 0 {
		return uint64(-(n + 1)) + 1
	}
	return uint64(n)
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
