package liboralynx

import (
	"fmt"
	"sync"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/random"
	"golang.org/x/xerrors"
)

// CipherText is an ElGamal encrypted point.
type CipherText struct {
	K, C kyber.Point
}

// Constructors
//______________________________________________________________________________________________________________________

// NewCipherText creates a ciphertext of null elements.
func NewCipherText() *CipherText {
	return &CipherText{K: SuiTe.Point().Null(), C: SuiTe.Point().Null()}
}

// Key Pairs (mostly used in tests)
//----------------------------------------------------------------------------------------------------------------------

// GenKey permits to generate a public/private key pairs.
func GenKey() (secKey kyber.Scalar, pubKey kyber.Point) {
	secKey = SuiTe.Scalar().Pick(random.New())
	pubKey = SuiTe.Point().Mul(secKey, SuiTe.Point().Base())
	return
}

// Encryption
//______________________________________________________________________________________________________________________

// encryptPoint creates an elliptic curve point from a non-encrypted point and encrypt it using ElGamal encryption.
func encryptPoint(pubkey kyber.Point, M kyber.Point) (*CipherText, kyber.Scalar) {
	B := SuiTe.Point().Base()
	r := SuiTe.Scalar().Pick(random.New()) // ephemeral private key
	// ElGamal-encrypt the point to produce ciphertext (K,C).
	K := SuiTe.Point().Mul(r, B)      // ephemeral DH public key
	S := SuiTe.Point().Mul(r, pubkey) // ephemeral DH shared secret
	C := S.Add(S, M)                  // message blinded with secret
	return &CipherText{K, C}, r
}

// IntToPoint maps an integer to a point in the elliptic curve
func IntToPoint(integer int64) kyber.Point {
	B := SuiTe.Point().Base()
	i := SuiTe.Scalar().SetInt64(integer)
	return SuiTe.Point().Mul(i, B)
}

// PointToCipherText converts a point into a ciphertext
func PointToCipherText(point kyber.Point) CipherText {
	return CipherText{K: SuiTe.Point().Null(), C: point}
}

// EncryptInt encodes i as iB, encrypt it into a CipherText and returns a pointer to it.
func EncryptInt(pubkey kyber.Point, integer int64) *CipherText {
	ct, _ := encryptPoint(pubkey, IntToPoint(integer))
	return ct
}

// EncryptObservations encrypts each value under pubkey and returns the marshalled ciphertexts, in order.
func EncryptObservations(pubkey kyber.Point, values []int64) ([]Handle, error) {
	handles := make([]Handle, len(values))

	nbrWorkers := (len(values) + VPARALLELIZE - 1) / VPARALLELIZE
	wg := StartParallelize(uint(nbrWorkers))
	for i := 0; i < len(values); i = i + VPARALLELIZE {
		go func(i int) {
			for j := 0; j < VPARALLELIZE && (j+i < len(values)); j++ {
				b, err := EncryptInt(pubkey, values[j+i]).ToBytes()
				if err != nil {
					wg.Done(xerrors.Errorf("observation %d: %w", j+i, err))
					return
				}
				handles[j+i] = b
			}
			wg.Done(nil)
		}(i)
	}
	if err := EndParallelize(wg); err != nil {
		return nil, err
	}
	return handles, nil
}

// Decryption
//______________________________________________________________________________________________________________________

// DecryptPoint decrypts an elliptic point from an El-Gamal cipher text.
func DecryptPoint(prikey kyber.Scalar, c CipherText) kyber.Point {
	S := SuiTe.Point().Mul(prikey, c.K) // regenerate shared secret
	return SuiTe.Point().Sub(c.C, S)    // use to un-blind the message
}

// DecryptInt decrypts an integer from an ElGamal cipher text where integer are encoded in the exponent.
// A failed decryption returns 0 and false.
func DecryptInt(prikey kyber.Scalar, cipher CipherText) (int64, bool) {
	return DefaultPointTable().Lookup(DecryptPoint(prikey, cipher))
}

// PointTable maps points mB to m for |m| <= bound. It is filled lazily, in both directions at once, so that small
// values are found without building the whole table.
type PointTable struct {
	mutex  sync.Mutex
	bound  int64
	points map[string]int64
	next   int64
	pos    kyber.Point
	neg    kyber.Point
}

var defaultTable struct {
	once  sync.Once
	table *PointTable
}

// DefaultPointTable returns the process-wide table bounded by MaxHomomorphicInt.
func DefaultPointTable() *PointTable {
	defaultTable.once.Do(func() {
		defaultTable.table = NewPointTable(MaxHomomorphicInt)
	})
	return defaultTable.table
}

// NewPointTable creates a discrete logarithm table for integers in [-bound, bound].
func NewPointTable(bound int64) *PointTable {
	t := &PointTable{
		bound:  bound,
		points: make(map[string]int64),
		next:   1,
		pos:    SuiTe.Point().Null(),
		neg:    SuiTe.Point().Null(),
	}
	t.points[pointKey(t.pos)] = 0
	return t
}

// Bound returns the largest absolute value the table can recover.
func (t *PointTable) Bound() int64 {
	return t.bound
}

// Lookup brute-forces the discrete log of P.
func (t *PointTable) Lookup(P kyber.Point) (int64, bool) {
	key := pointKey(P)

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if m, ok := t.points[key]; ok {
		return m, true
	}

	B := SuiTe.Point().Base()
	for ; t.next <= t.bound; t.next++ {
		t.pos = SuiTe.Point().Add(t.pos, B)
		t.neg = SuiTe.Point().Sub(t.neg, B)
		t.points[pointKey(t.pos)] = t.next
		t.points[pointKey(t.neg)] = -t.next
		if m, ok := t.points[key]; ok {
			t.next++
			return m, true
		}
	}
	return 0, false
}

func pointKey(P kyber.Point) string {
	b, err := P.MarshalBinary()
	if err != nil {
		return ""
	}
	return string(b)
}

// Homomorphic operations
//______________________________________________________________________________________________________________________

// Add two ciphertexts and stores result in receiver.
func (c *CipherText) Add(c1, c2 CipherText) {
	c.C = SuiTe.Point().Add(c1.C, c2.C)
	c.K = SuiTe.Point().Add(c1.K, c2.K)
}

// MulCipherTextbyScalar multiplies two components of a ciphertext by a scalar
func (c *CipherText) MulCipherTextbyScalar(cMul CipherText, a kyber.Scalar) {
	c.C = SuiTe.Point().Mul(a, cMul.C)
	c.K = SuiTe.Point().Mul(a, cMul.K)
}

// Equal checks equality between ciphertexts.
func (c *CipherText) Equal(c2 *CipherText) bool {
	return c2.K.Equal(c.K) && c2.C.Equal(c.C)
}

// String returns a string representation of a ciphertext.
func (c *CipherText) String() string {
	cstr := "nil"
	kstr := cstr
	if c.C != nil {
		cstr = c.C.String()[1:7]
	}
	if c.K != nil {
		kstr = c.K.String()[1:7]
	}
	return fmt.Sprintf("CipherText{%s,%s}", kstr, cstr)
}

// Conversion
//______________________________________________________________________________________________________________________

// CipherTextByteSize is the size of a marshalled ciphertext.
func CipherTextByteSize() int {
	return 2 * SuiTe.PointLen()
}

// ToBytes converts a CipherText to a byte array
func (c *CipherText) ToBytes() ([]byte, error) {
	k, err := c.K.MarshalBinary()
	if err != nil {
		return nil, err
	}
	cP, err := c.C.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(k, cP...), nil
}

// FromBytes converts a byte array to a CipherText. Note that you need to create the (empty) object beforehand.
func (c *CipherText) FromBytes(data []byte) error {
	if len(data) != CipherTextByteSize() {
		return xerrors.Errorf("ciphertext of %d bytes, expected %d", len(data), CipherTextByteSize())
	}
	pointLen := SuiTe.PointLen()
	c.K = SuiTe.Point()
	c.C = SuiTe.Point()
	if err := c.K.UnmarshalBinary(data[:pointLen]); err != nil {
		return err
	}
	return c.C.UnmarshalBinary(data[pointLen:])
}
