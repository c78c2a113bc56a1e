package liboralynxruntime

import (
	"github.com/fanliao/go-concurrentMap"
	"github.com/ldsec/oralynx/lib"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ElGamal is a runtime over EC-ElGamal ciphertexts (integers in the exponent). It is additively homomorphic; products
// and inverses are only defined when one operand is a constant created by Constant (or derived from one).
type ElGamal struct {
	oracle Oracle
	// handle -> kyber.Scalar of the trivial ciphertexts this runtime created
	constants *concurrent.ConcurrentMap
}

// NewElGamal creates a runtime forwarding decryption requests to oracle.
func NewElGamal(oracle Oracle) *ElGamal {
	return &ElGamal{
		oracle:    oracle,
		constants: concurrent.NewConcurrentMap(),
	}
}

// Add returns the encryption of the sum of a and b.
func (e *ElGamal) Add(a, b liboralynx.Handle) (liboralynx.Handle, error) {
	ca, err := decode(a)
	if err != nil {
		return nil, err
	}
	cb, err := decode(b)
	if err != nil {
		return nil, err
	}

	res := liboralynx.NewCipherText()
	res.Add(*ca, *cb)
	h, err := encode(res)
	if err != nil {
		return nil, err
	}

	// the sum of two constants is a constant
	sa, okA := e.constant(a)
	sb, okB := e.constant(b)
	if okA && okB {
		if err := e.register(h, liboralynx.SuiTe.Scalar().Add(sa, sb)); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Multiply scales the non-constant operand by the constant one.
func (e *ElGamal) Multiply(a, b liboralynx.Handle) (liboralynx.Handle, error) {
	sa, okA := e.constant(a)
	sb, okB := e.constant(b)

	var target liboralynx.Handle
	var factor kyber.Scalar
	switch {
	case okB:
		target, factor = a, sb
	case okA:
		target, factor = b, sa
	default:
		return nil, xerrors.Errorf("multiplication of two non-constant ciphertexts: %w", liboralynx.ErrUnsupported)
	}

	ct, err := decode(target)
	if err != nil {
		return nil, err
	}
	res := liboralynx.NewCipherText()
	res.MulCipherTextbyScalar(*ct, factor)
	h, err := encode(res)
	if err != nil {
		return nil, err
	}

	if okA && okB {
		if err := e.register(h, liboralynx.SuiTe.Scalar().Mul(sa, sb)); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Inverse returns the constant 1/a. a must be a non-zero constant.
func (e *ElGamal) Inverse(a liboralynx.Handle) (liboralynx.Handle, error) {
	s, ok := e.constant(a)
	if !ok {
		return nil, xerrors.Errorf("inverse of a non-constant ciphertext: %w", liboralynx.ErrUnsupported)
	}
	if s.Equal(liboralynx.SuiTe.Scalar().Zero()) {
		return nil, xerrors.Errorf("inverse of zero: %w", liboralynx.ErrUnsupported)
	}
	return e.constantFromScalar(liboralynx.SuiTe.Scalar().Inv(s))
}

// Constant returns the trivial encryption (0, vB) of value. It is deterministic.
func (e *ElGamal) Constant(value int64) (liboralynx.Handle, error) {
	return e.constantFromScalar(liboralynx.SuiTe.Scalar().SetInt64(value))
}

// RequestDecryption forwards the handles to the decryption oracle.
func (e *ElGamal) RequestDecryption(handles []liboralynx.Handle) (liboralynx.RequestID, error) {
	for i, h := range handles {
		if _, err := decode(h); err != nil {
			return 0, xerrors.Errorf("handle %d: %w", i, err)
		}
	}
	return e.oracle.RequestDecryption(handles)
}

// VerifyProof asks the decryption oracle to check the proof.
func (e *ElGamal) VerifyProof(id liboralynx.RequestID, cleartext, proof []byte) bool {
	return e.oracle.VerifyProof(id, cleartext, proof)
}

func (e *ElGamal) constantFromScalar(s kyber.Scalar) (liboralynx.Handle, error) {
	ct := liboralynx.PointToCipherText(liboralynx.SuiTe.Point().Mul(s, nil))
	h, err := encode(&ct)
	if err != nil {
		return nil, err
	}
	if err := e.register(h, s); err != nil {
		return nil, err
	}
	return h, nil
}

func (e *ElGamal) register(h liboralynx.Handle, s kyber.Scalar) error {
	_, err := e.constants.Put(string(h), s.Clone())
	if err != nil {
		return xerrors.Errorf("registering constant: %w", err)
	}
	log.Lvl3("registered constant", h.String())
	return nil
}

func (e *ElGamal) constant(h liboralynx.Handle) (kyber.Scalar, bool) {
	v, err := e.constants.Get(string(h))
	if err != nil || v == nil {
		return nil, false
	}
	return v.(kyber.Scalar), true
}

func decode(h liboralynx.Handle) (*liboralynx.CipherText, error) {
	ct := liboralynx.NewCipherText()
	if err := ct.FromBytes(h); err != nil {
		return nil, xerrors.Errorf("malformed ciphertext handle: %w", err)
	}
	return ct, nil
}

func encode(ct *liboralynx.CipherText) (liboralynx.Handle, error) {
	b, err := ct.ToBytes()
	if err != nil {
		return nil, err
	}
	return liboralynx.Handle(b), nil
}
