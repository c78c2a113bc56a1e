package liboralynxgateway

import (
	"fmt"

	"github.com/ldsec/oralynx/lib"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/proof"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
)

func init() {
	network.RegisterMessage(&ProofBundle{})
}

// Structs
//______________________________________________________________________________________________________________________

// ProofBundle is the proof attached to a callback: one proof of correct decryption per handle of the request.
type ProofBundle struct {
	RequestID uint64
	Proofs    [][]byte
}

// DECRYPTION proofs
//______________________________________________________________________________________________________________________

// createPredicateDecryption proves knowledge of x such that X = xB and S = xK, where (K, C) is the ciphertext and
// S = C - M the blinding removed from it: M is the correct decryption under the key X.
func createPredicateDecryption() (predicate proof.Predicate) {
	log1 := proof.Rep("X", "x", "B")
	log2 := proof.Rep("S", "x", "K")

	predicate = proof.And(log1, log2)
	return
}

func proofContext(id liboralynx.RequestID, index int) string {
	return fmt.Sprintf("oralynx/decryption/%d/%d", id, index)
}

// DecryptionProofCreation creates the proof that M is the decryption of ct under the key pair (x, X).
func DecryptionProofCreation(id liboralynx.RequestID, index int, ct liboralynx.CipherText, M kyber.Point, x kyber.Scalar, X kyber.Point) ([]byte, error) {
	predicate := createPredicateDecryption()
	S := liboralynx.SuiTe.Point().Sub(ct.C, M)
	sval := map[string]kyber.Scalar{"x": x}
	pval := map[string]kyber.Point{"B": liboralynx.SuiTe.Point().Base(), "X": X, "K": ct.K, "S": S}

	prover := predicate.Prover(liboralynx.SuiTe, sval, pval, nil) // computes: commitment, challenge, response
	proofDec, err := proof.HashProve(liboralynx.SuiTe, proofContext(id, index), prover)
	if err != nil {
		return nil, xerrors.Errorf("proving decryption %d of request %d: %w", index, id, err)
	}
	return proofDec, nil
}

// DecryptionProofVerification verifies that M is the decryption of ct under the public key X.
func DecryptionProofVerification(id liboralynx.RequestID, index int, ct liboralynx.CipherText, M kyber.Point, X kyber.Point, proofDec []byte) bool {
	predicate := createPredicateDecryption()
	S := liboralynx.SuiTe.Point().Sub(ct.C, M)
	pval := map[string]kyber.Point{"B": liboralynx.SuiTe.Point().Base(), "X": X, "K": ct.K, "S": S}
	verifier := predicate.Verifier(liboralynx.SuiTe, pval)

	if err := proof.HashVerify(liboralynx.SuiTe, proofContext(id, index), verifier, proofDec); err != nil {
		log.Lvl2("---------Verifier:", err.Error())
		return false
	}
	return true
}

// Marshal
//______________________________________________________________________________________________________________________

// ToBytes encodes the bundle as an onet network message.
func (pb *ProofBundle) ToBytes() ([]byte, error) {
	return network.Marshal(pb)
}

// FromBytes decodes a bundle encoded with ToBytes.
func (pb *ProofBundle) FromBytes(data []byte) error {
	_, msg, err := network.Unmarshal(data, liboralynx.SuiTe)
	if err != nil {
		return err
	}
	decoded, ok := msg.(*ProofBundle)
	if !ok {
		return xerrors.Errorf("unexpected message %T in proof", msg)
	}
	*pb = *decoded
	return nil
}

// FractionToPoint encodes the fraction n/d as (n * d^-1)B.
func FractionToPoint(f liboralynx.Fraction) kyber.Point {
	s := liboralynx.SuiTe.Scalar().SetInt64(f.Num)
	s = s.Mul(s, liboralynx.SuiTe.Scalar().Inv(liboralynx.SuiTe.Scalar().SetInt64(f.Den)))
	return liboralynx.SuiTe.Point().Mul(s, nil)
}
