package servicesoralynx

import (
	"encoding/binary"

	"github.com/ldsec/oralynx/lib"
	"github.com/zeebo/blake3"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
)

func init() {
	network.RegisterMessage(&SetupQuery{})
	network.RegisterMessage(&SetupReply{})
	network.RegisterMessage(&InfoQuery{})
	network.RegisterMessage(&InfoReply{})
	network.RegisterMessage(&BatchQuery{})
	network.RegisterMessage(&BatchReply{})
	network.RegisterMessage(&AdminQuery{})
	network.RegisterMessage(&AdminReply{})
	network.RegisterMessage(&SubmitQuery{})
	network.RegisterMessage(&SubmitReply{})
	network.RegisterMessage(&MeanQuery{})
	network.RegisterMessage(&MeanReply{})
	network.RegisterMessage(&OracleQuery{})
	network.RegisterMessage(&OracleReply{})
	network.RegisterMessage(&CallbackQuery{})
	network.RegisterMessage(&ResultQuery{})
	network.RegisterMessage(&ResultReply{})
	network.RegisterMessage(&JournalQuery{})
	network.RegisterMessage(&JournalReply{})
}

// NonceSize is the size of the random nonce carried by every signed query.
const NonceSize = 16

// Admin actions
const (
	ActionOpen           = "open"
	ActionClose          = "close"
	ActionAddProvider    = "add-provider"
	ActionRemoveProvider = "remove-provider"
	ActionPause          = "pause"
	ActionUnpause        = "unpause"
	ActionCooldown       = "cooldown"
	ActionTransfer       = "transfer"
)

// Queries
//______________________________________________________________________________________________________________________

// SetupQuery creates the instance hosted by the conode. The signer becomes its owner.
type SetupQuery struct {
	Cooldown       int64
	Providers      []string
	SubmissionRule string
	// ManualRelay leaves the oracle answers to be fetched with an OracleQuery and relayed with a CallbackQuery.
	ManualRelay bool

	Signer    []byte
	Nonce     []byte
	Signature []byte
}

// SetupReply describes the new instance.
type SetupReply struct {
	InstanceID string
	OracleKey  []byte
}

// InfoQuery asks for the public state of the instance.
type InfoQuery struct{}

// InfoReply is the public state of the instance.
type InfoReply struct {
	InstanceID  string
	OracleKey   []byte
	Owner       string
	Providers   []string
	Paused      bool
	Cooldown    int64
	LatestBatch uint64
}

// BatchQuery asks for the public view of a batch.
type BatchQuery struct {
	BatchID uint64
}

// BatchReply is the public view of a batch.
type BatchReply struct {
	BatchID   uint64
	Open      bool
	DataCount uint64
}

// AdminQuery carries an owner action. Target is the identity the action applies to, if any.
type AdminQuery struct {
	Action   string
	BatchID  uint64
	Target   string
	Cooldown int64

	Signer    []byte
	Nonce     []byte
	Signature []byte
}

// AdminReply is the answer to an AdminQuery. BatchID is set by ActionOpen.
type AdminReply struct {
	BatchID uint64
}

// SubmitQuery appends encrypted observations to a batch.
type SubmitQuery struct {
	BatchID      uint64
	Observations [][]byte

	Signer    []byte
	Nonce     []byte
	Signature []byte
}

// SubmitReply acknowledges a submission.
type SubmitReply struct {
	Count uint64
}

// MeanQuery requests the mean of a batch.
type MeanQuery struct {
	BatchID uint64

	Signer    []byte
	Nonce     []byte
	Signature []byte
}

// MeanReply identifies the issued request.
type MeanReply struct {
	RequestID   uint64
	Fingerprint []byte
}

// OracleQuery fetches the oracle answer to a request, for manual relaying.
type OracleQuery struct {
	RequestID uint64
}

// OracleReply is the oracle answer to a request.
type OracleReply struct {
	Cleartext []byte
	Proof     []byte
}

// CallbackQuery relays the oracle answer to the instance. It needs no signature.
type CallbackQuery struct {
	RequestID uint64
	Cleartext []byte
	Proof     []byte
}

// ResultQuery asks for the state of a request.
type ResultQuery struct {
	RequestID uint64
}

// ResultReply is the state of a request. The value fields are set once Processed.
type ResultReply struct {
	RequestID uint64
	BatchID   uint64
	Processed bool
	Num       int64
	Den       int64
	Value     float64
}

// JournalQuery asks the owner for the audit journal of the instance: every event, or only the delivered result of
// RequestID when it is not zero.
type JournalQuery struct {
	RequestID uint64

	Signer    []byte
	Nonce     []byte
	Signature []byte
}

// JournalEntry is a journaled event.
type JournalEntry struct {
	Name        string
	Description string
}

// JournalReply lists journaled events, oldest first.
type JournalReply struct {
	Entries []JournalEntry
}

// Signatures
//______________________________________________________________________________________________________________________

// signedQuery is a query authenticated by the Schnorr signature of its caller.
type signedQuery interface {
	network.Message
	digest() []byte
	credentials() (signer, nonce, signature []byte)
	setCredentials(signer, nonce, signature []byte)
}

type digester struct {
	h *blake3.Hasher
}

func newDigester(tag string, nonce []byte) digester {
	d := digester{h: blake3.New()}
	d.bytes([]byte("oralynx/query/" + tag))
	d.bytes(nonce)
	return d
}

func (d digester) uint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	d.h.Write(b[:])
}

func (d digester) bytes(b []byte) {
	d.uint64(uint64(len(b)))
	d.h.Write(b)
}

func (d digester) sum() []byte {
	return d.h.Sum(nil)
}

func (q *SetupQuery) digest() []byte {
	d := newDigester("setup", q.Nonce)
	d.bytes(q.Signer)
	d.uint64(uint64(q.Cooldown))
	d.uint64(uint64(len(q.Providers)))
	for _, p := range q.Providers {
		d.bytes([]byte(p))
	}
	d.bytes([]byte(q.SubmissionRule))
	if q.ManualRelay {
		d.uint64(1)
	} else {
		d.uint64(0)
	}
	return d.sum()
}

func (q *AdminQuery) digest() []byte {
	d := newDigester("admin", q.Nonce)
	d.bytes(q.Signer)
	d.bytes([]byte(q.Action))
	d.uint64(q.BatchID)
	d.bytes([]byte(q.Target))
	d.uint64(uint64(q.Cooldown))
	return d.sum()
}

func (q *SubmitQuery) digest() []byte {
	d := newDigester("submit", q.Nonce)
	d.bytes(q.Signer)
	d.uint64(q.BatchID)
	d.uint64(uint64(len(q.Observations)))
	for _, o := range q.Observations {
		d.bytes(o)
	}
	return d.sum()
}

func (q *MeanQuery) digest() []byte {
	d := newDigester("mean", q.Nonce)
	d.bytes(q.Signer)
	d.uint64(q.BatchID)
	return d.sum()
}

func (q *JournalQuery) digest() []byte {
	d := newDigester("journal", q.Nonce)
	d.bytes(q.Signer)
	d.uint64(q.RequestID)
	return d.sum()
}

func (q *SetupQuery) credentials() ([]byte, []byte, []byte)   { return q.Signer, q.Nonce, q.Signature }
func (q *AdminQuery) credentials() ([]byte, []byte, []byte)   { return q.Signer, q.Nonce, q.Signature }
func (q *SubmitQuery) credentials() ([]byte, []byte, []byte)  { return q.Signer, q.Nonce, q.Signature }
func (q *MeanQuery) credentials() ([]byte, []byte, []byte)    { return q.Signer, q.Nonce, q.Signature }
func (q *JournalQuery) credentials() ([]byte, []byte, []byte) { return q.Signer, q.Nonce, q.Signature }

func (q *SetupQuery) setCredentials(signer, nonce, sig []byte) {
	q.Signer, q.Nonce, q.Signature = signer, nonce, sig
}
func (q *AdminQuery) setCredentials(signer, nonce, sig []byte) {
	q.Signer, q.Nonce, q.Signature = signer, nonce, sig
}
func (q *SubmitQuery) setCredentials(signer, nonce, sig []byte) {
	q.Signer, q.Nonce, q.Signature = signer, nonce, sig
}
func (q *MeanQuery) setCredentials(signer, nonce, sig []byte) {
	q.Signer, q.Nonce, q.Signature = signer, nonce, sig
}
func (q *JournalQuery) setCredentials(signer, nonce, sig []byte) {
	q.Signer, q.Nonce, q.Signature = signer, nonce, sig
}

// sign fills the credentials of q with a fresh nonce and the signature of private.
func sign(q signedQuery, private kyber.Scalar, public kyber.Point) error {
	signer, err := public.MarshalBinary()
	if err != nil {
		return err
	}
	nonce := random.Bits(8*NonceSize, false, random.New())
	q.setCredentials(signer, nonce, nil)

	sig, err := schnorr.Sign(liboralynx.SuiTe, private, q.digest())
	if err != nil {
		return xerrors.Errorf("signing query: %w", err)
	}
	signer, n, _ := q.credentials()
	q.setCredentials(signer, n, sig)
	return nil
}

// verify checks the signature of q and returns the identity of its signer.
func verify(q signedQuery) (liboralynx.Identity, error) {
	signer, nonce, sig := q.credentials()
	if len(nonce) != NonceSize {
		return "", xerrors.Errorf("nonce of %d bytes: %w", len(nonce), liboralynx.ErrInvalidIdentity)
	}
	public := liboralynx.SuiTe.Point()
	if err := public.UnmarshalBinary(signer); err != nil {
		return "", xerrors.Errorf("signer key: %v: %w", err, liboralynx.ErrInvalidIdentity)
	}
	if err := schnorr.Verify(liboralynx.SuiTe, public, q.digest(), sig); err != nil {
		return "", xerrors.Errorf("signature: %v: %w", err, liboralynx.ErrInvalidIdentity)
	}
	return liboralynx.IdentityFromPoint(public)
}
