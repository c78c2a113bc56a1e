// Package liboralynxgateway is the decryption oracle: it receives decryption requests for ciphertext handles, decrypts
// them with its private key, proves the decryptions correct, and hands (cleartext, proof) back through a callback.
// Anybody holding the oracle public key can verify the proofs.
package liboralynxgateway

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/fanliao/go-concurrentMap"
	"github.com/ldsec/oralynx/lib"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// DefaultWorkers is the default number of decryptions processed at the same time.
const DefaultWorkers = 4

// Deliver is called with the answer to a request. It is the relayer bringing the answer back to the requester.
type Deliver func(id liboralynx.RequestID, cleartext, proof []byte)

type job struct {
	handles []liboralynx.Handle
}

// Gateway is an in-process decryption oracle.
type Gateway struct {
	secret kyber.Scalar
	public kyber.Point
	table  *liboralynx.PointTable

	lastID uint64
	// request id -> job
	jobs *concurrent.ConcurrentMap

	mutex   sync.Mutex
	deliver Deliver
	stopped bool
	slots   chan struct{}
	wg      sync.WaitGroup
}

// NewGateway creates an oracle with a fresh key pair.
func NewGateway() *Gateway {
	secret, public := liboralynx.GenKey()
	return NewGatewayWithKey(secret, public, liboralynx.DefaultPointTable())
}

// NewGatewayWithKey creates an oracle decrypting with the given key and decoding values with table.
func NewGatewayWithKey(secret kyber.Scalar, public kyber.Point, table *liboralynx.PointTable) *Gateway {
	return &Gateway{
		secret: secret,
		public: public,
		table:  table,
		jobs:   concurrent.NewConcurrentMap(),
		slots:  make(chan struct{}, DefaultWorkers),
	}
}

// PublicKey is the key observations must be encrypted with.
func (g *Gateway) PublicKey() kyber.Point {
	return g.public
}

// Start makes the oracle answer every request asynchronously through deliver.
func (g *Gateway) Start(deliver Deliver) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.deliver = deliver
	g.stopped = false
}

// Stop stops answering requests and waits for the ongoing decryptions.
func (g *Gateway) Stop() {
	g.mutex.Lock()
	g.stopped = true
	g.deliver = nil
	g.mutex.Unlock()

	g.wg.Wait()
}

// RequestDecryption records the request and, if started, schedules its processing. It never blocks on the
// processing itself.
func (g *Gateway) RequestDecryption(handles []liboralynx.Handle) (liboralynx.RequestID, error) {
	if len(handles) == 0 {
		return 0, xerrors.New("decryption request without handles")
	}
	j := job{handles: make([]liboralynx.Handle, len(handles))}
	for i, h := range handles {
		j.handles[i] = h.Clone()
	}

	id := liboralynx.RequestID(atomic.AddUint64(&g.lastID, 1))
	if _, err := g.jobs.Put(jobKey(id), j); err != nil {
		return 0, xerrors.Errorf("recording request %d: %w", id, err)
	}
	log.Lvl2("oracle received decryption request", id, "for", len(handles), "handle(s)")

	g.mutex.Lock()
	deliver := g.deliver
	if deliver != nil && !g.stopped {
		g.wg.Add(1)
		go g.process(id, deliver)
	}
	g.mutex.Unlock()

	return id, nil
}

func (g *Gateway) process(id liboralynx.RequestID, deliver Deliver) {
	defer g.wg.Done()
	g.slots <- struct{}{}
	defer func() { <-g.slots }()

	cleartext, proof, err := g.Decrypt(id)
	if err != nil {
		log.Error("oracle could not answer request", id, ":", err)
		return
	}
	deliver(id, cleartext, proof)
}

// Decrypt decrypts the handles of a request and proves the decryption correct.
func (g *Gateway) Decrypt(id liboralynx.RequestID) ([]byte, []byte, error) {
	j, ok := g.job(id)
	if !ok {
		return nil, nil, xerrors.Errorf("unknown request %d", id)
	}

	values := make([]liboralynx.Fraction, len(j.handles))
	bundle := ProofBundle{RequestID: uint64(id), Proofs: make([][]byte, len(j.handles))}
	for i, h := range j.handles {
		ct := liboralynx.NewCipherText()
		if err := ct.FromBytes(h); err != nil {
			return nil, nil, xerrors.Errorf("request %d, handle %d: %w", id, i, err)
		}

		M := liboralynx.DecryptPoint(g.secret, *ct)
		value, ok := g.decode(M)
		if !ok {
			return nil, nil, xerrors.Errorf("request %d, handle %d: value out of decodable range", id, i)
		}
		values[i] = value

		p, err := DecryptionProofCreation(id, i, *ct, M, g.secret, g.public)
		if err != nil {
			return nil, nil, err
		}
		bundle.Proofs[i] = p
	}

	proof, err := bundle.ToBytes()
	if err != nil {
		return nil, nil, err
	}
	return liboralynx.EncodeCleartext(values), proof, nil
}

// decode finds the fraction n/d with the smallest d such that M = (n/d)B.
func (g *Gateway) decode(M kyber.Point) (liboralynx.Fraction, bool) {
	for d := int64(1); d <= liboralynx.MaxDenominator; d++ {
		dM := liboralynx.SuiTe.Point().Mul(liboralynx.SuiTe.Scalar().SetInt64(d), M)
		if n, ok := g.table.Lookup(dM); ok {
			return liboralynx.Fraction{Num: n, Den: d}, true
		}
	}
	return liboralynx.Fraction{}, false
}

// VerifyProof checks that cleartext holds the correct decryptions of the handles of request id.
func (g *Gateway) VerifyProof(id liboralynx.RequestID, cleartext, proof []byte) bool {
	j, ok := g.job(id)
	if !ok {
		return false
	}
	values, err := liboralynx.DecodeCleartext(cleartext)
	if err != nil || len(values) != len(j.handles) {
		return false
	}
	bundle := ProofBundle{}
	if err := bundle.FromBytes(proof); err != nil {
		log.Lvl2("malformed proof for request", id, ":", err)
		return false
	}
	if bundle.RequestID != uint64(id) || len(bundle.Proofs) != len(j.handles) {
		return false
	}

	for i, h := range j.handles {
		ct := liboralynx.NewCipherText()
		if err := ct.FromBytes(h); err != nil {
			return false
		}
		if !DecryptionProofVerification(id, i, *ct, FractionToPoint(values[i]), g.public, bundle.Proofs[i]) {
			return false
		}
	}
	return true
}

func (g *Gateway) job(id liboralynx.RequestID) (job, bool) {
	v, err := g.jobs.Get(jobKey(id))
	if err != nil || v == nil {
		return job{}, false
	}
	return v.(job), true
}

func jobKey(id liboralynx.RequestID) string {
	return strconv.FormatUint(uint64(id), 10)
}
