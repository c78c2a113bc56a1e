// Package liboralynxoracle is the requester side of the decryption-oracle protocol. It issues decryption requests
// for the encrypted mean of a batch, bound to a fingerprint of that mean, and accepts the asynchronous callback
// only once, only if the fingerprint recomputed at callback time still matches, and only if the oracle proof
// validates.
package liboralynxoracle

import (
	"sort"
	"sync"

	"github.com/ldsec/oralynx/lib"
	"github.com/ldsec/oralynx/lib/aggregation"
	"github.com/ldsec/oralynx/lib/events"
	"github.com/ldsec/oralynx/lib/fingerprint"
	"github.com/ldsec/oralynx/lib/runtime"
	"github.com/satori/go.uuid"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Folder computes the encrypted aggregate of a batch.
type Folder interface {
	Fold(id liboralynx.BatchID) (liboralynxaggr.EncryptedAggregate, error)
}

// RequestContext is kept for every issued request, and never deleted. Processed flips to true at most once.
type RequestContext struct {
	RequestID   liboralynx.RequestID
	BatchID     liboralynx.BatchID
	Fingerprint liboralynx.Hash
	Processed   bool
}

// Result is the decrypted mean of a batch.
type Result struct {
	RequestID liboralynx.RequestID
	BatchID   liboralynx.BatchID
	Value     liboralynx.Fraction
}

// Client tracks the requests of one protocol instance.
type Client struct {
	instance uuid.UUID
	oracle   liboralynxruntime.Oracle
	folder   Folder
	emitter  liboralynxevents.Emitter

	mutex    sync.Mutex
	contexts map[liboralynx.RequestID]*RequestContext
	results  map[liboralynx.RequestID]Result
}

// NewClient creates the client of instance.
func NewClient(instance uuid.UUID, oracle liboralynxruntime.Oracle, folder Folder, emitter liboralynxevents.Emitter) *Client {
	if emitter == nil {
		emitter = liboralynxevents.Discard
	}
	return &Client{
		instance: instance,
		oracle:   oracle,
		folder:   folder,
		emitter:  emitter,
		contexts: make(map[liboralynx.RequestID]*RequestContext),
		results:  make(map[liboralynx.RequestID]Result),
	}
}

// IssueRequest folds the batch, fingerprints the aggregate and sends it to the oracle. Nothing is recorded if any
// step fails.
func (c *Client) IssueRequest(batchID liboralynx.BatchID) (liboralynx.RequestID, error) {
	c.mutex.Lock()

	aggr, err := c.folder.Fold(batchID)
	if err != nil {
		c.mutex.Unlock()
		return 0, err
	}
	fp := liboralynxfp.Fingerprint(aggr, c.instance)

	id, err := c.oracle.RequestDecryption(aggr.Handles)
	if err != nil {
		c.mutex.Unlock()
		return 0, xerrors.Errorf("requesting decryption of batch %d: %w", batchID, err)
	}
	if _, exists := c.contexts[id]; exists {
		c.mutex.Unlock()
		return 0, xerrors.Errorf("oracle reused request id %d", id)
	}
	c.contexts[id] = &RequestContext{RequestID: id, BatchID: batchID, Fingerprint: fp}
	c.mutex.Unlock()

	log.Lvl1("issued decryption request", id, "for batch", batchID, "fingerprint", fp.String()[:16])
	c.emitter.Emit(liboralynxevents.RequestIssued{RequestID: id, BatchID: batchID, Fingerprint: fp[:]})
	return id, nil
}

// OnCallback accepts the answer of the oracle to request id. The checks run in order, each one a hard gate: replay,
// state consistency, proof. A failed check leaves the request context untouched.
func (c *Client) OnCallback(id liboralynx.RequestID, cleartext, proof []byte) (Result, error) {
	c.mutex.Lock()

	ctx, ok := c.contexts[id]
	if !ok || ctx.Processed {
		c.mutex.Unlock()
		return Result{}, xerrors.Errorf("callback for request %d: %w", id, liboralynx.ErrReplayAttempt)
	}

	aggr, err := c.folder.Fold(ctx.BatchID)
	if err != nil {
		c.mutex.Unlock()
		return Result{}, xerrors.Errorf("callback for request %d: refolding batch %d: %v: %w", id, ctx.BatchID, err,
			liboralynx.ErrStateMismatch)
	}
	if liboralynxfp.Fingerprint(aggr, c.instance) != ctx.Fingerprint {
		c.mutex.Unlock()
		return Result{}, xerrors.Errorf("callback for request %d: batch %d changed: %w", id, ctx.BatchID,
			liboralynx.ErrStateMismatch)
	}

	if !c.oracle.VerifyProof(id, cleartext, proof) {
		c.mutex.Unlock()
		return Result{}, xerrors.Errorf("callback for request %d: %w", id, liboralynx.ErrInvalidProof)
	}
	values, err := liboralynx.DecodeCleartext(cleartext)
	if err != nil || len(values) != 1 {
		c.mutex.Unlock()
		return Result{}, xerrors.Errorf("callback for request %d: undecodable cleartext: %w", id,
			liboralynx.ErrInvalidProof)
	}

	ctx.Processed = true
	res := Result{RequestID: id, BatchID: ctx.BatchID, Value: values[0]}
	c.results[id] = res
	c.mutex.Unlock()

	log.Lvl1("request", id, "fulfilled: mean of batch", res.BatchID, "is", res.Value)
	c.emitter.Emit(liboralynxevents.ResultDelivered{
		RequestID: id,
		BatchID:   res.BatchID,
		Num:       res.Value.Num,
		Den:       res.Value.Den,
		Value:     res.Value.Float64(),
	})
	return res, nil
}

// Context returns a copy of the context of request id.
func (c *Client) Context(id liboralynx.RequestID) (RequestContext, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ctx, ok := c.contexts[id]
	if !ok {
		return RequestContext{}, false
	}
	return *ctx, true
}

// Contexts returns a copy of every context, ordered by request id.
func (c *Client) Contexts() []RequestContext {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	list := make([]RequestContext, 0, len(c.contexts))
	for _, ctx := range c.contexts {
		list = append(list, *ctx)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RequestID < list[j].RequestID })
	return list
}

// Result returns the accepted result of request id.
func (c *Client) Result(id liboralynx.RequestID) (Result, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, ok := c.results[id]
	return res, ok
}
