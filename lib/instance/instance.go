// Package liboralynxinstance assembles a protocol instance: the policy gate, the batch store, the aggregation engine
// and the decryption-oracle client, behind the administrative, provider and callback entry points. Every entry point
// runs to completion under the instance lock.
package liboralynxinstance

import (
	"sync"
	"time"

	"github.com/ldsec/oralynx/lib"
	"github.com/ldsec/oralynx/lib/aggregation"
	"github.com/ldsec/oralynx/lib/batch"
	"github.com/ldsec/oralynx/lib/events"
	"github.com/ldsec/oralynx/lib/oracle"
	"github.com/ldsec/oralynx/lib/policy"
	"github.com/ldsec/oralynx/lib/runtime"
	"github.com/satori/go.uuid"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Config holds the parameters of an instance.
type Config struct {
	Owner          liboralynx.Identity
	Providers      []liboralynx.Identity
	Cooldown       time.Duration
	SubmissionRule string
	// Clock defaults to time.Now.
	Clock liboralynxpolicy.Clock
}

// Instance is one deployment of the protocol.
type Instance struct {
	id      uuid.UUID
	emitter liboralynxevents.Emitter

	mutex   sync.Mutex
	roles   *liboralynxpolicy.Roles
	limiter *liboralynxpolicy.Limiter
	gate    *liboralynxpolicy.Gate
	batches *liboralynxbatch.Store
	oracle  *liboralynxoracle.Client
}

// NewInstance creates an instance identified by id, folding with rt and emitting to emitter.
func NewInstance(id uuid.UUID, rt liboralynxruntime.Runtime, cfg Config, emitter liboralynxevents.Emitter) (*Instance, error) {
	if cfg.Owner.IsZero() {
		return nil, xerrors.Errorf("owner: %w", liboralynx.ErrInvalidIdentity)
	}
	if emitter == nil {
		emitter = liboralynxevents.Discard
	}

	roles := liboralynxpolicy.NewRoles(cfg.Owner, cfg.Providers...)
	limiter := liboralynxpolicy.NewLimiter(cfg.Clock)
	gate, err := liboralynxpolicy.NewGate(roles, limiter, cfg.Cooldown, cfg.SubmissionRule)
	if err != nil {
		return nil, err
	}

	batches := liboralynxbatch.NewStore()
	engine := liboralynxaggr.NewEngine(rt, batches)

	log.Lvl1("created instance", id, "owned by", cfg.Owner, "with", len(cfg.Providers), "provider(s)")
	return &Instance{
		id:      id,
		emitter: emitter,
		roles:   roles,
		limiter: limiter,
		gate:    gate,
		batches: batches,
		oracle:  liboralynxoracle.NewClient(id, rt, engine, emitter),
	}, nil
}

// Administrative calls
//______________________________________________________________________________________________________________________

// OpenBatch opens a new batch.
func (in *Instance) OpenBatch(caller liboralynx.Identity) (liboralynx.BatchID, error) {
	in.mutex.Lock()
	defer in.mutex.Unlock()

	if err := in.gate.CheckOwner(caller); err != nil {
		return 0, err
	}
	id := in.batches.OpenBatch()
	log.Lvl1("opened batch", id)
	in.emitter.Emit(liboralynxevents.BatchOpened{BatchID: id})
	return id, nil
}

// CloseBatch closes an open batch.
func (in *Instance) CloseBatch(caller liboralynx.Identity, id liboralynx.BatchID) error {
	in.mutex.Lock()
	defer in.mutex.Unlock()

	if err := in.gate.CheckOwner(caller); err != nil {
		return err
	}
	if err := in.batches.CloseBatch(id); err != nil {
		return err
	}
	log.Lvl1("closed batch", id)
	in.emitter.Emit(liboralynxevents.BatchClosed{BatchID: id})
	return nil
}

// AddProvider registers a provider. Registering a provider twice is a no-op.
func (in *Instance) AddProvider(caller, provider liboralynx.Identity) error {
	in.mutex.Lock()
	defer in.mutex.Unlock()

	if err := in.gate.CheckOwner(caller); err != nil {
		return err
	}
	if provider.IsZero() {
		return xerrors.Errorf("provider: %w", liboralynx.ErrInvalidIdentity)
	}
	if in.roles.Grant(provider) {
		log.Lvl2("registered provider", provider)
		in.emitter.Emit(liboralynxevents.ProviderAdded{Provider: provider})
	}
	return nil
}

// RemoveProvider unregisters a provider. Removing an unknown provider is a no-op.
func (in *Instance) RemoveProvider(caller, provider liboralynx.Identity) error {
	in.mutex.Lock()
	defer in.mutex.Unlock()

	if err := in.gate.CheckOwner(caller); err != nil {
		return err
	}
	if in.roles.Revoke(provider) {
		log.Lvl2("unregistered provider", provider)
		in.emitter.Emit(liboralynxevents.ProviderRemoved{Provider: provider})
	}
	return nil
}

// Pause suspends submissions and requests. Callbacks are still accepted.
func (in *Instance) Pause(caller liboralynx.Identity) error {
	in.mutex.Lock()
	defer in.mutex.Unlock()

	if err := in.gate.CheckOwner(caller); err != nil {
		return err
	}
	if in.gate.SetPaused(true) {
		log.Lvl1("instance", in.id, "paused")
		in.emitter.Emit(liboralynxevents.Paused{By: caller})
	}
	return nil
}

// Unpause resumes submissions and requests.
func (in *Instance) Unpause(caller liboralynx.Identity) error {
	in.mutex.Lock()
	defer in.mutex.Unlock()

	if err := in.gate.CheckOwner(caller); err != nil {
		return err
	}
	if in.gate.SetPaused(false) {
		log.Lvl1("instance", in.id, "unpaused")
		in.emitter.Emit(liboralynxevents.Unpaused{By: caller})
	}
	return nil
}

// SetCooldown changes the cooldown between two actions of a provider.
func (in *Instance) SetCooldown(caller liboralynx.Identity, cooldown time.Duration) error {
	in.mutex.Lock()
	defer in.mutex.Unlock()

	if err := in.gate.CheckOwner(caller); err != nil {
		return err
	}
	if err := in.gate.SetCooldown(cooldown); err != nil {
		return err
	}
	in.emitter.Emit(liboralynxevents.CooldownUpdated{Cooldown: cooldown})
	return nil
}

// TransferOwnership hands the instance over to owner.
func (in *Instance) TransferOwnership(caller, owner liboralynx.Identity) error {
	in.mutex.Lock()
	defer in.mutex.Unlock()

	if err := in.gate.CheckOwner(caller); err != nil {
		return err
	}
	if owner.IsZero() {
		return xerrors.Errorf("new owner: %w", liboralynx.ErrInvalidIdentity)
	}
	previous := in.roles.TransferOwnership(owner)
	log.Lvl1("ownership of", in.id, "transferred from", previous, "to", owner)
	in.emitter.Emit(liboralynxevents.OwnershipTransferred{Previous: previous, Owner: owner})
	return nil
}

// Provider calls
//______________________________________________________________________________________________________________________

// Submit appends encrypted observations to an open batch.
func (in *Instance) Submit(caller liboralynx.Identity, id liboralynx.BatchID, observations []liboralynx.Handle) error {
	in.mutex.Lock()
	defer in.mutex.Unlock()

	if err := in.gate.CheckSubmission(caller, id, len(observations)); err != nil {
		return err
	}
	if err := in.batches.Append(id, observations); err != nil {
		return err
	}
	in.limiter.Record(caller, liboralynxpolicy.Submission)

	log.Lvl2(caller, "submitted", len(observations), "observation(s) to batch", id)
	in.emitter.Emit(liboralynxevents.SubmissionAccepted{Provider: caller, BatchID: id, Count: uint64(len(observations))})
	return nil
}

// RequestMean asks the decryption oracle for the mean of a batch. The result arrives through OnCallback.
func (in *Instance) RequestMean(caller liboralynx.Identity, id liboralynx.BatchID) (liboralynx.RequestID, error) {
	in.mutex.Lock()
	defer in.mutex.Unlock()

	if err := in.gate.CheckRequest(caller); err != nil {
		return 0, err
	}
	reqID, err := in.oracle.IssueRequest(id)
	if err != nil {
		return 0, err
	}
	in.limiter.Record(caller, liboralynxpolicy.Request)
	return reqID, nil
}

// Callback
//______________________________________________________________________________________________________________________

// OnCallback delivers the answer of the decryption oracle. Anybody may call it: authenticity comes from the proof.
func (in *Instance) OnCallback(id liboralynx.RequestID, cleartext, proof []byte) (liboralynxoracle.Result, error) {
	in.mutex.Lock()
	defer in.mutex.Unlock()

	res, err := in.oracle.OnCallback(id, cleartext, proof)
	if err != nil {
		log.Warn("rejected callback for request", id, ":", err)
		return liboralynxoracle.Result{}, err
	}
	return res, nil
}

// Views
//______________________________________________________________________________________________________________________

// ID returns the identity of the instance.
func (in *Instance) ID() uuid.UUID {
	return in.id
}

// Owner returns the current owner.
func (in *Instance) Owner() liboralynx.Identity {
	return in.roles.Owner()
}

// Providers returns the registered providers.
func (in *Instance) Providers() []liboralynx.Identity {
	return in.roles.Providers()
}

// Paused tells whether the instance is paused.
func (in *Instance) Paused() bool {
	return in.gate.Paused()
}

// Cooldown returns the current cooldown.
func (in *Instance) Cooldown() time.Duration {
	return in.gate.Cooldown()
}

// Batch returns the public view of a batch.
func (in *Instance) Batch(id liboralynx.BatchID) (liboralynx.Batch, error) {
	return in.batches.Batch(id)
}

// LatestBatch returns the highest allocated batch id, 0 if none.
func (in *Instance) LatestBatch() liboralynx.BatchID {
	return in.batches.Latest()
}

// Context returns the context of a request.
func (in *Instance) Context(id liboralynx.RequestID) (liboralynxoracle.RequestContext, bool) {
	return in.oracle.Context(id)
}

// Contexts returns the contexts of every request.
func (in *Instance) Contexts() []liboralynxoracle.RequestContext {
	return in.oracle.Contexts()
}

// Result returns the accepted result of a request.
func (in *Instance) Result(id liboralynx.RequestID) (liboralynxoracle.Result, bool) {
	return in.oracle.Result(id)
}
