// Package servicesoralynx exposes a protocol instance as an onet service: each conode hosts one instance together
// with its decryption oracle, and principals talk to it with signed queries.
package servicesoralynx

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fanliao/go-concurrentMap"
	"github.com/ldsec/oralynx/lib"
	"github.com/ldsec/oralynx/lib/events"
	"github.com/ldsec/oralynx/lib/gateway"
	"github.com/ldsec/oralynx/lib/instance"
	"github.com/ldsec/oralynx/lib/runtime"
	"github.com/ldsec/oralynx/lib/store"
	"github.com/satori/go.uuid"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
)

var errClosed = xerrors.New("service closed")

// ServiceName is the registered name for the oralynx service.
const ServiceName = "Oralynx"

// JournalEnv names the directory where the conodes keep the audit journal of their instance.
const JournalEnv = "ORALYNX_JOURNAL"

func init() {
	_, err := onet.RegisterNewService(ServiceName, NewService)
	log.ErrFatal(err)
}

// Service hosts one protocol instance and its decryption oracle.
type Service struct {
	*onet.ServiceProcessor

	gateway *liboralynxgateway.Gateway
	// digest of the signed queries already processed
	seen *concurrent.ConcurrentMap

	mutex    sync.RWMutex
	instance *liboralynxinstance.Instance
	journal  *liboralynxstore.Journal
	closed   bool
}

// NewService constructor which registers the query handlers.
func NewService(c *onet.Context) (onet.Service, error) {
	s := &Service{
		ServiceProcessor: onet.NewServiceProcessor(c),
		gateway:          liboralynxgateway.NewGateway(),
		seen:             concurrent.NewConcurrentMap(),
	}
	for _, handler := range []interface{}{
		s.HandleSetupQuery,
		s.HandleInfoQuery,
		s.HandleBatchQuery,
		s.HandleAdminQuery,
		s.HandleSubmitQuery,
		s.HandleMeanQuery,
		s.HandleOracleQuery,
		s.HandleCallbackQuery,
		s.HandleResultQuery,
		s.HandleJournalQuery,
	} {
		if err := s.RegisterHandler(handler); err != nil {
			return nil, xerrors.Errorf("wrong handler: %w", err)
		}
	}
	return s, nil
}

// Close stops the oracle and closes the audit journal. The instance is no longer served afterwards.
func (s *Service) Close() error {
	// ongoing deliveries take the read lock
	s.gateway.Stop()

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.instance = nil
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}

// TestClose implements onet.TestClose, the shutdown hook of local conodes.
func (s *Service) TestClose() {
	if err := s.Close(); err != nil {
		log.Error(s.ServerIdentity(), "closing journal:", err)
	}
}

func (s *Service) getInstance() (*liboralynxinstance.Instance, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	if s.instance == nil {
		return nil, liboralynx.ErrNotSetup
	}
	return s.instance, nil
}

// authenticate checks the signature of a query and that it was not processed before.
func (s *Service) authenticate(q signedQuery) (liboralynx.Identity, error) {
	caller, err := verify(q)
	if err != nil {
		return "", err
	}
	old, err := s.seen.PutIfAbsent(string(q.digest()), true)
	if err != nil {
		return "", err
	}
	if old != nil {
		return "", xerrors.Errorf("%s: %w", caller, liboralynx.ErrDuplicateQuery)
	}
	return caller, nil
}

// relay brings the answers of the oracle back to the instance.
func (s *Service) relay(id liboralynx.RequestID, cleartext, proof []byte) {
	in, err := s.getInstance()
	if err != nil {
		log.Error(s.ServerIdentity(), "dropped the answer to request", id, ":", err)
		return
	}
	if _, err := in.OnCallback(id, cleartext, proof); err != nil {
		log.Lvl2(s.ServerIdentity(), "could not relay request", id, ":", err)
	}
}

func (s *Service) openJournal(id uuid.UUID) (*liboralynxstore.Journal, error) {
	dir := os.Getenv(JournalEnv)
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return liboralynxstore.Open(filepath.Join(dir, id.String()+".db"))
}

// Query Handlers
//______________________________________________________________________________________________________________________

// HandleSetupQuery creates the instance of this conode, owned by the signer of the query.
func (s *Service) HandleSetupQuery(q *SetupQuery) (network.Message, error) {
	owner, err := s.authenticate(q)
	if err != nil {
		return nil, err
	}

	providers := make([]liboralynx.Identity, len(q.Providers))
	for i, p := range q.Providers {
		if providers[i], err = liboralynx.ParseIdentity(p); err != nil {
			return nil, err
		}
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil, errClosed
	}
	if s.instance != nil {
		return nil, liboralynx.ErrAlreadySetup
	}

	id := uuid.NewV4()
	journal, err := s.openJournal(id)
	if err != nil {
		return nil, xerrors.Errorf("opening journal: %w", err)
	}
	bus := liboralynxevents.NewBus(liboralynxevents.EmitterFunc(func(e liboralynxevents.Event) {
		log.Lvl3(s.ServerIdentity(), "event", e.Name(), e)
	}))
	if journal != nil {
		bus.Subscribe(journal)
	}

	in, err := liboralynxinstance.NewInstance(id, liboralynxruntime.NewElGamal(s.gateway), liboralynxinstance.Config{
		Owner:          owner,
		Providers:      providers,
		Cooldown:       time.Duration(q.Cooldown),
		SubmissionRule: q.SubmissionRule,
	}, bus)
	if err != nil {
		if journal != nil {
			journal.Close()
		}
		return nil, err
	}
	s.instance = in
	s.journal = journal

	if !q.ManualRelay {
		s.gateway.Start(s.relay)
	}

	oracleKey, err := s.gateway.PublicKey().MarshalBinary()
	if err != nil {
		return nil, err
	}
	log.Lvl1(s.ServerIdentity(), "set up instance", id, "for", owner)
	return &SetupReply{InstanceID: id.String(), OracleKey: oracleKey}, nil
}

// HandleInfoQuery returns the public state of the instance.
func (s *Service) HandleInfoQuery(q *InfoQuery) (network.Message, error) {
	in, err := s.getInstance()
	if err != nil {
		return nil, err
	}
	oracleKey, err := s.gateway.PublicKey().MarshalBinary()
	if err != nil {
		return nil, err
	}

	providers := in.Providers()
	reply := &InfoReply{
		InstanceID:  in.ID().String(),
		OracleKey:   oracleKey,
		Owner:       in.Owner().String(),
		Providers:   make([]string, len(providers)),
		Paused:      in.Paused(),
		Cooldown:    int64(in.Cooldown()),
		LatestBatch: uint64(in.LatestBatch()),
	}
	for i, p := range providers {
		reply.Providers[i] = p.String()
	}
	return reply, nil
}

// HandleBatchQuery returns the public view of a batch.
func (s *Service) HandleBatchQuery(q *BatchQuery) (network.Message, error) {
	in, err := s.getInstance()
	if err != nil {
		return nil, err
	}
	b, err := in.Batch(liboralynx.BatchID(q.BatchID))
	if err != nil {
		return nil, err
	}
	return &BatchReply{BatchID: uint64(b.ID), Open: b.Open, DataCount: b.DataCount}, nil
}

// HandleAdminQuery runs an owner action.
func (s *Service) HandleAdminQuery(q *AdminQuery) (network.Message, error) {
	in, err := s.getInstance()
	if err != nil {
		return nil, err
	}
	caller, err := s.authenticate(q)
	if err != nil {
		return nil, err
	}
	log.Lvl2(s.ServerIdentity(), "received", q.Action, "from", caller)

	reply := &AdminReply{}
	switch q.Action {
	case ActionOpen:
		var id liboralynx.BatchID
		id, err = in.OpenBatch(caller)
		reply.BatchID = uint64(id)
	case ActionClose:
		err = in.CloseBatch(caller, liboralynx.BatchID(q.BatchID))
	case ActionAddProvider, ActionRemoveProvider, ActionTransfer:
		var target liboralynx.Identity
		if target, err = liboralynx.ParseIdentity(q.Target); err != nil {
			return nil, err
		}
		switch q.Action {
		case ActionAddProvider:
			err = in.AddProvider(caller, target)
		case ActionRemoveProvider:
			err = in.RemoveProvider(caller, target)
		default:
			err = in.TransferOwnership(caller, target)
		}
	case ActionPause:
		err = in.Pause(caller)
	case ActionUnpause:
		err = in.Unpause(caller)
	case ActionCooldown:
		err = in.SetCooldown(caller, time.Duration(q.Cooldown))
	default:
		return nil, xerrors.Errorf("unknown action %q", q.Action)
	}
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// HandleSubmitQuery appends the observations of a provider to a batch.
func (s *Service) HandleSubmitQuery(q *SubmitQuery) (network.Message, error) {
	in, err := s.getInstance()
	if err != nil {
		return nil, err
	}
	caller, err := s.authenticate(q)
	if err != nil {
		return nil, err
	}

	observations := make([]liboralynx.Handle, len(q.Observations))
	for i, o := range q.Observations {
		observations[i] = o
	}
	if err := in.Submit(caller, liboralynx.BatchID(q.BatchID), observations); err != nil {
		return nil, err
	}
	return &SubmitReply{Count: uint64(len(observations))}, nil
}

// HandleMeanQuery issues a decryption request for the mean of a batch.
func (s *Service) HandleMeanQuery(q *MeanQuery) (network.Message, error) {
	in, err := s.getInstance()
	if err != nil {
		return nil, err
	}
	caller, err := s.authenticate(q)
	if err != nil {
		return nil, err
	}

	id, err := in.RequestMean(caller, liboralynx.BatchID(q.BatchID))
	if err != nil {
		return nil, err
	}
	reply := &MeanReply{RequestID: uint64(id)}
	if ctx, ok := in.Context(id); ok {
		reply.Fingerprint = ctx.Fingerprint[:]
	}
	return reply, nil
}

// HandleOracleQuery returns the oracle answer to a request, for relayers.
func (s *Service) HandleOracleQuery(q *OracleQuery) (network.Message, error) {
	if _, err := s.getInstance(); err != nil {
		return nil, err
	}
	cleartext, proof, err := s.gateway.Decrypt(liboralynx.RequestID(q.RequestID))
	if err != nil {
		return nil, err
	}
	return &OracleReply{Cleartext: cleartext, Proof: proof}, nil
}

// HandleCallbackQuery delivers an oracle answer to the instance.
func (s *Service) HandleCallbackQuery(q *CallbackQuery) (network.Message, error) {
	in, err := s.getInstance()
	if err != nil {
		return nil, err
	}
	if _, err := in.OnCallback(liboralynx.RequestID(q.RequestID), q.Cleartext, q.Proof); err != nil {
		return nil, err
	}
	return s.HandleResultQuery(&ResultQuery{RequestID: q.RequestID})
}

// HandleResultQuery returns the state of a request.
func (s *Service) HandleResultQuery(q *ResultQuery) (network.Message, error) {
	in, err := s.getInstance()
	if err != nil {
		return nil, err
	}
	id := liboralynx.RequestID(q.RequestID)
	ctx, ok := in.Context(id)
	if !ok {
		return nil, xerrors.Errorf("unknown request %d", id)
	}

	reply := &ResultReply{RequestID: q.RequestID, BatchID: uint64(ctx.BatchID), Processed: ctx.Processed}
	if res, ok := in.Result(id); ok {
		reply.Num = res.Value.Num
		reply.Den = res.Value.Den
		reply.Value = res.Value.Float64()
	}
	return reply, nil
}

// HandleJournalQuery returns the audit journal of the instance to its owner.
func (s *Service) HandleJournalQuery(q *JournalQuery) (network.Message, error) {
	in, err := s.getInstance()
	if err != nil {
		return nil, err
	}
	caller, err := s.authenticate(q)
	if err != nil {
		return nil, err
	}
	if caller != in.Owner() {
		return nil, xerrors.Errorf("%s reading the journal: %w", caller, liboralynx.ErrNotOwner)
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.journal == nil {
		return nil, xerrors.New("this conode keeps no journal")
	}

	var evs []liboralynxevents.Event
	if q.RequestID != 0 {
		res, ok, err := s.journal.Result(liboralynx.RequestID(q.RequestID))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, xerrors.Errorf("no result journaled for request %d", q.RequestID)
		}
		evs = append(evs, res)
	} else if evs, err = s.journal.Events(); err != nil {
		return nil, err
	}

	reply := &JournalReply{Entries: make([]JournalEntry, len(evs))}
	for i, e := range evs {
		reply.Entries[i] = JournalEntry{Name: e.Name(), Description: fmt.Sprintf("%+v", e)}
	}
	return reply, nil
}
