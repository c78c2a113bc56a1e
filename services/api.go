package servicesoralynx

import (
	"time"

	"github.com/ldsec/oralynx/lib"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
)

// API represents a principal with the conode to which it is connected and its key pair.
type API struct {
	*onet.Client
	clientID   string
	entryPoint *network.ServerIdentity
	public     kyber.Point
	private    kyber.Scalar
}

// NewOralynxClient constructor of a client signing its queries with the given key pair.
func NewOralynxClient(entryPoint *network.ServerIdentity, clientID string, private kyber.Scalar, public kyber.Point) *API {
	return &API{
		Client:     onet.NewClient(liboralynx.SuiTe, ServiceName),
		clientID:   clientID,
		entryPoint: entryPoint,
		public:     public,
		private:    private,
	}
}

// Identity returns the identity of the client.
func (c *API) Identity() (liboralynx.Identity, error) {
	return liboralynx.IdentityFromPoint(c.public)
}

// Send Query
//______________________________________________________________________________________________________________________

// SendSetupQuery creates the instance of the conode, owned by this client.
func (c *API) SendSetupQuery(cooldown time.Duration, providers []liboralynx.Identity, rule string, manualRelay bool) (*SetupReply, error) {
	log.Lvl1(c, "sets up an instance with", len(providers), "provider(s)")

	q := SetupQuery{Cooldown: int64(cooldown), SubmissionRule: rule, ManualRelay: manualRelay}
	for _, p := range providers {
		q.Providers = append(q.Providers, p.String())
	}
	if err := sign(&q, c.private, c.public); err != nil {
		return nil, err
	}

	resp := SetupReply{}
	if err := c.SendProtobuf(c.entryPoint, &q, &resp); err != nil {
		return nil, err
	}
	log.Lvl1(c, "successfully set up instance", resp.InstanceID)
	return &resp, nil
}

// SendInfoQuery fetches the public state of the instance.
func (c *API) SendInfoQuery() (*InfoReply, error) {
	resp := InfoReply{}
	if err := c.SendProtobuf(c.entryPoint, &InfoQuery{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendBatchQuery fetches the public view of a batch.
func (c *API) SendBatchQuery(id liboralynx.BatchID) (*BatchReply, error) {
	resp := BatchReply{}
	if err := c.SendProtobuf(c.entryPoint, &BatchQuery{BatchID: uint64(id)}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendAdminQuery signs and sends an owner action.
func (c *API) SendAdminQuery(q AdminQuery) (*AdminReply, error) {
	log.Lvl1(c, "sends admin action", q.Action)
	if err := sign(&q, c.private, c.public); err != nil {
		return nil, err
	}
	resp := AdminReply{}
	if err := c.SendProtobuf(c.entryPoint, &q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OpenBatch opens a new batch and returns its id.
func (c *API) OpenBatch() (liboralynx.BatchID, error) {
	resp, err := c.SendAdminQuery(AdminQuery{Action: ActionOpen})
	if err != nil {
		return 0, err
	}
	return liboralynx.BatchID(resp.BatchID), nil
}

// CloseBatch closes a batch.
func (c *API) CloseBatch(id liboralynx.BatchID) error {
	_, err := c.SendAdminQuery(AdminQuery{Action: ActionClose, BatchID: uint64(id)})
	return err
}

// AddProvider registers a provider.
func (c *API) AddProvider(provider liboralynx.Identity) error {
	_, err := c.SendAdminQuery(AdminQuery{Action: ActionAddProvider, Target: provider.String()})
	return err
}

// RemoveProvider unregisters a provider.
func (c *API) RemoveProvider(provider liboralynx.Identity) error {
	_, err := c.SendAdminQuery(AdminQuery{Action: ActionRemoveProvider, Target: provider.String()})
	return err
}

// Pause pauses the instance.
func (c *API) Pause() error {
	_, err := c.SendAdminQuery(AdminQuery{Action: ActionPause})
	return err
}

// Unpause resumes the instance.
func (c *API) Unpause() error {
	_, err := c.SendAdminQuery(AdminQuery{Action: ActionUnpause})
	return err
}

// SetCooldown changes the cooldown of the providers.
func (c *API) SetCooldown(cooldown time.Duration) error {
	_, err := c.SendAdminQuery(AdminQuery{Action: ActionCooldown, Cooldown: int64(cooldown)})
	return err
}

// TransferOwnership hands the instance over to owner.
func (c *API) TransferOwnership(owner liboralynx.Identity) error {
	_, err := c.SendAdminQuery(AdminQuery{Action: ActionTransfer, Target: owner.String()})
	return err
}

// SendSubmitQuery encrypts values under the oracle key and submits them to a batch.
func (c *API) SendSubmitQuery(id liboralynx.BatchID, values []int64) (*SubmitReply, error) {
	log.Lvl1(c, "submits", len(values), "observation(s) to batch", id)

	info, err := c.SendInfoQuery()
	if err != nil {
		return nil, err
	}
	oracleKey := liboralynx.SuiTe.Point()
	if err := oracleKey.UnmarshalBinary(info.OracleKey); err != nil {
		return nil, xerrors.Errorf("oracle key: %w", err)
	}

	round := liboralynx.StartTimer(c.String() + "_ClientEncryption")
	handles, err := liboralynx.EncryptObservations(oracleKey, values)
	liboralynx.EndTimer(round)
	if err != nil {
		return nil, err
	}

	q := SubmitQuery{BatchID: uint64(id), Observations: make([][]byte, len(handles))}
	for i, h := range handles {
		q.Observations[i] = h
	}
	if err := sign(&q, c.private, c.public); err != nil {
		return nil, err
	}
	resp := SubmitReply{}
	if err := c.SendProtobuf(c.entryPoint, &q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendMeanQuery requests the mean of a batch.
func (c *API) SendMeanQuery(id liboralynx.BatchID) (*MeanReply, error) {
	log.Lvl1(c, "requests the mean of batch", id)
	q := MeanQuery{BatchID: uint64(id)}
	if err := sign(&q, c.private, c.public); err != nil {
		return nil, err
	}
	resp := MeanReply{}
	if err := c.SendProtobuf(c.entryPoint, &q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendOracleQuery fetches the oracle answer to a request.
func (c *API) SendOracleQuery(id liboralynx.RequestID) (*OracleReply, error) {
	resp := OracleReply{}
	if err := c.SendProtobuf(c.entryPoint, &OracleQuery{RequestID: uint64(id)}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendCallbackQuery delivers an oracle answer.
func (c *API) SendCallbackQuery(id liboralynx.RequestID, cleartext, proof []byte) (*ResultReply, error) {
	resp := ResultReply{}
	q := CallbackQuery{RequestID: uint64(id), Cleartext: cleartext, Proof: proof}
	if err := c.SendProtobuf(c.entryPoint, &q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Relay fetches the oracle answer to a request and delivers it.
func (c *API) Relay(id liboralynx.RequestID) (*ResultReply, error) {
	log.Lvl1(c, "relays the answer to request", id)
	answer, err := c.SendOracleQuery(id)
	if err != nil {
		return nil, err
	}
	return c.SendCallbackQuery(id, answer.Cleartext, answer.Proof)
}

// SendResultQuery fetches the state of a request.
func (c *API) SendResultQuery(id liboralynx.RequestID) (*ResultReply, error) {
	resp := ResultReply{}
	if err := c.SendProtobuf(c.entryPoint, &ResultQuery{RequestID: uint64(id)}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WaitResult polls the state of a request until it is processed or the timeout expires.
func (c *API) WaitResult(id liboralynx.RequestID, timeout time.Duration) (*ResultReply, error) {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := c.SendResultQuery(id)
		if err != nil {
			return nil, err
		}
		if resp.Processed {
			return resp, nil
		}
		if time.Now().After(deadline) {
			return nil, xerrors.Errorf("request %d not fulfilled after %s", id, timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// SendJournalQuery fetches the audit journal of the instance, or the journaled result of request id when it is not
// zero. Only the owner may read it.
func (c *API) SendJournalQuery(id liboralynx.RequestID) (*JournalReply, error) {
	q := JournalQuery{RequestID: uint64(id)}
	if err := sign(&q, c.private, c.public); err != nil {
		return nil, err
	}
	resp := JournalReply{}
	if err := c.SendProtobuf(c.entryPoint, &q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// String permits to have the string representation of a client.
func (c *API) String() string {
	return "[Client-" + c.clientID + "]"
}
