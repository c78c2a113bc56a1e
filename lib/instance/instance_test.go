package liboralynxinstance_test

import (
	"sync"
	"testing"
	"time"

	"github.com/ldsec/oralynx/lib"
	"github.com/ldsec/oralynx/lib/events"
	"github.com/ldsec/oralynx/lib/gateway"
	"github.com/ldsec/oralynx/lib/instance"
	"github.com/ldsec/oralynx/lib/oracle"
	"github.com/ldsec/oralynx/lib/runtime"
	"github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

type manualClock struct {
	mutex sync.Mutex
	now   time.Time
}

func (c *manualClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

func newIdentity(t *testing.T) liboralynx.Identity {
	_, pub := liboralynx.GenKey()
	id, err := liboralynx.IdentityFromPoint(pub)
	require.NoError(t, err)
	return id
}

type fixture struct {
	owner, provider liboralynx.Identity
	clock           *manualClock
	gateway         *liboralynxgateway.Gateway
	recorder        *liboralynxevents.Recorder
	instance        *liboralynxinstance.Instance
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		owner:    newIdentity(t),
		provider: newIdentity(t),
		clock:    &manualClock{now: time.Unix(1000, 0)},
		recorder: liboralynxevents.NewRecorder(),
	}
	secret, public := liboralynx.GenKey()
	f.gateway = liboralynxgateway.NewGatewayWithKey(secret, public, liboralynx.NewPointTable(1000))

	in, err := liboralynxinstance.NewInstance(uuid.NewV4(), liboralynxruntime.NewElGamal(f.gateway),
		liboralynxinstance.Config{
			Owner:     f.owner,
			Providers: []liboralynx.Identity{f.provider},
			Cooldown:  time.Second,
			Clock:     f.clock.Now,
		}, f.recorder)
	require.NoError(t, err)
	f.instance = in
	return f
}

func (f *fixture) encrypt(t *testing.T, values ...int64) []liboralynx.Handle {
	handles := make([]liboralynx.Handle, len(values))
	for i, v := range values {
		b, err := liboralynx.EncryptInt(f.gateway.PublicKey(), v).ToBytes()
		require.NoError(t, err)
		handles[i] = b
	}
	return handles
}

// submit opens a batch and fills it, waiting out the cooldown after each action.
func (f *fixture) submit(t *testing.T, values ...int64) liboralynx.BatchID {
	id, err := f.instance.OpenBatch(f.owner)
	require.NoError(t, err)
	require.NoError(t, f.instance.Submit(f.provider, id, f.encrypt(t, values...)))
	f.clock.Advance(time.Second)
	return id
}

func (f *fixture) answer(t *testing.T, id liboralynx.RequestID) ([]byte, []byte) {
	cleartext, proof, err := f.gateway.Decrypt(id)
	require.NoError(t, err)
	return cleartext, proof
}

func TestMean(t *testing.T) {
	f := newFixture(t)
	batchID := f.submit(t, 4, 6, 8)

	reqID, err := f.instance.RequestMean(f.provider, batchID)
	require.NoError(t, err)

	ctx, ok := f.instance.Context(reqID)
	require.True(t, ok)
	assert.False(t, ctx.Processed)
	assert.Equal(t, batchID, ctx.BatchID)

	cleartext, proof := f.answer(t, reqID)
	res, err := f.instance.OnCallback(reqID, cleartext, proof)
	require.NoError(t, err)
	assert.Equal(t, liboralynx.Fraction{Num: 6, Den: 1}, res.Value)

	stored, ok := f.instance.Result(reqID)
	require.True(t, ok)
	assert.Equal(t, res, stored)

	results := f.recorder.Results()
	require.Len(t, results, 1)
	assert.Equal(t, 6.0, results[0].Value)

	_, err = f.instance.OnCallback(reqID, cleartext, proof)
	assert.True(t, xerrors.Is(err, liboralynx.ErrReplayAttempt))
	assert.Len(t, f.recorder.Results(), 1)
}

func TestFractionalMean(t *testing.T) {
	f := newFixture(t)
	batchID := f.submit(t, 1, 2)

	reqID, err := f.instance.RequestMean(f.provider, batchID)
	require.NoError(t, err)
	cleartext, proof := f.answer(t, reqID)
	res, err := f.instance.OnCallback(reqID, cleartext, proof)
	require.NoError(t, err)
	assert.Equal(t, liboralynx.Fraction{Num: 3, Den: 2}, res.Value)
	assert.Equal(t, 1.5, res.Value.Float64())
}

func TestStateMismatch(t *testing.T) {
	f := newFixture(t)
	batchID := f.submit(t, 10, 20)

	reqID, err := f.instance.RequestMean(f.provider, batchID)
	require.NoError(t, err)
	cleartext, proof := f.answer(t, reqID)

	require.NoError(t, f.instance.Submit(f.provider, batchID, f.encrypt(t, 30)))
	f.clock.Advance(time.Second)

	_, err = f.instance.OnCallback(reqID, cleartext, proof)
	assert.True(t, xerrors.Is(err, liboralynx.ErrStateMismatch))
	ctx, _ := f.instance.Context(reqID)
	assert.False(t, ctx.Processed)
	assert.Empty(t, f.recorder.Results())

	reqID, err = f.instance.RequestMean(f.provider, batchID)
	require.NoError(t, err)
	cleartext, proof = f.answer(t, reqID)
	res, err := f.instance.OnCallback(reqID, cleartext, proof)
	require.NoError(t, err)
	assert.Equal(t, liboralynx.Fraction{Num: 20, Den: 1}, res.Value)
}

func TestInvalidProof(t *testing.T) {
	f := newFixture(t)
	batchID := f.submit(t, 4, 6, 8)

	reqID, err := f.instance.RequestMean(f.provider, batchID)
	require.NoError(t, err)
	cleartext, proof := f.answer(t, reqID)

	forged := liboralynx.EncodeCleartext([]liboralynx.Fraction{{Num: 7, Den: 1}})
	_, err = f.instance.OnCallback(reqID, forged, proof)
	assert.True(t, xerrors.Is(err, liboralynx.ErrInvalidProof))

	_, err = f.instance.OnCallback(reqID, cleartext, []byte("garbage"))
	assert.True(t, xerrors.Is(err, liboralynx.ErrInvalidProof))

	ctx, _ := f.instance.Context(reqID)
	assert.False(t, ctx.Processed)

	_, err = f.instance.OnCallback(reqID, cleartext, proof)
	assert.NoError(t, err)
}

func TestRequestErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.instance.RequestMean(f.provider, 1)
	assert.True(t, xerrors.Is(err, liboralynx.ErrInvalidBatch))

	id, err := f.instance.OpenBatch(f.owner)
	require.NoError(t, err)
	_, err = f.instance.RequestMean(f.provider, id)
	assert.True(t, xerrors.Is(err, liboralynx.ErrEmptyBatch))
	assert.Empty(t, f.instance.Contexts())

	_, err = f.instance.RequestMean(f.owner, id)
	assert.True(t, xerrors.Is(err, liboralynx.ErrNotProvider))
}

func TestAdministration(t *testing.T) {
	f := newFixture(t)
	stranger := newIdentity(t)

	_, err := f.instance.OpenBatch(f.provider)
	assert.True(t, xerrors.Is(err, liboralynx.ErrNotOwner))
	assert.True(t, xerrors.Is(f.instance.AddProvider(f.provider, stranger), liboralynx.ErrNotOwner))
	assert.True(t, xerrors.Is(f.instance.AddProvider(f.owner, ""), liboralynx.ErrInvalidIdentity))

	require.NoError(t, f.instance.AddProvider(f.owner, stranger))
	assert.Len(t, f.instance.Providers(), 2)
	require.NoError(t, f.instance.RemoveProvider(f.owner, stranger))
	assert.Len(t, f.instance.Providers(), 1)

	assert.True(t, xerrors.Is(f.instance.SetCooldown(f.owner, 0), liboralynx.ErrInvalidCooldown))
	require.NoError(t, f.instance.SetCooldown(f.owner, time.Minute))
	assert.Equal(t, time.Minute, f.instance.Cooldown())

	id, err := f.instance.OpenBatch(f.owner)
	require.NoError(t, err)
	require.NoError(t, f.instance.CloseBatch(f.owner, id))
	assert.True(t, xerrors.Is(f.instance.CloseBatch(f.owner, id), liboralynx.ErrInvalidBatch))
	assert.True(t, xerrors.Is(f.instance.Submit(f.provider, id, f.encrypt(t, 1)), liboralynx.ErrBatchClosed))

	assert.True(t, xerrors.Is(f.instance.TransferOwnership(f.owner, ""), liboralynx.ErrInvalidIdentity))
	require.NoError(t, f.instance.TransferOwnership(f.owner, stranger))
	assert.Equal(t, stranger, f.instance.Owner())
	_, err = f.instance.OpenBatch(f.owner)
	assert.True(t, xerrors.Is(err, liboralynx.ErrNotOwner))

	var names []string
	for _, e := range f.recorder.Events() {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"ProviderAdded", "ProviderRemoved", "CooldownUpdated", "BatchOpened", "BatchClosed",
		"OwnershipTransferred"}, names)
}

func TestPauseAndCooldown(t *testing.T) {
	f := newFixture(t)
	batchID := f.submit(t, 1)

	require.NoError(t, f.instance.Pause(f.owner))
	assert.True(t, f.instance.Paused())
	assert.True(t, xerrors.Is(f.instance.Submit(f.provider, batchID, f.encrypt(t, 2)), liboralynx.ErrPaused))
	_, err := f.instance.RequestMean(f.provider, batchID)
	assert.True(t, xerrors.Is(err, liboralynx.ErrPaused))
	require.NoError(t, f.instance.Unpause(f.owner))

	require.NoError(t, f.instance.Submit(f.provider, batchID, f.encrypt(t, 2)))
	assert.True(t, xerrors.Is(f.instance.Submit(f.provider, batchID, f.encrypt(t, 3)), liboralynx.ErrCooldownActive))

	// submissions and requests are limited separately
	reqID, err := f.instance.RequestMean(f.provider, batchID)
	require.NoError(t, err)
	_, err = f.instance.RequestMean(f.provider, batchID)
	assert.True(t, xerrors.Is(err, liboralynx.ErrCooldownActive))

	// callbacks go through while paused
	require.NoError(t, f.instance.Pause(f.owner))
	cleartext, proof := f.answer(t, reqID)
	res, err := f.instance.OnCallback(reqID, cleartext, proof)
	require.NoError(t, err)
	assert.Equal(t, liboralynx.Fraction{Num: 3, Den: 2}, res.Value)

	b, err := f.instance.Batch(batchID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), b.DataCount)
}

func TestAsynchronousOracle(t *testing.T) {
	f := newFixture(t)

	type delivery struct {
		res liboralynxoracle.Result
		err error
	}
	delivered := make(chan delivery, 4)
	f.gateway.Start(func(id liboralynx.RequestID, cleartext, proof []byte) {
		res, err := f.instance.OnCallback(id, cleartext, proof)
		delivered <- delivery{res, err}
	})
	defer f.gateway.Stop()

	first := f.submit(t, 4, 6, 8)
	second := f.submit(t, 1, 2)

	_, err := f.instance.RequestMean(f.provider, first)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.instance.RequestMean(f.provider, second)
	require.NoError(t, err)

	means := make(map[liboralynx.BatchID]liboralynx.Fraction)
	for i := 0; i < 2; i++ {
		select {
		case d := <-delivered:
			require.NoError(t, d.err)
			means[d.res.BatchID] = d.res.Value
		case <-time.After(30 * time.Second):
			t.Fatal("no callback from the oracle")
		}
	}
	assert.Equal(t, liboralynx.Fraction{Num: 6, Den: 1}, means[first])
	assert.Equal(t, liboralynx.Fraction{Num: 3, Den: 2}, means[second])
}
