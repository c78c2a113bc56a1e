package liboralynxpolicy_test

import (
	"testing"
	"time"

	"github.com/ldsec/oralynx/lib"
	"github.com/ldsec/oralynx/lib/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

const (
	owner    = liboralynx.Identity("0x00000000000000000000000000000000000000aa")
	provider = liboralynx.Identity("0x00000000000000000000000000000000000000bb")
	stranger = liboralynx.Identity("0x00000000000000000000000000000000000000cc")
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time {
	return c.now
}

func TestRoles(t *testing.T) {
	roles := liboralynxpolicy.NewRoles(owner, provider)
	assert.True(t, roles.IsOwner(owner))
	assert.False(t, roles.IsOwner(provider))
	assert.False(t, roles.IsOwner(""))
	assert.True(t, roles.IsProvider(provider))
	assert.False(t, roles.IsProvider(owner))

	assert.True(t, roles.Grant(stranger))
	assert.False(t, roles.Grant(stranger))
	assert.Equal(t, []liboralynx.Identity{provider, stranger}, roles.Providers())
	assert.True(t, roles.Revoke(stranger))
	assert.False(t, roles.Revoke(stranger))

	assert.Equal(t, owner, roles.TransferOwnership(provider))
	assert.True(t, roles.IsOwner(provider))
	assert.False(t, roles.IsOwner(owner))
}

func TestGate(t *testing.T) {
	clock := &manualClock{now: time.Unix(1000, 0)}
	roles := liboralynxpolicy.NewRoles(owner, provider)
	limiter := liboralynxpolicy.NewLimiter(clock.Now)

	_, err := liboralynxpolicy.NewGate(roles, limiter, 0, "")
	assert.True(t, xerrors.Is(err, liboralynx.ErrInvalidCooldown))

	gate, err := liboralynxpolicy.NewGate(roles, limiter, time.Minute, "")
	require.NoError(t, err)

	assert.NoError(t, gate.CheckOwner(owner))
	assert.True(t, xerrors.Is(gate.CheckOwner(provider), liboralynx.ErrNotOwner))

	assert.NoError(t, gate.CheckSubmission(provider, 1, 3))
	assert.True(t, xerrors.Is(gate.CheckSubmission(stranger, 1, 3), liboralynx.ErrNotProvider))
	assert.True(t, xerrors.Is(gate.CheckRequest(owner), liboralynx.ErrNotProvider))

	// cooldown, per kind of action
	limiter.Record(provider, liboralynxpolicy.Submission)
	assert.True(t, xerrors.Is(gate.CheckSubmission(provider, 1, 3), liboralynx.ErrCooldownActive))
	assert.NoError(t, gate.CheckRequest(provider))
	clock.now = clock.now.Add(59 * time.Second)
	assert.True(t, xerrors.Is(gate.CheckSubmission(provider, 1, 3), liboralynx.ErrCooldownActive))
	clock.now = clock.now.Add(time.Second)
	assert.NoError(t, gate.CheckSubmission(provider, 1, 3))

	assert.True(t, xerrors.Is(gate.SetCooldown(-time.Second), liboralynx.ErrInvalidCooldown))
	assert.Equal(t, time.Minute, gate.Cooldown())
	require.NoError(t, gate.SetCooldown(time.Hour))
	assert.Equal(t, time.Hour, gate.Cooldown())
	assert.True(t, xerrors.Is(gate.CheckSubmission(provider, 1, 3), liboralynx.ErrCooldownActive))

	// pause comes first
	assert.True(t, gate.SetPaused(true))
	assert.False(t, gate.SetPaused(true))
	assert.True(t, gate.Paused())
	assert.True(t, xerrors.Is(gate.CheckSubmission(stranger, 1, 3), liboralynx.ErrPaused))
	assert.True(t, xerrors.Is(gate.CheckRequest(provider), liboralynx.ErrPaused))
	assert.NoError(t, gate.CheckOwner(owner))
	assert.True(t, gate.SetPaused(false))
	assert.NoError(t, gate.CheckRequest(provider))
}

func TestSubmissionRule(t *testing.T) {
	roles := liboralynxpolicy.NewRoles(owner, provider)
	limiter := liboralynxpolicy.NewLimiter(nil)

	_, err := liboralynxpolicy.NewGate(roles, limiter, time.Second, "count >")
	assert.Error(t, err)

	gate, err := liboralynxpolicy.NewGate(roles, limiter, time.Second, "count > 0 && count <= 4 && batch != 2")
	require.NoError(t, err)

	assert.NoError(t, gate.CheckSubmission(provider, 1, 4))
	assert.True(t, xerrors.Is(gate.CheckSubmission(provider, 1, 0), liboralynx.ErrSubmissionRejected))
	assert.True(t, xerrors.Is(gate.CheckSubmission(provider, 1, 5), liboralynx.ErrSubmissionRejected))
	assert.True(t, xerrors.Is(gate.CheckSubmission(provider, 2, 1), liboralynx.ErrSubmissionRejected))

	// a rule that is not a predicate rejects everything
	gate, err = liboralynxpolicy.NewGate(roles, limiter, time.Second, "count + 1")
	require.NoError(t, err)
	assert.True(t, xerrors.Is(gate.CheckSubmission(provider, 1, 1), liboralynx.ErrSubmissionRejected))
}

func TestLimiterNeverActed(t *testing.T) {
	limiter := liboralynxpolicy.NewLimiter(nil)
	assert.Equal(t, liboralynxpolicy.Never, limiter.ElapsedSinceLast(provider, liboralynxpolicy.Request))
}
