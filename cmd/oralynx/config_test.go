package main

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/ldsec/oralynx/lib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3/util/key"
	"golang.org/x/xerrors"
)

func TestKeyToml(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "key.toml")
	pair := key.NewKeyPair(liboralynx.SuiTe)
	require.NoError(t, writeKeyToml(fileName, pair))

	// never overwrite a key
	assert.Error(t, writeKeyToml(fileName, key.NewKeyPair(liboralynx.SuiTe)))

	private, public, err := readKeyToml(fileName)
	require.NoError(t, err)
	assert.True(t, public.Equal(pair.Public))
	assert.True(t, private.Equal(pair.Private))

	mismatch := filepath.Join(t.TempDir(), "mismatch.toml")
	other := key.NewKeyPair(liboralynx.SuiTe)
	other.Private = pair.Private
	require.NoError(t, writeKeyToml(mismatch, other))
	_, _, err = readKeyToml(mismatch)
	assert.Error(t, err)
}

func TestInstanceToml(t *testing.T) {
	_, public := liboralynx.GenKey()
	provider, err := liboralynx.IdentityFromPoint(public)
	require.NoError(t, err)

	fileName := filepath.Join(t.TempDir(), "instance.toml")
	content := `cooldown = "90s"
providers = ["` + provider.String() + `"]
submission_rule = "count <= 100"
`
	require.NoError(t, ioutil.WriteFile(fileName, []byte(content), 0600))

	conf, err := readInstanceToml(fileName)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, conf.Cooldown)
	assert.Equal(t, []liboralynx.Identity{provider}, conf.Providers)
	assert.Equal(t, "count <= 100", conf.SubmissionRule)
	assert.False(t, conf.ManualRelay)

	require.NoError(t, ioutil.WriteFile(fileName, []byte(`providers = ["0x12"]`), 0600))
	_, err = readInstanceToml(fileName)
	assert.True(t, xerrors.Is(err, liboralynx.ErrInvalidCooldown))

	require.NoError(t, ioutil.WriteFile(fileName, []byte("cooldown = \"1m\"\nproviders = [\"0x12\"]"), 0600))
	_, err = readInstanceToml(fileName)
	assert.True(t, xerrors.Is(err, liboralynx.ErrInvalidIdentity))
}
