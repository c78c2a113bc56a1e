package main

import (
	"errors"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ldsec/oralynx/lib"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/app"
	"golang.org/x/xerrors"
)

// keyToml is the key file of a principal.
type keyToml struct {
	Identity string
	Public   string
	Private  string
}

// instanceToml holds the parameters of a new instance.
type instanceToml struct {
	Cooldown       string   `toml:"cooldown"`
	Providers      []string `toml:"providers"`
	SubmissionRule string   `toml:"submission_rule"`
	ManualRelay    bool     `toml:"manual_relay"`
}

// instanceConfig is the parsed form of instanceToml.
type instanceConfig struct {
	Cooldown       time.Duration
	Providers      []liboralynx.Identity
	SubmissionRule string
	ManualRelay    bool
}

func writeKeyToml(fileName string, pair *key.Pair) error {
	id, err := liboralynx.IdentityFromPoint(pair.Public)
	if err != nil {
		return err
	}
	public, err := encoding.PointToStringHex(liboralynx.SuiTe, pair.Public)
	if err != nil {
		return err
	}
	private, err := encoding.ScalarToStringHex(liboralynx.SuiTe, pair.Private)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(keyToml{Identity: id.String(), Public: public, Private: private})
}

func readKeyToml(fileName string) (kyber.Scalar, kyber.Point, error) {
	kt := keyToml{}
	if _, err := toml.DecodeFile(fileName, &kt); err != nil {
		return nil, nil, xerrors.Errorf("reading key file %s: %w", fileName, err)
	}
	public, err := encoding.StringHexToPoint(liboralynx.SuiTe, kt.Public)
	if err != nil {
		return nil, nil, xerrors.Errorf("public key in %s: %w", fileName, err)
	}
	private, err := encoding.StringHexToScalar(liboralynx.SuiTe, kt.Private)
	if err != nil {
		return nil, nil, xerrors.Errorf("private key in %s: %w", fileName, err)
	}
	if !liboralynx.SuiTe.Point().Mul(private, nil).Equal(public) {
		return nil, nil, xerrors.Errorf("key pair in %s does not match", fileName)
	}
	return private, public, nil
}

func readInstanceToml(fileName string) (instanceConfig, error) {
	it := instanceToml{}
	if _, err := toml.DecodeFile(fileName, &it); err != nil {
		return instanceConfig{}, xerrors.Errorf("reading instance file %s: %w", fileName, err)
	}

	conf := instanceConfig{SubmissionRule: it.SubmissionRule, ManualRelay: it.ManualRelay}
	if it.Cooldown == "" {
		return instanceConfig{}, xerrors.Errorf("%s: %w", fileName, liboralynx.ErrInvalidCooldown)
	}
	cooldown, err := time.ParseDuration(it.Cooldown)
	if err != nil {
		return instanceConfig{}, xerrors.Errorf("cooldown in %s: %w", fileName, err)
	}
	conf.Cooldown = cooldown

	for _, p := range it.Providers {
		id, err := liboralynx.ParseIdentity(p)
		if err != nil {
			return instanceConfig{}, err
		}
		conf.Providers = append(conf.Providers, id)
	}
	return conf, nil
}

func openGroupToml(tomlFileName string) (*onet.Roster, error) {
	f, err := os.Open(tomlFileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	el, err := app.ReadGroupDescToml(f)
	if err != nil {
		return nil, err
	}

	if len(el.Roster.List) <= 0 {
		return nil, errors.New("empty or invalid oralynx group file:" + tomlFileName)
	}

	return el.Roster, nil
}
