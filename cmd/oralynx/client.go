package main

import (
	"errors"
	"strconv"
	"time"

	"github.com/ldsec/oralynx/lib"
	"github.com/ldsec/oralynx/services"
	"github.com/urfave/cli"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

func newClient(c *cli.Context) (*servicesoralynx.API, error) {
	el, err := openGroupToml(c.String(optionGroupFile))
	if err != nil {
		return nil, xerrors.Errorf("could not open group toml: %w", err)
	}
	node := c.Int(optionNode)
	if node < 0 || node >= len(el.List) {
		return nil, xerrors.Errorf("no conode %d in a group of %d", node, len(el.List))
	}

	private, public, err := readKeyToml(c.String(optionKeyFile))
	if err != nil {
		return nil, err
	}
	id, err := liboralynx.IdentityFromPoint(public)
	if err != nil {
		return nil, err
	}
	return servicesoralynx.NewOralynxClient(el.List[node], id.String(), private, public), nil
}

func argUint(c *cli.Context, index int, name string) (uint64, error) {
	if c.NArg() <= index {
		return 0, errors.New("missing " + name)
	}
	v, err := strconv.ParseUint(c.Args().Get(index), 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func argIdentity(c *cli.Context) (liboralynx.Identity, error) {
	if c.NArg() < 1 {
		return "", errors.New("missing identity")
	}
	return liboralynx.ParseIdentity(c.Args().First())
}

func printResult(res *servicesoralynx.ResultReply) {
	if !res.Processed {
		log.Info("request", res.RequestID, "on batch", res.BatchID, "is pending")
		return
	}
	log.Info("request", res.RequestID, ": mean of batch", res.BatchID, "is",
		liboralynx.Fraction{Num: res.Num, Den: res.Den}, "=", res.Value)
}

// BEGIN CLIENT: PRINCIPAL ----------

func keygen(c *cli.Context) error {
	pair := key.NewKeyPair(liboralynx.SuiTe)
	if err := writeKeyToml(c.String(optionKeyFile), pair); err != nil {
		return err
	}
	id, err := liboralynx.IdentityFromPoint(pair.Public)
	if err != nil {
		return err
	}
	log.Info("generated", c.String(optionKeyFile), "for", id)
	return nil
}

func printIdentity(c *cli.Context) error {
	_, public, err := readKeyToml(c.String(optionKeyFile))
	if err != nil {
		return err
	}
	id, err := liboralynx.IdentityFromPoint(public)
	if err != nil {
		return err
	}
	log.Info(id)
	return nil
}

// CLIENT END: PRINCIPAL ------------

// BEGIN CLIENT: OWNER ----------

func setupInstance(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("missing instance configuration file")
	}
	conf, err := readInstanceToml(c.Args().First())
	if err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	resp, err := client.SendSetupQuery(conf.Cooldown, conf.Providers, conf.SubmissionRule, conf.ManualRelay)
	if err != nil {
		return err
	}
	log.Info("instance", resp.InstanceID, "is set up")
	return nil
}

func openBatch(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	id, err := client.OpenBatch()
	if err != nil {
		return err
	}
	log.Info("opened batch", id)
	return nil
}

func closeBatch(c *cli.Context) error {
	id, err := argUint(c, 0, "batch")
	if err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	return client.CloseBatch(liboralynx.BatchID(id))
}

func addProvider(c *cli.Context) error {
	provider, err := argIdentity(c)
	if err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	return client.AddProvider(provider)
}

func removeProvider(c *cli.Context) error {
	provider, err := argIdentity(c)
	if err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	return client.RemoveProvider(provider)
}

func pause(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	return client.Pause()
}

func unpause(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	return client.Unpause()
}

func setCooldown(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("missing duration")
	}
	cooldown, err := time.ParseDuration(c.Args().First())
	if err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	return client.SetCooldown(cooldown)
}

func transferOwnership(c *cli.Context) error {
	owner, err := argIdentity(c)
	if err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	return client.TransferOwnership(owner)
}

func printJournal(c *cli.Context) error {
	var id uint64
	if c.NArg() > 0 {
		var err error
		if id, err = argUint(c, 0, "request"); err != nil {
			return err
		}
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	resp, err := client.SendJournalQuery(liboralynx.RequestID(id))
	if err != nil {
		return err
	}
	for i, e := range resp.Entries {
		log.Info(i, e.Name, e.Description)
	}
	return nil
}

// CLIENT END: OWNER ------------

// BEGIN CLIENT: DATA PROVIDER ----------

func submit(c *cli.Context) error {
	id, err := argUint(c, 0, "batch")
	if err != nil {
		return err
	}
	if c.NArg() < 2 {
		return errors.New("no value to submit")
	}
	values := make([]int64, c.NArg()-1)
	for i, arg := range c.Args().Tail() {
		if values[i], err = strconv.ParseInt(arg, 10, 64); err != nil {
			return xerrors.Errorf("value %d: %w", i, err)
		}
	}

	client, err := newClient(c)
	if err != nil {
		return err
	}
	resp, err := client.SendSubmitQuery(liboralynx.BatchID(id), values)
	if err != nil {
		return err
	}
	log.Info("submitted", resp.Count, "observation(s) to batch", id)
	return nil
}

func requestMean(c *cli.Context) error {
	id, err := argUint(c, 0, "batch")
	if err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	resp, err := client.SendMeanQuery(liboralynx.BatchID(id))
	if err != nil {
		return err
	}
	log.Info("issued request", resp.RequestID, "for batch", id)

	wait := c.Duration(optionWait)
	if wait <= 0 {
		return nil
	}
	res, err := client.WaitResult(liboralynx.RequestID(resp.RequestID), wait)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

// CLIENT END: DATA PROVIDER ------------

// BEGIN CLIENT: ANYONE ----------

func info(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	resp, err := client.SendInfoQuery()
	if err != nil {
		return err
	}
	log.Info("instance:", resp.InstanceID)
	log.Info("owner:", resp.Owner)
	log.Info("providers:", resp.Providers)
	log.Info("paused:", resp.Paused, "cooldown:", time.Duration(resp.Cooldown))
	log.Info("latest batch:", resp.LatestBatch)
	return nil
}

func batchInfo(c *cli.Context) error {
	id, err := argUint(c, 0, "batch")
	if err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	resp, err := client.SendBatchQuery(liboralynx.BatchID(id))
	if err != nil {
		return err
	}
	log.Info(liboralynx.Batch{ID: liboralynx.BatchID(resp.BatchID), Open: resp.Open, DataCount: resp.DataCount})
	return nil
}

func result(c *cli.Context) error {
	id, err := argUint(c, 0, "request")
	if err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	resp, err := client.SendResultQuery(liboralynx.RequestID(id))
	if err != nil {
		return err
	}
	printResult(resp)
	return nil
}

func relay(c *cli.Context) error {
	id, err := argUint(c, 0, "request")
	if err != nil {
		return err
	}
	client, err := newClient(c)
	if err != nil {
		return err
	}
	resp, err := client.Relay(liboralynx.RequestID(id))
	if err != nil {
		return err
	}
	printResult(resp)
	return nil
}

// CLIENT END: ANYONE ------------
