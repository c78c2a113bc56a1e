package main

import (
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ldsec/oralynx/lib"
	"github.com/ldsec/oralynx/services"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/simul/monitor"
	"golang.org/x/xerrors"
)

// Defines the simulation for the oralynx service to be run with onet/simul.
func init() {
	onet.SimulationRegister("ServiceOralynx", NewSimulationOralynx)
}

// SimulationOralynx the state of a simulation.
type SimulationOralynx struct {
	onet.SimulationBFTree

	NbrProviders    int   // number of data providers submitting to each batch
	NbrObservations int   // number of observations per submission
	MaxValue        int64 // observations are drawn in [0, MaxValue)
	CooldownMS      int64 // cooldown between two actions of a provider, in milliseconds
	ManualRelay     bool  // the owner relays the oracle answers itself
}

// NewSimulationOralynx constructs a full oralynx service simulation.
func NewSimulationOralynx(config string) (onet.Simulation, error) {
	es := &SimulationOralynx{}
	_, err := toml.Decode(config, es)
	if err != nil {
		return nil, err
	}
	return es, nil
}

// Setup creates the tree used for that simulation
func (sim *SimulationOralynx) Setup(dir string, hosts []string) (*onet.SimulationConfig, error) {
	sc := &onet.SimulationConfig{}
	sim.CreateRoster(sc, hosts, 2000)
	err := sim.CreateTree(sc)
	if err != nil {
		return nil, err
	}

	log.Lvl1("Setup done")

	return sc, nil
}

// Run starts the simulation.
func (sim *SimulationOralynx) Run(config *onet.SimulationConfig) error {
	if sim.NbrProviders <= 0 || sim.NbrObservations <= 0 || sim.MaxValue <= 0 {
		return xerrors.New("NbrProviders, NbrObservations and MaxValue must be positive")
	}
	cooldown := time.Duration(sim.CooldownMS) * time.Millisecond
	if cooldown <= 0 {
		cooldown = time.Millisecond
	}
	server := config.Tree.Roster.List[0]
	log.Lvl1("Size:", config.Tree.Size(), ", Rounds:", sim.Rounds)

	secret, public := liboralynx.GenKey()
	owner := servicesoralynx.NewOralynxClient(server, "0", secret, public)

	providers := make([]*servicesoralynx.API, sim.NbrProviders)
	ids := make([]liboralynx.Identity, sim.NbrProviders)
	for i := range providers {
		secret, public := liboralynx.GenKey()
		providers[i] = servicesoralynx.NewOralynxClient(server, strconv.Itoa(i+1), secret, public)
		id, err := providers[i].Identity()
		if err != nil {
			return err
		}
		ids[i] = id
	}

	if _, err := owner.SendSetupQuery(cooldown, ids, "", sim.ManualRelay); err != nil {
		return xerrors.Errorf("service did not start: %w", err)
	}

	for round := 0; round < sim.Rounds; round++ {
		log.Lvl1("Starting round", round)

		batchID, err := owner.OpenBatch()
		if err != nil {
			return err
		}

		data := generateObservations(sim.NbrProviders, sim.NbrObservations, sim.MaxValue, int64(round))

		/// START SERVICE PROTOCOL
		var start *monitor.TimeMeasure
		if liboralynx.TIME {
			start = monitor.NewTimeMeasure("SendingData")
		}

		wg := liboralynx.StartParallelize(uint(len(providers)))
		for i, client := range providers {
			go func(i int, client *servicesoralynx.API) {
				_, err := client.SendSubmitQuery(batchID, data[i])
				wg.Done(err)
			}(i, client)
		}
		err = liboralynx.EndParallelize(wg)
		if liboralynx.TIME {
			start.Record()
		}
		if err != nil {
			return err
		}

		if err := owner.CloseBatch(batchID); err != nil {
			return err
		}

		timer := liboralynx.StartTimer("Mean")
		mean, err := providers[0].SendMeanQuery(batchID)
		if err != nil {
			return err
		}
		var result *servicesoralynx.ResultReply
		if sim.ManualRelay {
			result, err = owner.Relay(liboralynx.RequestID(mean.RequestID))
		} else {
			result, err = owner.WaitResult(liboralynx.RequestID(mean.RequestID), time.Minute)
		}
		if err != nil {
			return xerrors.Errorf("service could not output the result: %w", err)
		}
		liboralynx.EndTimer(timer)
		// END SERVICE PROTOCOL

		sum, count := expectedMean(data)
		log.Lvl1("Service output:", result.Num, "/", result.Den, "=", result.Value)
		if result.Processed && result.Num*count == sum*result.Den {
			log.Lvl1("Result is right! :)")
		} else {
			log.Lvl1("Result is wrong! :(")
		}

		time.Sleep(cooldown)
	}

	return nil
}
