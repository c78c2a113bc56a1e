package liboralynx

import (
	"os"
	"strconv"

	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/simul/monitor"
)

func init() {
	if env := os.Getenv("ORALYNX_DLOG_BOUND"); env != "" {
		bound, err := strconv.ParseInt(env, 10, 64)
		if err == nil && bound > 0 {
			MaxHomomorphicInt = bound
		} else {
			log.Warn("Couldn't parse ORALYNX_DLOG_BOUND, using default value: ", MaxHomomorphicInt)
		}
	}
}

// Global Variables
//______________________________________________________________________________________________________________________

// TIME is true if we use protocols with time measurements of computations.
var TIME = false

// VPARALLELIZE allows to choose the level of parallelization in the vector computations
const VPARALLELIZE = 100

// MaxHomomorphicInt is the upper bound (in absolute value) of the integers recovered by a discrete logarithm.
var MaxHomomorphicInt int64 = 100000

// MaxDenominator is the largest denominator tried when a decrypted point is decoded as a fraction.
const MaxDenominator int64 = 1024

// StartTimer starts measurement of time
func StartTimer(name string) *monitor.TimeMeasure {
	if TIME {
		return monitor.NewTimeMeasure(name)
	}
	return nil
}

// EndTimer finishes measurement of time
func EndTimer(timer *monitor.TimeMeasure) {
	if TIME {
		timer.Record()
	}
}

// WaitGroupWithError is like a sync.WaitGroup, with an error channel
type WaitGroupWithError struct {
	waiter  chan error
	counter uint
}

// NewWaitGroupWithError creates a new WaitGroupWithError for the given count
func NewWaitGroupWithError(count uint) WaitGroupWithError {
	return WaitGroupWithError{
		waiter:  make(chan error, count),
		counter: count,
	}
}

// Done mark the end of a goroutine, it has to be called, even with nil error
func (wg WaitGroupWithError) Done(err error) {
	wg.waiter <- err
}

// Wait waits for all expected goroutine to finish, returning the first error encountered
func (wg WaitGroupWithError) Wait() error {
	var ret error

	for i := uint(0); i < wg.counter; i++ {
		if err := <-wg.waiter; ret == nil && err != nil {
			ret = err
		}
	}

	return ret
}

// StartParallelize starts parallelization by instanciating number of threads
func StartParallelize(nbrWg uint) WaitGroupWithError {
	return NewWaitGroupWithError(nbrWg)
}

// EndParallelize waits for a number of threads to finish
func EndParallelize(wg WaitGroupWithError) error {
	return wg.Wait()
}
