package liboralynxpolicy

import (
	"math"
	"sync"
	"time"

	"github.com/ldsec/oralynx/lib"
)

// Kind is the kind of action a cooldown applies to.
type Kind int

const (
	// Submission of observations.
	Submission Kind = iota
	// Request of a mean.
	Request
)

// String representation of a kind.
func (k Kind) String() string {
	switch k {
	case Submission:
		return "submission"
	case Request:
		return "request"
	default:
		return "unknown"
	}
}

// Never is the elapsed time reported for a principal that never acted.
const Never = time.Duration(math.MaxInt64)

// RateLimiter reports the time elapsed since the last action of a principal.
type RateLimiter interface {
	ElapsedSinceLast(id liboralynx.Identity, kind Kind) time.Duration
}

// Clock gives the current time.
type Clock func() time.Time

type limiterKey struct {
	id   liboralynx.Identity
	kind Kind
}

// Limiter is an in-memory rate limiter.
type Limiter struct {
	mutex sync.Mutex
	clock Clock
	last  map[limiterKey]time.Time
}

// NewLimiter creates a limiter reading time from clock, time.Now if nil.
func NewLimiter(clock Clock) *Limiter {
	if clock == nil {
		clock = time.Now
	}
	return &Limiter{clock: clock, last: make(map[limiterKey]time.Time)}
}

// ElapsedSinceLast implements RateLimiter.
func (l *Limiter) ElapsedSinceLast(id liboralynx.Identity, kind Kind) time.Duration {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	last, ok := l.last[limiterKey{id, kind}]
	if !ok {
		return Never
	}
	return l.clock().Sub(last)
}

// Record notes that id performed an action of the given kind now.
func (l *Limiter) Record(id liboralynx.Identity, kind Kind) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.last[limiterKey{id, kind}] = l.clock()
}
