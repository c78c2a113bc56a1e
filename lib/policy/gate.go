// Package liboralynxpolicy gates the calls of a protocol instance: the pause switch, the owner and provider roles
// held by a role authority, the cooldown enforced with a rate limiter, and an optional submission rule.
package liboralynxpolicy

import (
	"sync"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/ldsec/oralynx/lib"
	"golang.org/x/xerrors"
)

// Gate is the policy gate of an instance. It holds no protocol state.
type Gate struct {
	roles   RoleAuthority
	limiter RateLimiter

	mutex    sync.RWMutex
	cooldown time.Duration
	paused   bool
	rule     *govaluate.EvaluableExpression
}

// NewGate creates a gate. rule is an optional boolean expression over the variables "count" (observations in the
// submission) and "batch" (target batch id).
func NewGate(roles RoleAuthority, limiter RateLimiter, cooldown time.Duration, rule string) (*Gate, error) {
	if cooldown <= 0 {
		return nil, xerrors.Errorf("cooldown %v: %w", cooldown, liboralynx.ErrInvalidCooldown)
	}
	g := &Gate{roles: roles, limiter: limiter, cooldown: cooldown}
	if rule != "" {
		expr, err := govaluate.NewEvaluableExpression(rule)
		if err != nil {
			return nil, xerrors.Errorf("parsing submission rule %q: %w", rule, err)
		}
		g.rule = expr
	}
	return g, nil
}

// CheckOwner gates administrative calls.
func (g *Gate) CheckOwner(caller liboralynx.Identity) error {
	if !g.roles.IsOwner(caller) {
		return xerrors.Errorf("%s: %w", caller, liboralynx.ErrNotOwner)
	}
	return nil
}

// CheckSubmission gates the submission of count observations to batch.
func (g *Gate) CheckSubmission(caller liboralynx.Identity, batch liboralynx.BatchID, count int) error {
	if err := g.checkProvider(caller, Submission); err != nil {
		return err
	}

	g.mutex.RLock()
	rule := g.rule
	g.mutex.RUnlock()
	if rule == nil {
		return nil
	}

	res, err := rule.Evaluate(map[string]interface{}{
		"count": float64(count),
		"batch": float64(batch),
	})
	if err != nil {
		return xerrors.Errorf("evaluating submission rule: %v: %w", err, liboralynx.ErrSubmissionRejected)
	}
	if ok, isBool := res.(bool); !isBool || !ok {
		return xerrors.Errorf("%d observation(s) for batch %d: %w", count, batch, liboralynx.ErrSubmissionRejected)
	}
	return nil
}

// CheckRequest gates a mean request.
func (g *Gate) CheckRequest(caller liboralynx.Identity) error {
	return g.checkProvider(caller, Request)
}

func (g *Gate) checkProvider(caller liboralynx.Identity, kind Kind) error {
	g.mutex.RLock()
	paused, cooldown := g.paused, g.cooldown
	g.mutex.RUnlock()

	if paused {
		return liboralynx.ErrPaused
	}
	if !g.roles.IsProvider(caller) {
		return xerrors.Errorf("%s: %w", caller, liboralynx.ErrNotProvider)
	}
	if elapsed := g.limiter.ElapsedSinceLast(caller, kind); elapsed < cooldown {
		return xerrors.Errorf("%s of %s, %v left: %w", kind, caller, cooldown-elapsed, liboralynx.ErrCooldownActive)
	}
	return nil
}

// SetPaused switches the pause. It returns false if the pause already was in that state.
func (g *Gate) SetPaused(paused bool) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if g.paused == paused {
		return false
	}
	g.paused = paused
	return true
}

// Paused tells whether submissions and requests are suspended.
func (g *Gate) Paused() bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.paused
}

// SetCooldown changes the cooldown.
func (g *Gate) SetCooldown(cooldown time.Duration) error {
	if cooldown <= 0 {
		return xerrors.Errorf("cooldown %v: %w", cooldown, liboralynx.ErrInvalidCooldown)
	}
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.cooldown = cooldown
	return nil
}

// Cooldown returns the minimum delay between two actions of the same kind by the same provider.
func (g *Gate) Cooldown() time.Duration {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.cooldown
}
