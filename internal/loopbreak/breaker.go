// Package loopbreak guards bounded retry loops against pathological input.
package loopbreak

import "errors"

// ErrExceeded is returned once a Breaker has been ticked past its budget.
var ErrExceeded = errors.New("exceeded max number of loop iterations")

// Breaker counts down from a fixed budget and fails once exhausted. It is
// reset whenever the caller makes real progress, so only a run of
// zero-progress iterations trips it.
type Breaker struct {
	budget  int
	current int
}

// New returns a Breaker that allows at most budget iterations without a Reset.
func New(budget int) *Breaker {
	return &Breaker{budget: budget, current: budget}
}

// Tick consumes one iteration, returning ErrExceeded once the budget runs out.
func (b *Breaker) Tick() error {
	b.current--
	if b.current <= 0 {
		return ErrExceeded
	}
	return nil
}

// Reset restores the full budget, called after any iteration that made
// observable progress.
func (b *Breaker) Reset() {
	b.current = b.budget
}
