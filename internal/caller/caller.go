// Package caller draws housie numbers without replacement.
package caller

import (
	"errors"
	"math/rand/v2"
)

const MaxNumber = 90

var ErrExhausted = errors.New("all numbers called")

// Caller is not safe for concurrent use; the owning session serializes access.
type Caller struct {
	rng     *rand.Rand
	pool    []int
	history []int
	called  [MaxNumber + 1]bool
}

// New returns a caller drawing from src. A nil src uses an unseeded source.
func New(src *rand.Rand) *Caller {
	if src == nil {
		src = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	c := &Caller{rng: src}
	c.Reset()
	return c
}

// Next returns a number not returned since the last Reset. Every remaining
// number is equally likely.
func (c *Caller) Next() (int, error) {
	if len(c.pool) == 0 {
		return 0, ErrExhausted
	}
	i := c.rng.IntN(len(c.pool))
	n := c.pool[i]
	last := len(c.pool) - 1
	c.pool[i] = c.pool[last]
	c.pool = c.pool[:last]

	c.history = append(c.history, n)
	c.called[n] = true
	return n, nil
}

func (c *Caller) Reset() {
	c.pool = make([]int, MaxNumber)
	for i := range c.pool {
		c.pool[i] = i + 1
	}
	c.history = nil
	c.called = [MaxNumber + 1]bool{}
}

// History returns a copy of the calls in order.
func (c *Caller) History() []int {
	return append([]int(nil), c.history...)
}

// Current returns the last called number, or 0 before the first call.
func (c *Caller) Current() int {
	if len(c.history) == 0 {
		return 0
	}
	return c.history[len(c.history)-1]
}

func (c *Caller) Called(n int) bool {
	return n >= 1 && n <= MaxNumber && c.called[n]
}

func (c *Caller) Remaining() int { return len(c.pool) }

// Position returns the 1-based call position of n, or 0 if n has not been called.
func (c *Caller) Position(n int) int {
	if !c.Called(n) {
		return 0
	}
	for i, v := range c.history {
		if v == n {
			return i + 1
		}
	}
	return 0
}
