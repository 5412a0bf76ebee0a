package sched

import (
	"math/rand"
	"time"
)

// Step is a value due at Offset from the start of a cycle.
type Step[T any] struct {
	Offset time.Duration
	Value  T
}

// Plan accumulates the steps of one cycle at cumulative, non-decreasing
// offsets.
type Plan[T any] struct {
	rng   *rand.Rand
	at    time.Duration
	steps []Step[T]
}

// NewPlan starts an empty plan at offset zero.
func NewPlan[T any](rng *rand.Rand) *Plan[T] {
	return &Plan[T]{rng: rng}
}

// Add appends v after a gap drawn uniformly from [lo, hi].
func (p *Plan[T]) Add(lo, hi time.Duration, v T) {
	gap := lo
	if hi > lo {
		gap += time.Duration(p.rng.Int63n(int64(hi-lo) + 1))
	}
	if gap < 0 {
		gap = 0
	}
	p.at += gap
	p.steps = append(p.steps, Step[T]{Offset: p.at, Value: v})
}

// Steps returns the accumulated steps in offset order.
func (p *Plan[T]) Steps() []Step[T] {
	return p.steps
}

// Span is the offset of the last step.
func (p *Plan[T]) Span() time.Duration {
	return p.at
}
