package sched

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Scheduler is a virtual clock driving deferred callbacks. Callbacks fire in
// (fireAt, scheduling order) and always run on the goroutine calling Advance,
// so everything driven by one scheduler shares a single logical thread.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Time
	queue  timerQueue
	timers map[timerID]*timer
	owners map[string]map[timerID]struct{}
	nextID timerID
	seq    uint64
}

// New creates a scheduler whose virtual clock starts at start.
func New(start time.Time) *Scheduler {
	s := &Scheduler{
		now:    start,
		queue:  timerQueue{},
		timers: make(map[timerID]*timer),
		owners: make(map[string]map[timerID]struct{}),
	}
	heap.Init(&s.queue)
	return s
}

// Now returns the current virtual time.
func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// After schedules fn to run once the clock has advanced by d. Negative
// delays are treated as zero.
func (s *Scheduler) After(owner string, d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.seq++
	t := &timer{
		id:     s.nextID,
		owner:  owner,
		fireAt: s.now.Add(d),
		seq:    s.seq,
		fn:     fn,
	}
	heap.Push(&s.queue, t)
	s.timers[t.id] = t
	set, ok := s.owners[owner]
	if !ok {
		set = make(map[timerID]struct{})
		s.owners[owner] = set
	}
	set[t.id] = struct{}{}
}

// CancelOwner removes every pending timer scheduled under owner and returns
// how many were removed.
func (s *Scheduler) CancelOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.owners[owner]
	n := 0
	for id := range set {
		if t, ok := s.timers[id]; ok {
			s.remove(t)
			n++
		}
	}
	return n
}

// CancelAll empties the queue and returns how many timers were dropped.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.timers)
	s.queue = timerQueue{}
	s.timers = make(map[timerID]*timer)
	s.owners = make(map[string]map[timerID]struct{})
	return n
}

// Pending returns the number of timers queued for owner. An empty owner
// counts every pending timer.
func (s *Scheduler) Pending(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner == "" {
		return len(s.timers)
	}
	return len(s.owners[owner])
}

// Advance moves the clock forward by d, firing every timer that falls due,
// including timers scheduled by callbacks during the advance. It returns the
// number of callbacks fired.
func (s *Scheduler) Advance(d time.Duration) int {
	return s.AdvanceTo(s.Now().Add(d))
}

// AdvanceTo moves the clock to target. A target in the past is a no-op.
func (s *Scheduler) AdvanceTo(target time.Time) int {
	fired := 0
	for {
		s.mu.Lock()
		next := s.queue.peek()
		if next == nil || next.fireAt.After(target) {
			if target.After(s.now) {
				s.now = target
			}
			s.mu.Unlock()
			return fired
		}
		s.remove(next)
		if next.fireAt.After(s.now) {
			s.now = next.fireAt
		}
		s.mu.Unlock()

		next.fn()
		fired++
	}
}

// Run drives the virtual clock from the wall clock until ctx is done,
// advancing every tick by the real time elapsed.
func (s *Scheduler) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Advance(now.Sub(last))
			last = now
		}
	}
}

// remove must be called with s.mu held.
func (s *Scheduler) remove(t *timer) {
	if t.index >= 0 {
		heap.Remove(&s.queue, t.index)
	}
	delete(s.timers, t.id)
	if set, ok := s.owners[t.owner]; ok {
		delete(set, t.id)
		if len(set) == 0 {
			delete(s.owners, t.owner)
		}
	}
}
