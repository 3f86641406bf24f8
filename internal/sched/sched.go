// Package sched implements a single-threaded cooperative job queue: a
// minimal set of named jobs, each with at most one pending deadline,
// drained serially.
package sched

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mbor/blink/internal/timing"
)

// Clock abstracts os_getTime(): the platform's monotonic tick source.
type Clock interface {
	Now() timing.Ticks
}

// RealClock measures ticks as time elapsed since it was constructed.
type RealClock struct{ start time.Time }

func NewRealClock() *RealClock { return &RealClock{start: time.Now()} }

func (c *RealClock) Now() timing.Ticks { return timing.Ticks(time.Since(c.start)) }

// SimClock is a manually advanced clock for deterministic simulation and
// tests: nothing moves until Advance or Set is called.
type SimClock struct {
	mu  sync.Mutex
	now timing.Ticks
}

func (c *SimClock) Now() timing.Ticks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *SimClock) Advance(d timing.Ticks) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

func (c *SimClock) Set(t timing.Ticks) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Job is an opaque handle identifying one slot in the schedule, the
// equivalent of an osjob_t. The zero value is a valid, unscheduled job.
type Job struct {
	name string
}

func NewJob(name string) *Job { return &Job{name: name} }

func (j *Job) String() string { return j.name }

type entry struct {
	deadline timing.Ticks
	fn       func()
}

// Scheduler holds at most one pending callback per Job and runs due
// callbacks one at a time, never concurrently — a cooperative,
// single-threaded execution model so protocol state never needs its own
// locking.
type Scheduler struct {
	clock Clock

	mu      sync.Mutex
	entries map[*Job]*entry
	wake    chan struct{}
}

func New(clock Clock) *Scheduler {
	return &Scheduler{
		clock:   clock,
		entries: make(map[*Job]*entry),
		wake:    make(chan struct{}, 1),
	}
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// SetCallback schedules fn to run as soon as the scheduler next drains,
// i.e. at the current time — os_setCallback.
func (s *Scheduler) SetCallback(job *Job, fn func()) {
	s.SetTimedCallback(job, s.clock.Now(), fn)
}

// SetTimedCallback schedules fn to run at deadline, replacing any
// previously pending callback for job — os_setTimedCallback.
func (s *Scheduler) SetTimedCallback(job *Job, deadline timing.Ticks, fn func()) {
	s.mu.Lock()
	s.entries[job] = &entry{deadline: deadline, fn: fn}
	s.mu.Unlock()
	s.notify()
}

// Clear cancels job's pending callback, if any — os_clearCallback.
func (s *Scheduler) Clear(job *Job) {
	s.mu.Lock()
	delete(s.entries, job)
	s.mu.Unlock()
}

// Deadline reports job's scheduled deadline and whether one is pending.
func (s *Scheduler) Deadline(job *Job) (timing.Ticks, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[job]
	if !ok {
		return 0, false
	}
	return e.deadline, true
}

// popDue returns the callbacks of jobs due at or before now, earliest
// first, and removes them from the schedule. It takes s.mu itself.
func (s *Scheduler) popDue(now timing.Ticks) []func() {
	s.mu.Lock()
	type due struct {
		job      *Job
		deadline timing.Ticks
		fn       func()
	}
	var ready []due
	for j, e := range s.entries {
		if e.deadline <= now {
			ready = append(ready, due{j, e.deadline, e.fn})
		}
	}
	sort.Slice(ready, func(i, k int) bool { return ready[i].deadline < ready[k].deadline })
	var fns = make([]func(), 0, len(ready))
	for _, d := range ready {
		delete(s.entries, d.job)
		fns = append(fns, d.fn)
	}
	s.mu.Unlock()
	return fns
}

func (s *Scheduler) nextDeadline() (timing.Ticks, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found bool
	var best timing.Ticks
	for _, e := range s.entries {
		if !found || e.deadline < best {
			best = e.deadline
			found = true
		}
	}
	return best, found
}

// RunPending runs every callback currently due, in deadline order, and
// returns how many ran. Intended for deterministic simulation: advance a
// SimClock, then call RunPending until it returns 0.
func (s *Scheduler) RunPending() int {
	var fns = s.popDue(s.clock.Now())
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Run drains the schedule against a real clock until ctx is cancelled,
// sleeping between wake-ups the way os_runloop() blocks a bare-metal
// scheduler thread until the next deadline.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.RunPending()

		deadline, ok := s.nextDeadline()
		var timer *time.Timer
		if ok {
			var wait = deadline.Sub(s.clock.Now()).Duration()
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-s.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-timerC(timer):
		}
	}
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
