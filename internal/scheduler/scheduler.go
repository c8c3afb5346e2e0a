// Package scheduler runs one-shot delayed callbacks on a virtual clock.
//
// The scheduler never starts goroutines or timers of its own. A driver (the
// terminal UI frame loop, the overlay loop, or a test) moves time forward with
// Advance, and every callback whose due time has passed runs on the caller's
// goroutine, one at a time, in due order.
package scheduler

import (
	"container/heap"
	"fmt"
	"time"
)

// Func is a scheduled callback. A returned error is passed to the error handler.
type Func func() error

// ErrorHandler receives errors returned (or panics raised) by callbacks.
type ErrorHandler func(error)

// Handle identifies a scheduled callback.
type Handle struct {
	ID    uint64
	Due   time.Time
	epoch uint64
}

type entry struct {
	handle Handle
	fn     Func
	index  int
}

// Scheduler multiplexes delayed callbacks onto a single thread of control.
// It is not safe for concurrent use.
type Scheduler struct {
	now     time.Time
	queue   entryQueue
	nextID  uint64
	epoch   uint64
	onError ErrorHandler
}

// New returns a Scheduler whose clock starts at now.
func New(now time.Time) *Scheduler {
	return &Scheduler{now: now}
}

// SetErrorHandler installs the handler for failing callbacks.
func (s *Scheduler) SetErrorHandler(h ErrorHandler) {
	s.onError = h
}

// Now returns the scheduler clock. Inside a callback it equals that callback's due time.
func (s *Scheduler) Now() time.Time {
	return s.now
}

// Schedule registers fn to run once, delay after the current clock.
// Negative delays are treated as zero.
func (s *Scheduler) Schedule(delay time.Duration, fn Func) Handle {
	if delay < 0 {
		delay = 0
	}
	s.nextID++
	h := Handle{ID: s.nextID, Due: s.now.Add(delay), epoch: s.epoch}
	heap.Push(&s.queue, &entry{handle: h, fn: fn})
	return h
}

// CancelAll drops every pending callback, including callbacks that are already
// due but have not run yet in the current Advance.
func (s *Scheduler) CancelAll() {
	s.epoch++
	s.queue = nil
}

// Pending reports how many callbacks are waiting to run.
func (s *Scheduler) Pending() int {
	return len(s.queue)
}

// NextDue returns the due time of the earliest pending callback.
func (s *Scheduler) NextDue() (time.Time, bool) {
	if len(s.queue) == 0 {
		return time.Time{}, false
	}
	return s.queue[0].handle.Due, true
}

// Advance moves the clock to now and runs every callback due at or before it.
// Callbacks scheduled while advancing run in the same call when they fall due.
// It returns the number of callbacks run.
func (s *Scheduler) Advance(now time.Time) int {
	fired := 0
	for len(s.queue) > 0 {
		next := s.queue[0]
		if next.handle.Due.After(now) {
			break
		}
		heap.Pop(&s.queue)
		if next.handle.epoch != s.epoch {
			continue
		}
		if next.handle.Due.After(s.now) {
			s.now = next.handle.Due
		}
		s.run(next)
		fired++
	}
	if now.After(s.now) {
		s.now = now
	}
	return fired
}

func (s *Scheduler) run(e *entry) {
	defer func() {
		if r := recover(); r != nil {
			s.report(fmt.Errorf("callback %d panicked: %v", e.handle.ID, r))
		}
	}()
	if err := e.fn(); err != nil {
		s.report(fmt.Errorf("callback %d failed: %w", e.handle.ID, err))
	}
}

func (s *Scheduler) report(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

type entryQueue []*entry

func (q entryQueue) Len() int { return len(q) }

func (q entryQueue) Less(i, j int) bool {
	if q[i].handle.Due.Equal(q[j].handle.Due) {
		return q[i].handle.ID < q[j].handle.ID
	}
	return q[i].handle.Due.Before(q[j].handle.Due)
}

func (q entryQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *entryQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *entryQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
