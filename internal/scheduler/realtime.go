package scheduler

import (
	"context"
	"time"
)

// IdleWait bounds how long Run sleeps when nothing is pending.
const IdleWait = time.Second

// Run drives the scheduler from the wall clock until ctx is done. The
// scheduler must not be touched from other goroutines while Run is active.
func (s *Scheduler) Run(ctx context.Context, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	for {
		s.Advance(now())
		wait := IdleWait
		if due, ok := s.NextDue(); ok {
			wait = due.Sub(now())
		}
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
