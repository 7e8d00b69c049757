package background

import (
	"context"
	"time"
)

// Schedule controls how often a retention job runs and how it is leased.
// Runs fire on wall-clock slot boundaries (multiples of Interval since the
// zero time, so midnight UTC for a daily interval), which lines instances up
// on the same tick.
type Schedule struct {
	Interval  time.Duration // Time between runs
	Retention time.Duration // Records older than this are deleted
	MinHold   time.Duration // Lease is kept at least this long after a run
	MaxHold   time.Duration // Lease expires on its own after this long
	Timeout   time.Duration // Upper bound on a single run
}

func (s Schedule) runTimeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return 5 * time.Minute
}

// nextRun returns the first slot boundary strictly after now
func (s Schedule) nextRun(now time.Time) time.Time {
	return now.Truncate(s.Interval).Add(s.Interval)
}

// holdFor is how long a winning instance keeps the lease after starting at now:
// the rest of the slot minus MinHold of clock tolerance, and never less than MinHold.
// An instance whose tick fires late in the same slot then still finds the lease held,
// while the next slot's tick finds it free.
func (s Schedule) holdFor(now time.Time) time.Duration {
	rest := s.nextRun(now).Sub(now) - s.MinHold
	if rest < s.MinHold {
		return s.MinHold
	}
	return rest
}

// runOnSchedule calls run at every slot boundary until stop is closed or ctx is done.
// Nothing runs at startup: an instance booting mid-slot waits for the next boundary.
func runOnSchedule(ctx context.Context, s Schedule, now func() time.Time, stop <-chan struct{}, run func(ctx context.Context)) error {
	for {
		current := now()
		timer := time.NewTimer(s.nextRun(current).Sub(current))

		select {
		case <-timer.C:
			run(ctx)
		case <-stop:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
