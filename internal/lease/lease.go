// Package lease provides named, time-bounded locks that keep scheduled jobs
// running on one instance at a time
package lease

import (
	"context"
	"fmt"
	"time"
)

// releaseTimeout bounds Release when the job context is already cancelled
const releaseTimeout = 5 * time.Second

// Lease is a held lock
type Lease interface {
	// Release gives the lock up. The lock stays held until minHold has elapsed
	// since acquisition so that other instances skip the same schedule slot.
	Release(ctx context.Context) error
}

// Locker hands out leases by name
type Locker interface {
	// Acquire tries to take the named lock. ok is false when another holder has it.
	// The lock expires on its own after maxHold.
	Acquire(ctx context.Context, name string, minHold, maxHold time.Duration) (l Lease, ok bool, err error)
}

// Do runs fn while holding the named lease. ran is false when the lease was held
// elsewhere, which is not an error.
func Do(ctx context.Context, locker Locker, name string, minHold, maxHold time.Duration, fn func(ctx context.Context) error) (ran bool, err error) {
	l, ok, err := locker.Acquire(ctx, name, minHold, maxHold)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}
	if !ok {
		return false, nil
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if releaseErr := l.Release(releaseCtx); releaseErr != nil && err == nil {
			err = fmt.Errorf("failed to release lease %s: %w", name, releaseErr)
		}
	}()

	return true, fn(ctx)
}

// NoopLocker always grants the lease. Use it when only one instance runs.
type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context, name string, minHold, maxHold time.Duration) (Lease, bool, error) {
	return noopLease{}, true, nil
}

type noopLease struct{}

func (noopLease) Release(ctx context.Context) error { return nil }
