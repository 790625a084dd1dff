package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockHeld indicates another holder owns the critical section.
var ErrLockHeld = errors.New("lock already held")

// PeriodLockKey builds redis keys for fiscal period critical sections.
func PeriodLockKey(periodID int64) string {
	return fmt.Sprintf("fiscal:period:%d:lock", periodID)
}

// PeriodLocker guards fiscal period closure against in-flight validations.
// Closure takes the lock exclusively; entry validation probes it before
// touching account balances.
type PeriodLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPeriodLocker constructs a locker with the given lease duration.
func NewPeriodLocker(client *redis.Client, ttl time.Duration) *PeriodLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PeriodLocker{client: client, ttl: ttl}
}

// Acquire takes the closure lock for a period. Returns ErrLockHeld when a
// concurrent closure owns it.
func (l *PeriodLocker) Acquire(ctx context.Context, periodID int64, owner string) error {
	if l == nil || l.client == nil {
		return errors.New("period locker not initialised")
	}
	ok, err := l.client.SetNX(ctx, PeriodLockKey(periodID), owner, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("period lock acquire: %w", err)
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// Release frees the closure lock when still owned by the caller.
func (l *PeriodLocker) Release(ctx context.Context, periodID int64, owner string) error {
	if l == nil || l.client == nil {
		return nil
	}
	const script = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`
	return l.client.Eval(ctx, script, []string{PeriodLockKey(periodID)}, owner).Err()
}

// Locked reports whether a closure is in progress for the period.
func (l *PeriodLocker) Locked(ctx context.Context, periodID int64) (bool, error) {
	if l == nil || l.client == nil {
		return false, nil
	}
	n, err := l.client.Exists(ctx, PeriodLockKey(periodID)).Result()
	if err != nil {
		return false, fmt.Errorf("period lock probe: %w", err)
	}
	return n > 0, nil
}
