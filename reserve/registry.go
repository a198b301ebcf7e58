// Package reserve tracks which worker currently claims which state, so
// that workers steer around each other instead of expanding the same
// node at the same time. Claims carry a TTL: a crashed or stalled
// worker's claim self-heals by expiring, no crash detection needed.
package reserve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/andysalerno/mcts/game"
	"github.com/andysalerno/mcts/metrics"
)

// ErrNotOwner is returned by Renew and Release when the caller is not
// the recorded holder of the reservation.
var ErrNotOwner = errors.New("reservation not owned by caller")

// AlreadyReservedError reports that another worker holds a live
// reservation on the key. It is expected control flow, not a failure:
// the caller should pick an alternate node.
type AlreadyReservedError struct {
	Holder string
}

func (e *AlreadyReservedError) Error() string {
	return fmt.Sprintf("already reserved by %s", e.Holder)
}

type record struct {
	owner  string
	expiry time.Time
}

// Registry is a concurrent reservation table. All operations are
// immediate: they succeed or fail without blocking.
type Registry struct {
	records *xsync.MapOf[game.StateKey, record]
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source, for tests that exercise expiry
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRegistry(options ...Option) *Registry {
	r := &Registry{
		records: xsync.NewMapOf[game.StateKey, record](),
		now:     time.Now,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// TryReserve atomically claims key for workerID. Exactly one of any set
// of concurrent callers succeeds; the rest get AlreadyReservedError. An
// expired record counts as absent and is overwritten.
func (r *Registry) TryReserve(key game.StateKey, workerID string, ttl time.Duration) error {
	now := r.now()
	var holder string
	r.records.Compute(key, func(old record, loaded bool) (record, bool) {
		if loaded && old.owner != workerID && old.expiry.After(now) {
			holder = old.owner
			return old, false
		}
		return record{owner: workerID, expiry: now.Add(ttl)}, false
	})
	if holder != "" {
		metrics.ReservationRacesTotal.Inc()
		return &AlreadyReservedError{Holder: holder}
	}
	metrics.ReservationsTotal.Inc()
	return nil
}

// Renew extends the expiry of a reservation the caller still holds.
func (r *Registry) Renew(key game.StateKey, workerID string, ttl time.Duration) error {
	now := r.now()
	owned := false
	r.records.Compute(key, func(old record, loaded bool) (record, bool) {
		if !loaded || old.owner != workerID || !old.expiry.After(now) {
			return old, !loaded
		}
		owned = true
		return record{owner: workerID, expiry: now.Add(ttl)}, false
	})
	if !owned {
		return ErrNotOwner
	}
	return nil
}

// Release drops the caller's reservation on key.
func (r *Registry) Release(key game.StateKey, workerID string) error {
	owned := false
	r.records.Compute(key, func(old record, loaded bool) (record, bool) {
		if !loaded || old.owner != workerID {
			return old, !loaded
		}
		owned = true
		return record{}, true
	})
	if !owned {
		return ErrNotOwner
	}
	return nil
}

// IsReserved reports whether a live reservation exists on key. Expired
// records read as unreserved; they are reclaimed lazily.
func (r *Registry) IsReserved(key game.StateKey) bool {
	rec, ok := r.records.Load(key)
	return ok && rec.expiry.After(r.now())
}

// Holder returns the current live holder of key, if any.
func (r *Registry) Holder(key game.StateKey) (string, bool) {
	rec, ok := r.records.Load(key)
	if !ok || !rec.expiry.After(r.now()) {
		return "", false
	}
	return rec.owner, true
}

// Len returns the number of records held, expired ones included.
func (r *Registry) Len() int {
	return r.records.Size()
}

// Sweep removes expired records. Not required for correctness (expiry is
// lazy), only to reclaim memory.
func (r *Registry) Sweep() int {
	now := r.now()
	removed := 0
	r.records.Range(func(key game.StateKey, _ record) bool {
		r.records.Compute(key, func(old record, loaded bool) (record, bool) {
			if loaded && !old.expiry.After(now) {
				removed++
				return record{}, true
			}
			return old, !loaded
		})
		return true
	})
	return removed
}

// RunSweeper sweeps at the given interval until ctx is cancelled.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
