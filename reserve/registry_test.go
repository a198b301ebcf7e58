package reserve

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

/* spec:
- tryReserve: exactly one winner among concurrent attempts; expired
  records count as absent
- renew/release: only the recorded owner may; expired renew fails
- isReserved: false strictly after ttl elapses, no release needed
- sweep: drops expired records only
*/

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTryReserve(t *testing.T) {
	t.Run("first caller wins", func(t *testing.T) {
		r := NewRegistry()

		require.NoError(t, r.TryReserve(1, "w1", time.Minute))

		err := r.TryReserve(1, "w2", time.Minute)
		var busy *AlreadyReservedError
		require.ErrorAs(t, err, &busy)
		require.Equal(t, "w1", busy.Holder)
	})

	t.Run("holder may re-reserve its own key", func(t *testing.T) {
		r := NewRegistry()

		require.NoError(t, r.TryReserve(1, "w1", time.Minute))
		require.NoError(t, r.TryReserve(1, "w1", time.Minute))
	})

	t.Run("exactly one winner among concurrent attempts", func(t *testing.T) {
		r := NewRegistry()
		const workers = 32

		var wg sync.WaitGroup
		results := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = r.TryReserve(7, string(rune('A'+i)), time.Minute)
			}(i)
		}
		wg.Wait()

		won := 0
		for _, err := range results {
			if err == nil {
				won++
			} else {
				var busy *AlreadyReservedError
				require.ErrorAs(t, err, &busy)
			}
		}
		require.Equal(t, 1, won, "exactly one concurrent caller must win")
	})

	t.Run("expired record is overwritten", func(t *testing.T) {
		clock := newFakeClock()
		r := NewRegistry(WithClock(clock.Now))

		require.NoError(t, r.TryReserve(1, "w1", time.Second))
		clock.Advance(2 * time.Second)

		require.NoError(t, r.TryReserve(1, "w2", time.Second))
		holder, ok := r.Holder(1)
		require.True(t, ok)
		require.Equal(t, "w2", holder)
	})
}

func TestReservationExpiry(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(WithClock(clock.Now))

	require.NoError(t, r.TryReserve(1, "w1", time.Second))
	require.True(t, r.IsReserved(1))

	clock.Advance(time.Second)
	require.False(t, r.IsReserved(1), "reservation must lapse strictly after ttl, no release needed")
}

func TestRenew(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(WithClock(clock.Now))
	require.NoError(t, r.TryReserve(1, "w1", time.Second))

	t.Run("extends the holder's expiry", func(t *testing.T) {
		clock.Advance(500 * time.Millisecond)
		require.NoError(t, r.Renew(1, "w1", time.Second))

		clock.Advance(700 * time.Millisecond)
		require.True(t, r.IsReserved(1), "renewed reservation must outlive the original ttl")
	})

	t.Run("rejects non-owner", func(t *testing.T) {
		require.ErrorIs(t, r.Renew(1, "w2", time.Second), ErrNotOwner)
	})

	t.Run("rejects expired reservation", func(t *testing.T) {
		clock.Advance(time.Hour)
		require.ErrorIs(t, r.Renew(1, "w1", time.Second), ErrNotOwner)
	})
}

func TestRelease(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.TryReserve(1, "w1", time.Minute))

	t.Run("rejects non-owner", func(t *testing.T) {
		require.ErrorIs(t, r.Release(1, "w2"), ErrNotOwner)
		require.True(t, r.IsReserved(1))
	})

	t.Run("owner releases", func(t *testing.T) {
		require.NoError(t, r.Release(1, "w1"))
		require.False(t, r.IsReserved(1))
	})

	t.Run("rejects absent key", func(t *testing.T) {
		require.ErrorIs(t, r.Release(99, "w1"), ErrNotOwner)
	})
}

func TestSweep(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(WithClock(clock.Now))

	require.NoError(t, r.TryReserve(1, "w1", time.Second))
	require.NoError(t, r.TryReserve(2, "w1", time.Hour))
	clock.Advance(time.Minute)

	removed := r.Sweep()

	require.Equal(t, 1, removed)
	require.Equal(t, 1, r.Len())
	require.True(t, r.IsReserved(2), "live reservation must survive the sweep")
}

func TestHolder(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Holder(1)
	require.False(t, ok)

	require.NoError(t, r.TryReserve(1, "w1", time.Minute))
	holder, ok := r.Holder(1)
	require.True(t, ok)
	require.Equal(t, "w1", holder)
}

func TestConcurrentReserveRelease(t *testing.T) {
	// Race detector fodder: hammer one key from many goroutines.
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('A' + i))
			for j := 0; j < 100; j++ {
				if err := r.TryReserve(1, id, time.Millisecond); err == nil {
					_ = r.Release(1, id)
				}
				r.IsReserved(1)
			}
		}(i)
	}
	wg.Wait()
}
