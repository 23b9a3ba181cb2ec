package monitor

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reading(seconds float64, presence bool, distance float64) Reading {
	return Reading{SourceID: "host-1", Timestamp: at(seconds), Presence: presence, Distance: distance}
}

func TestWindow_EvictsOnAppend(t *testing.T) {
	clock := newFakeClock(at(0))
	w := NewWindow(120*time.Second, clock)

	require.NoError(t, w.Append(reading(0, true, 0.5)))
	clock.Set(at(130))
	require.NoError(t, w.Append(reading(130, true, 0.7)))

	snap := w.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, at(130), snap[0].Timestamp)
	assert.Equal(t, 0.7, snap[0].Distance)
}

func TestWindow_AppendAheadOfClock(t *testing.T) {
	// A reading stamped after the clock still pushes the window forward.
	clock := newFakeClock(at(0))
	w := NewWindow(120*time.Second, clock)

	require.NoError(t, w.Append(reading(0, true, 0.5)))
	require.NoError(t, w.Append(reading(130, true, 0.7)))

	assert.Equal(t, 1, w.Len())
}

func TestWindow_InclusiveLowerBound(t *testing.T) {
	clock := newFakeClock(at(0))
	w := NewWindow(120*time.Second, clock)
	require.NoError(t, w.Append(reading(0, true, 0.5)))

	// Exactly window old: kept.
	w.Evict(at(120))
	assert.Equal(t, 1, w.Len())

	clock.Set(at(120))
	assert.Len(t, w.Snapshot(), 1)

	// One nanosecond older than the window: gone.
	w.Evict(at(120).Add(time.Nanosecond))
	assert.Equal(t, 0, w.Len())
}

func TestWindow_SnapshotEvictsAgainstClock(t *testing.T) {
	clock := newFakeClock(at(0))
	w := NewWindow(10*time.Second, clock)

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Append(reading(float64(i), true, float64(i))))
	}
	assert.Len(t, w.Snapshot(), 5)

	// No appends while disconnected, but time keeps moving.
	clock.Set(at(12))
	snap := w.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, at(2), snap[0].Timestamp)

	clock.Set(at(60))
	assert.Empty(t, w.Snapshot())
}

func TestWindow_KeepsAbsentReadings(t *testing.T) {
	w := NewWindow(time.Minute, newFakeClock(at(3)))
	require.NoError(t, w.Append(reading(1, true, 0.65)))
	require.NoError(t, w.Append(reading(2, false, 0)))
	require.NoError(t, w.Append(reading(3, true, 0.84)))

	snap := w.Snapshot()
	require.Len(t, snap, 3)
	assert.False(t, snap[1].Presence)
}

func TestWindow_RejectsOutOfOrder(t *testing.T) {
	w := NewWindow(time.Minute, newFakeClock(at(10)))
	require.NoError(t, w.Append(reading(5, true, 1)))
	require.NoError(t, w.Append(reading(5, true, 2)), "equal timestamps are in order")

	err := w.Append(reading(4, true, 3))
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.Equal(t, 2, w.Len())
}

func TestWindow_EvictKeepsOnlyWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const window = 30 * time.Second

	for trial := 0; trial < 50; trial++ {
		clock := newFakeClock(epoch)
		w := NewWindow(window, clock)
		ts := epoch

		for i := 0; i < 200; i++ {
			ts = ts.Add(time.Duration(rng.Int63n(int64(2 * time.Second))))
			require.NoError(t, w.Append(Reading{SourceID: "s", Timestamp: ts, Presence: true, Distance: 1}))

			if rng.Intn(10) == 0 {
				now := ts.Add(time.Duration(rng.Int63n(int64(time.Minute))))
				w.Evict(now)
				clock.Set(now)
				for _, r := range w.Snapshot() {
					assert.False(t, r.Timestamp.Before(now.Add(-window)),
						"reading at %s survived eviction at %s", r.Timestamp, now)
				}
				ts = now
			}
		}
	}
}

func TestWindow_CompactsDeadPrefix(t *testing.T) {
	clock := newFakeClock(epoch)
	w := NewWindow(10*time.Second, clock)

	for i := 0; i < 1000; i++ {
		ts := epoch.Add(time.Duration(i) * 100 * time.Millisecond)
		clock.Set(ts)
		require.NoError(t, w.Append(Reading{SourceID: "s", Timestamp: ts, Presence: true, Distance: float64(i)}))
	}

	// 10s at 10 readings/s, plus the reading exactly on the boundary.
	assert.Equal(t, 101, w.Len())
	assert.LessOrEqual(t, len(w.readings), 2*w.Len()+1, "dead prefix should have been reclaimed")

	snap := w.Snapshot()
	assert.Equal(t, float64(899), snap[0].Distance)
	assert.Equal(t, float64(999), snap[len(snap)-1].Distance)
}

func TestWindow_SnapshotIsACopy(t *testing.T) {
	w := NewWindow(time.Minute, newFakeClock(at(1)))
	require.NoError(t, w.Append(reading(1, true, 0.5)))

	snap := w.Snapshot()
	snap[0].Distance = 99

	assert.Equal(t, 0.5, w.Snapshot()[0].Distance)
}

func TestWindow_ConcurrentAppendAndSnapshot(t *testing.T) {
	clock := newFakeClock(epoch)
	w := NewWindow(500*time.Millisecond, clock)
	const n = 5000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			ts := epoch.Add(time.Duration(i) * time.Millisecond)
			clock.Set(ts)
			// Distance encodes the timestamp so a torn reading would show up.
			assert.NoError(t, w.Append(Reading{SourceID: "s", Timestamp: ts, Presence: i%3 != 0, Distance: float64(i)}))
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < n/10; i++ {
			snap := w.Snapshot()
			for j, r := range snap {
				if !assert.Equal(t, "s", r.SourceID) {
					return
				}
				want := epoch.Add(time.Duration(r.Distance) * time.Millisecond)
				if !assert.True(t, r.Timestamp.Equal(want), "torn reading %+v", r) {
					return
				}
				if j > 0 && !assert.False(t, r.Timestamp.Before(snap[j-1].Timestamp), "snapshot out of order") {
					return
				}
			}
		}
	}()

	wg.Wait()
	assert.LessOrEqual(t, w.Len(), 501)
}
