package monitor

import (
	"errors"
	"sync"
	"time"
)

// ErrOutOfOrder is returned when a reading is older than the newest one held.
var ErrOutOfOrder = errors.New("reading is older than the newest buffered reading")

// Window is a time-bounded, timestamp-ordered buffer of readings for one source.
//
// One collector appends and the render loop snapshots; both go through the
// mutex, and every critical section is a bounded slice operation. A reading
// exactly window old is kept (inclusive lower bound).
type Window struct {
	mu       sync.Mutex
	duration time.Duration
	clock    Clock

	// readings[head:] is live; the prefix is dead space reclaimed by compact.
	readings []Reading
	head     int
}

// NewWindow creates a buffer retaining readings no older than d.
func NewWindow(d time.Duration, clock Clock) *Window {
	if clock == nil {
		clock = SystemClock()
	}
	return &Window{duration: d, clock: clock}
}

// Duration returns the retention horizon.
func (w *Window) Duration() time.Duration {
	return w.duration
}

// Append adds r and evicts anything that fell out of the window.
// Eviction is relative to the later of the clock and r's timestamp.
func (w *Window) Append(r Reading) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if n := len(w.readings); n > w.head && r.Timestamp.Before(w.readings[n-1].Timestamp) {
		return ErrOutOfOrder
	}
	w.readings = append(w.readings, r)

	now := w.clock.Now()
	if r.Timestamp.After(now) {
		now = r.Timestamp
	}
	w.evictLocked(now)
	return nil
}

// Evict drops readings with Timestamp < now - window.
func (w *Window) Evict(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evictLocked(now)
}

// Snapshot evicts against the clock and returns a copy of what remains,
// oldest first.
func (w *Window) Snapshot() []Reading {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evictLocked(w.clock.Now())

	live := w.readings[w.head:]
	out := make([]Reading, len(live))
	copy(out, live)
	return out
}

// Len returns the number of readings currently held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.readings) - w.head
}

func (w *Window) evictLocked(now time.Time) {
	cutoff := now.Add(-w.duration)
	for w.head < len(w.readings) && w.readings[w.head].Timestamp.Before(cutoff) {
		w.readings[w.head] = Reading{}
		w.head++
	}
	w.compact()
}

// compact reclaims the dead prefix once it outweighs the live part.
func (w *Window) compact() {
	if w.head == 0 {
		return
	}
	if w.head == len(w.readings) {
		w.readings = w.readings[:0]
		w.head = 0
		return
	}
	if w.head > len(w.readings)/2 {
		n := copy(w.readings, w.readings[w.head:])
		clear(w.readings[n:])
		w.readings = w.readings[:n]
		w.head = 0
	}
}
