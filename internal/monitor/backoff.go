package monitor

import (
	"math"
	"time"
)

// Backoff is a capped exponential delay schedule between connection attempts.
// The delay before attempt n (1-based) is Initial * Multiplier^(n-1), capped at Max.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff is 1s, 2s, 4s, ... up to 30s.
var DefaultBackoff = Backoff{Initial: time.Second, Max: 30 * time.Second, Multiplier: 2}

// Delay returns how long to wait before the given attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := b.Initial
	if initial <= 0 {
		initial = DefaultBackoff.Initial
	}
	limit := b.Max
	if limit < initial {
		limit = initial
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(initial) * math.Pow(mult, float64(attempt-1))
	if math.IsInf(d, 0) || d >= float64(limit) {
		return limit
	}
	return time.Duration(d)
}
