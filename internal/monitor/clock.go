package monitor

import "time"

// Clock supplies the current time. One clock is shared by every collector
// and the render loop so readings from different sources line up.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock. time.Now carries a monotonic reading,
// so ordering and elapsed-time math are unaffected by wall clock jumps.
func SystemClock() Clock { return systemClock{} }
