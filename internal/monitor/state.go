package monitor

import (
	"fmt"
	"time"
)

// ConnectionState is where a collector is in its connect/stream/retry cycle.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Streaming
	Reconnecting
	Failed
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON and logs.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *ConnectionState) UnmarshalText(text []byte) error {
	for c := Disconnected; c <= Failed; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown connection state %q", text)
}

// validTransitions lists the edges of the collector state machine.
var validTransitions = map[ConnectionState][]ConnectionState{
	Disconnected: {Connecting},
	Connecting:   {Streaming, Reconnecting, Disconnected},
	Streaming:    {Reconnecting, Disconnected},
	Reconnecting: {Connecting, Failed, Disconnected},
	Failed:       {},
}

// CanTransition reports whether from -> to is an edge of the state machine.
// Any state may go to Disconnected on shutdown except Failed, which is terminal.
func CanTransition(from, to ConnectionState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StateChange is delivered to observers on every transition.
type StateChange struct {
	SourceID string
	From     ConnectionState
	To       ConnectionState
	Attempt  int
	Err      error
	At       time.Time
}

// Status is a point-in-time summary of one source for display.
type Status struct {
	SourceID string          `json:"source_id"`
	Tag      string          `json:"tag"`
	State    ConnectionState `json:"state"`
	// Since is when the current state was entered.
	Since time.Time `json:"since"`
	// Attempt counts consecutive failed connection attempts.
	Attempt   int       `json:"attempt"`
	LastError string    `json:"last_error,omitempty"`
	Err       error     `json:"-"`
	SessionID string    `json:"session_id,omitempty"`
	LastData  time.Time `json:"last_data"`
	// Stale is set while streaming if no line arrived within the stale threshold.
	Stale      bool   `json:"stale"`
	Readings   uint64 `json:"readings"`
	Malformed  uint64 `json:"malformed"`
	Reconnects int    `json:"reconnects"`
}

// Connected reports whether the source is currently delivering data.
func (s Status) Connected() bool {
	return s.State == Streaming && !s.Stale
}
