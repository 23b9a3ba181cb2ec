package monitor

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Reading is one sample reported by a sensor. Immutable once created.
type Reading struct {
	SourceID  string    `json:"source_id"`
	Timestamp time.Time `json:"timestamp"`
	Presence  bool      `json:"presence"`
	// Distance in meters. Only meaningful when Presence is true.
	Distance float64 `json:"distance"`
}

// ParseErrorKind classifies why a line was rejected.
type ParseErrorKind int

const (
	// Malformed covers any line that isn't "<0|1> <float>".
	Malformed ParseErrorKind = iota
)

func (k ParseErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	default:
		return fmt.Sprintf("ParseErrorKind(%d)", int(k))
	}
}

// ParseError is returned for lines that can't be turned into a Reading.
// Callers drop the line and keep reading.
type ParseError struct {
	Kind   ParseErrorKind
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s line %q: %s", e.Kind, e.Line, e.Reason)
}

// ParseLine turns a raw output line into a Reading stamped with ts.
//
// The expected shape is two whitespace-separated tokens: presence (0 or 1)
// and distance in meters. Surrounding whitespace, including the trailing \r
// a PTY adds, is ignored.
func ParseLine(raw, sourceID string, ts time.Time) (Reading, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return Reading{}, &ParseError{Kind: Malformed, Line: raw,
			Reason: fmt.Sprintf("want 2 fields, got %d", len(fields))}
	}

	var presence bool
	switch fields[0] {
	case "1":
		presence = true
	case "0":
		presence = false
	default:
		return Reading{}, &ParseError{Kind: Malformed, Line: raw, Reason: "presence must be 0 or 1"}
	}

	distance, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Reading{}, &ParseError{Kind: Malformed, Line: raw, Reason: "distance is not a number"}
	}
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return Reading{}, &ParseError{Kind: Malformed, Line: raw, Reason: "distance is not finite"}
	}

	return Reading{
		SourceID:  sourceID,
		Timestamp: ts,
		Presence:  presence,
		Distance:  distance,
	}, nil
}
