package monitor

import (
	"sort"
	"sync"
	"time"
)

// DefaultLogTailSize is how many raw lines each source keeps for the log panel.
const DefaultLogTailSize = 50

// Stream names where a log line came from.
type Stream string

const (
	StreamStdout Stream = "STDOUT"
	StreamStderr Stream = "STDERR"
	// StreamEvent marks lines the collector writes itself, like state changes.
	StreamEvent Stream = "EVENT"
)

// LogLine is one raw line shown in the log panel.
type LogLine struct {
	Time     time.Time `json:"time"`
	SourceID string    `json:"source_id"`
	Tag      string    `json:"tag"`
	Stream   Stream    `json:"stream"`
	Text     string    `json:"text"`
}

// LogTail keeps the most recent lines for one source in a fixed-size ring.
// Safe for one writer and any number of readers.
type LogTail struct {
	mu    sync.Mutex
	data  []LogLine
	head  int
	count int
}

// NewLogTail creates a tail holding up to size lines.
func NewLogTail(size int) *LogTail {
	if size <= 0 {
		size = DefaultLogTailSize
	}
	return &LogTail{data: make([]LogLine, size)}
}

// Push adds a line, overwriting the oldest once full.
func (t *LogTail) Push(line LogLine) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data[t.head] = line
	t.head = (t.head + 1) % len(t.data)
	if t.count < len(t.data) {
		t.count++
	}
}

// Last returns up to n lines, oldest first.
func (t *LogTail) Last(n int) []LogLine {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n <= 0 || t.count == 0 {
		return nil
	}
	if n > t.count {
		n = t.count
	}

	size := len(t.data)
	// head is the next write position, so the newest line sits at head-1.
	start := (t.head - n + size) % size
	out := make([]LogLine, n)
	for i := 0; i < n; i++ {
		out[i] = t.data[(start+i)%size]
	}
	return out
}

// MergeLogs interleaves per-source tails by time and keeps the newest n.
func MergeLogs(n int, tails ...[]LogLine) []LogLine {
	if n <= 0 {
		return nil
	}
	var all []LogLine
	for _, t := range tails {
		all = append(all, t...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Time.Before(all[j].Time)
	})
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}
