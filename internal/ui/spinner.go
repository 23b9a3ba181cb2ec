package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// ConnectFrames animates a connection attempt. They are the bubbles
// MiniDot frames, slowed down for a line-mode terminal.
var ConnectFrames = spinner.Spinner{
	Frames: spinner.MiniDot.Frames,
	FPS:    time.Second / 12,
}

// Spinner shows a one-line "label..." indicator while a blocking call runs
// and replaces it with a ✓ or ✗ line once the call returns.
//
// When animate is false, as for pipes and CI logs, nothing is printed
// until the outcome is known.
type Spinner struct {
	out     io.Writer
	label   string
	frames  spinner.Spinner
	animate bool

	mu      sync.Mutex
	started time.Time
	width   int
	stop    chan struct{}
	done    chan struct{}
}

// NewSpinner creates a spinner that writes to out.
func NewSpinner(out io.Writer, label string, animate bool) *Spinner {
	return &Spinner{out: out, label: label, frames: ConnectFrames, animate: animate}
}

// Start records the start time and, when animating, starts drawing frames.
// Calling Start twice has no effect.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started.IsZero() {
		return
	}
	s.started = time.Now()
	if !s.animate {
		return
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.drawLocked(0)
	go s.run()
}

// Success ends the spinner with a ✓ line.
func (s *Spinner) Success() { s.finish(SuccessStyle().Render(SymbolSuccess)) }

// Fail ends the spinner with a ✗ line.
func (s *Spinner) Fail() { s.finish(ErrorStyle().Render(SymbolFail)) }

func (s *Spinner) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.frames.FPS)
	defer ticker.Stop()

	for frame := 1; ; frame++ {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.drawLocked(frame)
			s.mu.Unlock()
		}
	}
}

func (s *Spinner) drawLocked(frame int) {
	glyph := s.frames.Frames[frame%len(s.frames.Frames)]
	line := lipgloss.NewStyle().Foreground(ColorSecondary).Render(glyph) + " " + s.label + "..."
	s.clearLocked()
	fmt.Fprint(s.out, line)
	s.width = lipgloss.Width(line)
}

func (s *Spinner) clearLocked() {
	if s.width > 0 {
		fmt.Fprint(s.out, "\r"+strings.Repeat(" ", s.width)+"\r")
		s.width = 0
	}
}

func (s *Spinner) finish(symbol string) {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()

	var elapsed time.Duration
	if !s.started.IsZero() {
		elapsed = time.Since(s.started)
	}
	fmt.Fprintf(s.out, "%s %s %s\n", symbol, s.label, MutedStyle().Render(formatDuration(elapsed)))
}

// formatDuration formats a duration for display (e.g., "0.03s", "1.2s").
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	return fmt.Sprintf("%.1fs", secs)
}
