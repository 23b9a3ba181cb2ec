package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/radarmon/internal/config"
	"github.com/rileyhilliard/radarmon/internal/errors"
	"github.com/rileyhilliard/radarmon/internal/monitor"
	"github.com/rileyhilliard/radarmon/internal/ui"
)

// CollectOptions holds flags for the collect command.
type CollectOptions struct {
	CommonFlags
	// Summary is how often to print per-source counts. Empty prints only on exit.
	Summary string
}

var collectOpts CollectOptions

// collectCommand runs every collector without the dashboard, printing
// connection changes as they happen.
func collectCommand(ctx context.Context, opts CollectOptions, out io.Writer) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if err := ApplyOverrides(cfg, opts.CommonFlags); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	closer, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	sess, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	return runCollect(ctx, sess, out, opts)
}

// runCollect runs the monitor in collection-only mode. With --listen the web
// view is still fed, so the render loop runs for it.
func runCollect(ctx context.Context, sess *session, out io.Writer, opts CollectOptions) error {
	every, err := ParseDuration("summary", opts.Summary)
	if err != nil {
		return err
	}

	p := newStatePrinter(out)
	mon, err := sess.build(nil, p.StateChange)
	if err != nil {
		return err
	}
	for _, se := range mon.Invalid() {
		p.Invalid(se)
	}

	summaryDone := make(chan struct{})
	stopSummary := make(chan struct{})
	go func() {
		defer close(summaryDone)
		if every <= 0 {
			return
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Summary(mon.Feeds())
			case <-stopSummary:
				return
			}
		}
	}()

	err = sess.serve(ctx, mon)
	close(stopSummary)
	<-summaryDone

	p.Summary(mon.Feeds())
	return err
}

// statePrinter writes one line per connection change. Collectors call it
// from their own goroutines.
type statePrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func newStatePrinter(out io.Writer) *statePrinter {
	return &statePrinter{out: out}
}

func (p *statePrinter) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

// StateChange prints a transition.
func (p *statePrinter) StateChange(c monitor.StateChange) {
	symbol, style := stateSymbol(c.To)

	var b strings.Builder
	b.WriteString(ui.MutedStyle().Render(c.At.Format("15:04:05")))
	b.WriteString(" ")
	b.WriteString(style.Render(symbol))
	b.WriteString(" ")
	b.WriteString(c.SourceID)
	b.WriteString(" ")
	b.WriteString(c.To.String())
	if c.To == monitor.Reconnecting && c.Attempt > 0 {
		fmt.Fprintf(&b, " (attempt %d)", c.Attempt)
	}
	if c.Err != nil {
		b.WriteString(": ")
		b.WriteString(errors.Summary(c.Err))
	}
	p.println(b.String())
}

// Invalid reports a source that was disabled by validation.
func (p *statePrinter) Invalid(se config.SourceError) {
	p.println(fmt.Sprintf("%s %s disabled: %s",
		ui.ErrorStyle().Render(ui.SymbolFail), se.Source.ID, se.Error()))
}

// Summary prints one count line per source.
func (p *statePrinter) Summary(feeds []monitor.Feed) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range feeds {
		st := f.Status()
		line := fmt.Sprintf("  %-16s %-12s %6d readings", st.SourceID, st.State, st.Readings)
		if st.Malformed > 0 {
			line += fmt.Sprintf("  %d malformed", st.Malformed)
		}
		if st.Reconnects > 0 {
			line += fmt.Sprintf("  %d reconnects", st.Reconnects)
		}
		fmt.Fprintln(p.out, line)
	}
}

func stateSymbol(s monitor.ConnectionState) (string, lipgloss.Style) {
	switch s {
	case monitor.Streaming:
		return ui.SymbolSuccess, ui.SuccessStyle()
	case monitor.Connecting:
		return ui.SymbolConnecting, ui.InfoStyle()
	case monitor.Reconnecting:
		return ui.SymbolProgress, ui.WarningStyle()
	case monitor.Failed:
		return ui.SymbolFail, ui.ErrorStyle()
	default:
		return ui.SymbolPending, ui.MutedStyle()
	}
}
