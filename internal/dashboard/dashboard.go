// Package dashboard is the terminal display: a Bubble Tea program showing
// every source's distance over the window as a braille chart, a legend with
// connection status and a panel of recent raw output.
package dashboard

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/radarmon/internal/monitor"
	"golang.org/x/term"
)

// RunFunc runs the monitor, publishing views to d, until ctx is cancelled.
type RunFunc func(ctx context.Context, d monitor.Display) error

// Available reports whether stdout is a terminal the dashboard can take over.
func Available() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Run starts the dashboard TUI and the monitor.
// The monitor runs in a background goroutine while the TUI runs in the main
// thread. Quitting the TUI cancels the monitor; Run then waits for it to
// shut down and returns its error.
func Run(ctx context.Context, title string, run RunFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(
		NewModel(title),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	bridge := NewBridge(program)

	resultChan := make(chan error, 1)
	go func() {
		err := run(ctx, bridge)
		resultChan <- err
		// Keep the last frame up and say why it stopped
		bridge.MonitorDone(err)
	}()

	_, progErr := program.Run()
	cancel()

	err := <-resultChan
	bridge.Close()

	if progErr != nil && !errors.Is(progErr, tea.ErrProgramKilled) {
		return progErr
	}
	return err
}
