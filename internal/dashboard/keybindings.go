package dashboard

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Key names as bubbletea reports them.
const (
	KeyQuit       = "q"
	KeyQuitAlt    = "ctrl+c"
	KeyToggleLogs = "l"
	KeyPause      = "p"
	KeyFollow     = "f"
	KeyCollapse   = "esc"
	KeyToggleHelp = "?"
)

// keyMap is every binding the dashboard reacts to. Scroll and Page belong
// to the log viewport; they are here so the help overlay lists them.
type keyMap struct {
	Quit   key.Binding
	Pause  key.Binding
	Logs   key.Binding
	Scroll key.Binding
	Page   key.Binding
	Follow key.Binding
	Close  key.Binding
	Help   key.Binding
}

var keys = keyMap{
	Quit:   key.NewBinding(key.WithKeys(KeyQuit, KeyQuitAlt), key.WithHelp("q / ctrl+c", "Quit")),
	Pause:  key.NewBinding(key.WithKeys(KeyPause), key.WithHelp("p", "Pause / resume the chart")),
	Logs:   key.NewBinding(key.WithKeys(KeyToggleLogs), key.WithHelp("l", "Show / hide the log panel")),
	Scroll: key.NewBinding(key.WithKeys("up", "down", "k", "j"), key.WithHelp("↑ / ↓", "Scroll the log panel")),
	Page:   key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("pgup / pgdn", "Page the log panel")),
	Follow: key.NewBinding(key.WithKeys(KeyFollow), key.WithHelp("f", "Follow the newest log lines")),
	Close:  key.NewBinding(key.WithKeys(KeyCollapse), key.WithHelp("esc", "Close help")),
	Help:   key.NewBinding(key.WithKeys(KeyToggleHelp), key.WithHelp("?", "Toggle this help")),
}

// bindings returns the bindings in help overlay order.
func (k keyMap) bindings() []key.Binding {
	return []key.Binding{k.Quit, k.Pause, k.Logs, k.Scroll, k.Page, k.Follow, k.Close, k.Help}
}

// HandleKeyMsg processes keyboard input and updates the model state.
// Returns true if the key was handled, false otherwise. Unhandled keys fall
// through to the log viewport for scrolling.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		return true, nil

	case m.showHelp && key.Matches(msg, keys.Close):
		m.showHelp = false
		return true, nil

	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return true, tea.Quit

	case key.Matches(msg, keys.Logs):
		m.showLogs = !m.showLogs
		return true, nil

	case key.Matches(msg, keys.Pause):
		m.paused = !m.paused
		if m.paused {
			m.frozen = m.view
		}
		return true, nil

	case key.Matches(msg, keys.Follow):
		m.followLogs = true
		if m.logsReady {
			m.logs.GotoBottom()
		}
		return true, nil
	}

	return false, nil
}
