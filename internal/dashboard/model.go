package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/radarmon/internal/monitor"
)

// LayoutMode represents the responsive layout mode based on terminal size.
type LayoutMode int

const (
	// LayoutMinimal is for terminals < 80 columns: legend and logs only, no chart
	LayoutMinimal LayoutMode = iota
	// LayoutCompact is for terminals 80-120 columns: short chart, sparklines hidden
	LayoutCompact
	// LayoutStandard is for terminals 120+ columns: full chart with sparklines
	LayoutStandard
)

// Width breakpoints for layout modes
const (
	BreakpointCompact  = 80
	BreakpointStandard = 120
)

// Height breakpoints for layout adjustments
const (
	HeightMinimal  = 24
	HeightStandard = 40
)

// Model is the Bubble Tea model for the radar dashboard.
type Model struct {
	title   string
	view    monitor.View
	hasView bool

	// frozen holds the chart shown while paused. The legend and logs stay live.
	frozen monitor.View

	width    int
	height   int
	showLogs bool
	showHelp bool
	paused   bool
	quitting bool

	// done is set once the monitor stops; the last view stays on screen.
	done    bool
	doneErr error

	// Animation state
	spinnerFrame int

	// Scrollable log panel
	logs       viewport.Model
	logsReady  bool
	followLogs bool
}

// ViewMsg carries a freshly built view from the render loop.
type ViewMsg struct {
	View monitor.View
}

// MonitorDoneMsg reports that the monitor has stopped.
type MonitorDoneMsg struct {
	Err error
}

// spinnerTickMsg signals a spinner animation frame update.
type spinnerTickMsg time.Time

// spinnerInterval is the animation frame rate for the reconnecting spinner
const spinnerInterval = 150 * time.Millisecond

// logPanelHeight is the number of log rows visible at once.
const logPanelHeight = 8

// NewModel creates a dashboard model. title is shown in the header.
func NewModel(title string) Model {
	if title == "" {
		title = "radarmon"
	}
	return Model{
		title:      title,
		showLogs:   true,
		followLogs: true,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinnerTickCmd()
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		handled, cmd := m.HandleKeyMsg(msg)
		if handled {
			return m, cmd
		}
		if m.showLogs && m.logsReady {
			var cmd tea.Cmd
			m.logs, cmd = m.logs.Update(msg)
			m.followLogs = m.logs.AtBottom()
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		width := m.width - 4 // panel border and padding
		if width < 1 {
			width = 1
		}
		if !m.logsReady {
			m.logs = viewport.New(width, logPanelHeight)
			m.logsReady = true
		} else {
			m.logs.Width = width
			m.logs.Height = logPanelHeight
		}
		m.refreshLogs()

	case ViewMsg:
		m.view = msg.View
		if !m.paused || !m.hasView {
			m.frozen = msg.View
		}
		m.hasView = true
		m.refreshLogs()

	case MonitorDoneMsg:
		m.done = true
		m.doneErr = msg.Err

	case spinnerTickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % 10000
		return m, m.spinnerTickCmd()
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

// spinnerTickCmd returns a command that advances the spinner animation.
func (m Model) spinnerTickCmd() tea.Cmd {
	return tea.Tick(spinnerInterval, func(t time.Time) tea.Msg {
		return spinnerTickMsg(t)
	})
}

// refreshLogs rewrites the log viewport from the current view, keeping the
// scroll position unless the user was already following the tail.
func (m *Model) refreshLogs() {
	if !m.logsReady {
		return
	}
	m.logs.SetContent(m.renderLogLines())
	if m.followLogs {
		m.logs.GotoBottom()
	}
}

// chartView returns the view the chart is drawn from.
func (m Model) chartView() monitor.View {
	if m.paused {
		return m.frozen
	}
	return m.view
}

// Current returns the latest view received.
func (m Model) Current() monitor.View { return m.view }

// Paused reports whether the chart is frozen.
func (m Model) Paused() bool { return m.paused }

// Done reports whether the monitor has stopped, and with what error.
func (m Model) Done() (bool, error) { return m.done, m.doneErr }

// LayoutMode picks the layout for the current terminal size.
func (m Model) LayoutMode() LayoutMode {
	switch {
	case m.width < BreakpointCompact:
		return LayoutMinimal
	case m.width < BreakpointStandard:
		return LayoutCompact
	default:
		return LayoutStandard
	}
}

// chartHeight is the number of braille rows the chart gets.
func (m Model) chartHeight() int {
	if m.LayoutMode() == LayoutMinimal {
		return 0
	}
	// header, legend, footer and the log panel take the rest
	reserved := 4 + len(m.view.Series)
	if m.showLogs {
		reserved += logPanelHeight + 3
	}
	h := m.height - reserved - 3
	switch {
	case m.height < HeightMinimal && h > 8:
		h = 8
	case h > 24:
		h = 24
	}
	if h < 4 {
		h = 4
	}
	return h
}
