package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/radarmon/internal/monitor"
)

// sparklineWidth is the width of the per-source distance sparkline.
const sparklineWidth = 20

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	if m.showHelp {
		return m.renderHelpOverlay()
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	if !m.hasView {
		b.WriteString(LabelStyle.Render("Waiting for the first frame..."))
		b.WriteString("\n")
		b.WriteString(m.renderFooter())
		return b.String()
	}

	if chart := m.renderChart(); chart != "" {
		b.WriteString(chart)
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderLegend())

	if m.showLogs {
		b.WriteString("\n")
		b.WriteString(m.renderLogPanel())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the dashboard header with summary stats.
func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Render(m.title)

	total := len(m.view.Series)
	connected := m.view.Connected()
	stats := lipgloss.NewStyle().
		Foreground(ColorTextSecondary).
		Render(fmt.Sprintf(" | %d sources | %d connected | %s", total, connected, formatElapsed(m.view.Elapsed)))

	header := HeaderStyle.Render(title + stats)
	if m.paused {
		header += " " + PausedStyle.Render("PAUSED")
	}
	return header
}

// renderChart draws every source's presence distance over the time window.
func (m Model) renderChart() string {
	height := m.chartHeight()
	if height == 0 {
		return ""
	}

	v := m.chartView()
	series := make([]ChartSeries, 0, len(v.Series))
	for i, s := range v.Series {
		series = append(series, ChartSeries{
			Color: SeriesColor(i),
			Segments: SeriesSegments(s, func(r monitor.Reading) float64 {
				return r.Timestamp.Sub(v.Start).Seconds()
			}),
		})
	}

	width := m.width
	if width <= 0 {
		width = BreakpointStandard
	}
	return RenderChart(series, v.TimeAxis, v.ValueAxis, width, height)
}

// renderLegend renders one row per source: glyph, tag, status, latest
// reading and a sparkline. Failed sources show their error.
func (m Model) renderLegend() string {
	rows := make([]string, 0, len(m.view.Series))
	for i, s := range m.view.Series {
		rows = append(rows, m.renderLegendRow(i, s))
	}
	if len(rows) == 0 {
		return LabelStyle.Render("No sources configured")
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderLegendRow(i int, s monitor.Series) string {
	glyph, glyphStyle, label := StatusGlyph(s.Status, m.spinnerFrame)

	swatch := lipgloss.NewStyle().Foreground(SeriesColor(i)).Render("━━")
	tag := ValueStyle.Bold(true).Render(s.Tag)
	status := glyphStyle.Render(glyph + " " + label)
	if s.Status.State == monitor.Reconnecting && s.Status.Attempt > 0 {
		status += MutedStyle.Render(fmt.Sprintf(" (attempt %d)", s.Status.Attempt))
	}

	parts := []string{swatch, tag, status}

	if s.Status.State == monitor.Failed || s.Status.State == monitor.Reconnecting {
		if s.Status.LastError != "" {
			parts = append(parts, ErrorTextStyle.Render(truncate(s.Status.LastError, m.errorWidth())))
		}
		return strings.Join(parts, "  ")
	}

	parts = append(parts, LabelStyle.Render(latestReading(s)))

	if m.LayoutMode() == LayoutStandard && len(s.Points) > 1 {
		data := make([]float64, len(s.Points))
		for j, p := range s.Points {
			data[j] = p.Distance
		}
		parts = append(parts, lipgloss.NewStyle().Foreground(SeriesColor(i)).Render(RenderMiniSparkline(data, sparklineWidth)))
	}

	parts = append(parts, MutedStyle.Render(fmt.Sprintf("%d readings", s.Status.Readings)))
	if s.Status.Malformed > 0 {
		parts = append(parts, StderrStyle.Render(fmt.Sprintf("%d malformed", s.Status.Malformed)))
	}

	return strings.Join(parts, "  ")
}

// latestReading describes the newest reading in the window.
func latestReading(s monitor.Series) string {
	if len(s.Readings) == 0 {
		return "no data"
	}
	r := s.Readings[len(s.Readings)-1]
	if !r.Presence {
		return "no presence"
	}
	return fmt.Sprintf("%.2fm", r.Distance)
}

func (m Model) errorWidth() int {
	w := m.width - 40
	if w < 20 {
		w = 20
	}
	return w
}

// renderLogPanel renders the scrollable panel of recent raw lines.
func (m Model) renderLogPanel() string {
	title := PanelTitleStyle.Render("Log")
	var body string
	if m.logsReady {
		body = m.logs.View()
	} else {
		body = m.renderLogLines()
	}
	width := m.width - 2
	if width < 20 {
		width = 20
	}
	return PanelStyle.Width(width).Render(title + "\n" + body)
}

// renderLogLines formats the merged log as "[  12.3s] tag STREAM: text",
// with the time relative to monitor start.
func (m Model) renderLogLines() string {
	if len(m.view.Logs) == 0 {
		return MutedStyle.Render("no output yet")
	}
	lines := make([]string, 0, len(m.view.Logs))
	for _, l := range m.view.Logs {
		lines = append(lines, formatLogLine(l, m.view.Start))
	}
	return strings.Join(lines, "\n")
}

func formatLogLine(l monitor.LogLine, start time.Time) string {
	offset := l.Time.Sub(start).Seconds()
	text := fmt.Sprintf("[%6.1fs] %s %s: %s", offset, l.Tag, l.Stream, l.Text)
	switch l.Stream {
	case monitor.StreamStderr:
		return StderrStyle.Render(text)
	case monitor.StreamEvent:
		return EventStyle.Render(text)
	default:
		return text
	}
}

// renderFooter renders the footer with keybinding hints.
func (m Model) renderFooter() string {
	hints := "q quit  p pause  l logs  ? help"
	if m.done {
		if m.doneErr != nil {
			return FooterStyle.Render(ErrorTextStyle.Render("monitor stopped: "+m.doneErr.Error()) + "  " + hints)
		}
		return FooterStyle.Render("monitor stopped  " + hints)
	}
	return FooterStyle.Render(hints)
}

// formatElapsed renders seconds as 1h02m03s / 2m03s / 3s.
func formatElapsed(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm%02ds", h, mins, secs)
	case mins > 0:
		return fmt.Sprintf("%dm%02ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// truncate shortens s to at most n runes, adding an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
