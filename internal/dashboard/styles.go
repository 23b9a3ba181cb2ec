package dashboard

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/radarmon/internal/monitor"
)

// Dashboard color palette - Electric Synthwave
const (
	// Background colors
	ColorDarkBg    = lipgloss.Color("#0A0A0F") // Deep void
	ColorSurfaceBg = lipgloss.Color("#12121A") // Dark surface
	ColorBorder    = lipgloss.Color("#2A2A4A") // Glass border (purple tint)

	// Semantic colors - neon style
	ColorHealthy  = lipgloss.Color("#39FF14") // Neon green
	ColorWarning  = lipgloss.Color("#FFAA00") // Electric amber
	ColorCritical = lipgloss.Color("#FF0055") // Hot red-pink

	// Text colors
	ColorTextPrimary   = lipgloss.Color("#FFFFFF") // Pure white
	ColorTextSecondary = lipgloss.Color("#B4B4D0") // Lavender gray
	ColorTextMuted     = lipgloss.Color("#6B6B8D") // Purple-gray

	// Accent colors - neon pink primary, purple secondary
	ColorAccent    = lipgloss.Color("#FF2E97") // Neon pink
	ColorAccentDim = lipgloss.Color("#BF40FF") // Neon purple
)

// SeriesColors assigns one line color per source, in config order.
// Sources past the end wrap around.
var SeriesColors = []lipgloss.Color{
	lipgloss.Color("#00FFFF"), // Neon cyan
	lipgloss.Color("#FF2E97"), // Neon pink
	lipgloss.Color("#39FF14"), // Neon green
	lipgloss.Color("#FFAA00"), // Electric amber
	lipgloss.Color("#BF40FF"), // Neon purple
	lipgloss.Color("#4D9FFF"), // Electric blue
}

// SeriesColor returns the line color for the i-th source.
func SeriesColor(i int) lipgloss.Color {
	if i < 0 {
		i = -i
	}
	return SeriesColors[i%len(SeriesColors)]
}

// Base styles for the dashboard
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Background(ColorSurfaceBg).
			Bold(true).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	PanelTitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	AxisStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorCritical)

	// Log panel stream styles
	StderrStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	EventStyle = lipgloss.NewStyle().
			Foreground(ColorAccentDim)

	PausedStyle = lipgloss.NewStyle().
			Foreground(ColorDarkBg).
			Background(ColorWarning).
			Bold(true).
			Padding(0, 1)
)

// Status glyphs shown in the legend.
const (
	GlyphConnected    = "✓"
	GlyphDisconnected = "✗"
	GlyphConnecting   = "⚡"
	GlyphStale        = "◔"
	GlyphFailed       = "✗"
)

// ReconnectingSpinnerFrames animate the legend glyph while a source is
// waiting out its backoff.
var ReconnectingSpinnerFrames = []string{"◐", "◓", "◑", "◒"}

// StatusGlyph returns the legend glyph, its style and a short label for s.
// frame drives the reconnecting animation.
func StatusGlyph(s monitor.Status, frame int) (string, lipgloss.Style, string) {
	switch {
	case s.State == monitor.Streaming && s.Stale:
		return GlyphStale, lipgloss.NewStyle().Foreground(ColorWarning), "Stale"
	case s.State == monitor.Streaming:
		return GlyphConnected, lipgloss.NewStyle().Foreground(ColorHealthy), "Connected"
	case s.State == monitor.Connecting:
		return GlyphConnecting, lipgloss.NewStyle().Foreground(ColorWarning), "Connecting"
	case s.State == monitor.Reconnecting:
		glyph := ReconnectingSpinnerFrames[frame%len(ReconnectingSpinnerFrames)]
		return glyph, lipgloss.NewStyle().Foreground(ColorWarning), "Reconnecting"
	case s.State == monitor.Failed:
		return GlyphFailed, lipgloss.NewStyle().Foreground(ColorCritical).Bold(true), "Failed"
	default:
		return GlyphDisconnected, lipgloss.NewStyle().Foreground(ColorCritical), "Disconnected"
	}
}
