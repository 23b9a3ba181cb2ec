// Package ui provides terminal output helpers for radarmon's CLI commands.
//
// The full-screen dashboard lives in internal/dashboard; this package covers
// the line-oriented output of collect, validate and init.
//
// # Color Scheme
//
// Colors share the dashboard's neon palette:
//
//	ColorSuccess   (neon green) - Connected, checks passed
//	ColorError     (red-pink)   - Failures and disconnects
//	ColorWarning   (amber)      - Warnings and reconnects
//	ColorInfo      (cyan)       - Informational messages
//	ColorMuted     (gray)       - Secondary text, timing info
//
// Use DisableColors() to switch to monochrome output (for --no-color flag).
//
// # Spinner
//
// Spinner wraps a blocking call such as the connection test in init:
//
//	s := ui.NewSpinner(out, "Testing connection to sensor-1", isTTY)
//	s.Start()
//	// ... dial ...
//	s.Success() // or s.Fail()
//
// Frames come from bubbles/spinner and are only drawn on a terminal.
//
// # Tables
//
// RenderTable renders a static table for summaries such as the source list
// printed by `radarmon validate`.
package ui
