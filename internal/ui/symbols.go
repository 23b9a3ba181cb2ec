package ui

// Status glyphs shared by collect, validate, doctor and init.
const (
	SymbolSuccess    = "✓" // streaming, check passed
	SymbolFail       = "✗" // failed or disconnected
	SymbolPending    = "○" // not started
	SymbolProgress   = "◐" // reconnecting
	SymbolComplete   = "●"
	SymbolWarning    = "⚠"
	SymbolConnecting = "⚡"
)
