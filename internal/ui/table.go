package ui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn is a column of a static CLI table. The column is as wide as
// its widest cell, capped at Max when Max is set; longer cells are
// truncated with an ellipsis.
type TableColumn struct {
	Title string
	Max   int
}

// RenderTable renders rows as a non-interactive table for line-mode output
// such as the source list printed by validate. It returns "" when there are
// no rows.
func RenderTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		width := lipgloss.Width(c.Title)
		for _, row := range rows {
			if i < len(row) {
				width = max(width, lipgloss.Width(row[i]))
			}
		}
		if c.Max > 0 {
			width = min(width, c.Max)
		}
		cols[i] = table.Column{Title: c.Title, Width: width}
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(tableRows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.Foreground(ColorPrimary)
	// Nothing is focused, but the first row still gets the selected style.
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)

	return t.View()
}
