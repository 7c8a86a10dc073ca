package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderTable draws rows with a header line. Styling is applied only when
// writing to a terminal.
func renderTable(w io.Writer, headers []string, rows [][]string) string {
	styled := isTerminal(w)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow && styled {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		})
	return t.String() + "\n"
}
