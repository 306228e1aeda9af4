// Package diagnostic renders problems in a GraphQL document as annotated
// source snippets:
//
//	--> document:1:9
//	1 | query { FUZZ FUZZ }
//	  |              ^^^^ placeholder appears more than once
//	  = help: keep exactly one FUZZ
package diagnostic

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	gutterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	caretStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// Diagnostic is one problem at a position in a named source. Line and
// Column are 1-based; a zero Line means the problem has no position.
type Diagnostic struct {
	Line    int
	Column  int
	Length  int
	Message string
	Help    string
}

// Render formats d against source. Positions outside source fall back to the
// bare message.
func (d Diagnostic) Render(name, source string) string {
	var b strings.Builder

	lines := strings.Split(source, "\n")
	if d.Line < 1 || d.Line > len(lines) {
		b.WriteString(messageStyle.Render(d.Message))
	} else {
		b.WriteString(location(name, d.Line, d.Column))
		b.WriteString("\n")
		b.WriteString(snippet(lines[d.Line-1], d.Line, d.Column, d.Length, d.Message))
	}
	if d.Help != "" {
		b.WriteString("\n  ")
		b.WriteString(helpStyle.Render("= help:"))
		b.WriteString(" ")
		b.WriteString(d.Help)
	}
	return b.String()
}

// RenderAll renders every diagnostic, separated by blank lines.
func RenderAll(name, source string, diags []Diagnostic) string {
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = d.Render(name, source)
	}
	return strings.Join(parts, "\n\n")
}

// snippet renders a source line with its number and a caret underline.
func snippet(source string, lineNum, column, length int, message string) string {
	if length < 1 {
		length = 1
	}
	if column < 1 {
		column = 1
	}

	numStr := strconv.Itoa(lineNum)
	pipe := gutterStyle.Render("|")
	codeLine := gutterStyle.Render(numStr) + " " + pipe + " " + source

	underLine := strings.Repeat(" ", len(numStr)) + " " + pipe + " " +
		strings.Repeat(" ", column-1) + caretStyle.Render(strings.Repeat("^", length))
	if message != "" {
		underLine += " " + messageStyle.Render(message)
	}
	return codeLine + "\n" + underLine
}

func location(name string, line, column int) string {
	return gutterStyle.Render("-->") + " " + name + ":" + strconv.Itoa(line) + ":" + strconv.Itoa(column)
}
