// Package render prints lists of records as JSON, plain text lines or a
// terminal table.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

type Format string

const (
	FormatJSON   Format = "json"
	FormatText   Format = "text"
	FormatPretty Format = "pretty"
)

var ValidFormats = []Format{FormatJSON, FormatText, FormatPretty}

func ParseFormat(s string) (Format, error) {
	for _, f := range ValidFormats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	names := make([]string, len(ValidFormats))
	for i, f := range ValidFormats {
		names[i] = string(f)
	}
	return "", fmt.Errorf("invalid format: %s (valid: %s)", s, strings.Join(names, ", "))
}

// Renderer renders Data in one of the formats. Text renders one line per
// record; the pretty table has one row per record with Row's cells under
// Headers.
type Renderer[T any] struct {
	Data    []T
	Text    func(T) string
	Headers []string
	Row     func(T) []string
}

func (r Renderer[T]) Render(format Format) (string, error) {
	switch format {
	case FormatJSON:
		return r.renderJSON()
	case FormatPretty:
		return r.renderPretty()
	case FormatText:
		return r.renderText()
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// Write renders to w followed by a newline.
func (r Renderer[T]) Write(w io.Writer, format Format) error {
	out, err := r.Render(format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func (r Renderer[T]) renderJSON() (string, error) {
	data := r.Data
	if data == nil {
		data = []T{}
	}
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (r Renderer[T]) renderText() (string, error) {
	if r.Text == nil {
		return "", fmt.Errorf("text format not defined for this type")
	}

	lines := make([]string, 0, len(r.Data))
	for _, item := range r.Data {
		lines = append(lines, r.Text(item))
	}
	return strings.Join(lines, "\n"), nil
}

func (r Renderer[T]) renderPretty() (string, error) {
	if r.Row == nil {
		return "", fmt.Errorf("pretty format not defined for this type")
	}

	rows := make([][]string, 0, len(r.Data))
	for _, item := range r.Data {
		rows = append(rows, r.Row(item))
	}
	return Table(r.Headers, rows), nil
}

var cellStyle = lipgloss.NewStyle().PaddingRight(1)

// Table lays rows out under headers, wrapping cells to fit 120 columns.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Width(120).
		Wrap(true).
		StyleFunc(func(row, col int) lipgloss.Style {
			return cellStyle
		})
	for _, row := range rows {
		t.Row(row...)
	}
	t.Headers(headers...)
	return t.String()
}
