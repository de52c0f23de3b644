// Package ui renders command output: aligned tables, titled sections and
// formatted problem reports.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

func style(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}
	return c
}

// Table renders rows under a bold header with columns padded to the widest cell
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a new table with the given headers
func NewTable(w io.Writer, noColor bool, headers ...string) *Table {
	return &Table{
		writer:  w,
		headers: headers,
		noColor: noColor,
	}
}

// AddRow adds a row; missing cells render empty and extra cells are dropped
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	header := style(t.noColor, color.Bold, color.FgCyan)
	rule := style(t.noColor, color.FgHiBlack)

	t.line(widths, t.headers, header.Sprint)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("─", w)
	}
	t.line(widths, sep, rule.Sprint)
	for _, row := range t.rows {
		t.line(widths, row, fmt.Sprint)
	}
}

func (t *Table) line(widths []int, cells []string, paint func(...interface{}) string) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		if i == len(cells)-1 {
			parts[i] = paint(cell)
			continue
		}
		parts[i] = paint(padRight(cell, widths[i]))
	}
	fmt.Fprintln(t.writer, strings.TrimRight(strings.Join(parts, "  "), " "))
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// KeyValueTable renders "key: value" lines with aligned values
type KeyValueTable struct {
	writer  io.Writer
	keys    []string
	values  []string
	noColor bool
}

// NewKeyValueTable creates a new key-value table
func NewKeyValueTable(w io.Writer, noColor bool) *KeyValueTable {
	return &KeyValueTable{writer: w, noColor: noColor}
}

// AddRow adds a key-value pair
func (t *KeyValueTable) AddRow(key, value string) {
	t.keys = append(t.keys, key)
	t.values = append(t.values, value)
}

// Render writes the key-value table
func (t *KeyValueTable) Render() {
	width := 0
	for _, k := range t.keys {
		if len(k) > width {
			width = len(k)
		}
	}

	key := style(t.noColor, color.FgCyan)
	for i, k := range t.keys {
		key.Fprint(t.writer, padRight(k+":", width+1))
		fmt.Fprintf(t.writer, " %s\n", t.values[i])
	}
}

// Header renders a bold title underlined to its width
func Header(w io.Writer, title string, noColor bool) {
	style(noColor, color.Bold, color.FgCyan).Fprintln(w, title)
	style(noColor, color.FgHiBlack).Fprintln(w, strings.Repeat("─", len(title)))
}
