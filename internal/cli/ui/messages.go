package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a problem report with optional suggestions and follow-up
// commands.
//
//	❌ UNKNOWN SCHEMA TYPE: cell_typ
//	   [cell_typ] are invalid types
//
//	   Did you mean: cell_type_local?
//
//	   → See all types: emschema types
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Detail      string
	Suggestions []string
	Commands    []string
	NoColor     bool
}

// String formats the message
func (m Message) String() string {
	var b strings.Builder

	var attrs []color.Attribute
	var symbol string
	switch m.Level {
	case LevelWarning:
		attrs, symbol = []color.Attribute{color.FgYellow}, "⚠️"
	case LevelInfo:
		attrs, symbol = []color.Attribute{color.FgCyan}, "ℹ️"
	default:
		attrs, symbol = []color.Attribute{color.FgRed}, "❌"
	}
	head := style(m.NoColor, append(attrs, color.Bold)...)
	body := style(m.NoColor, attrs...)

	if m.Context != "" {
		head.Fprintf(&b, "%s %s\n", symbol, strings.ToUpper(m.Context))
		body.Fprintf(&b, "   %s\n", m.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}

	if m.Detail != "" {
		b.WriteString("\n")
		body.Fprintf(&b, "   %s\n", m.Detail)
	}

	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		style(m.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}

	if len(m.Commands) > 0 {
		b.WriteString("\n")
		cyan := style(m.NoColor, color.FgCyan)
		for _, cmd := range m.Commands {
			cyan.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// Write writes the formatted message to w
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.String())
}

// UnknownTypesError reports unregistered schema types with the closest
// registered names.
func UnknownTypesError(problem string, unknown, known []string, noColor bool) Message {
	var suggestions []string
	for _, name := range unknown {
		suggestions = append(suggestions, FindSimilar(name, known, nil)...)
	}
	return Message{
		Level:       LevelError,
		Context:     "unknown schema type",
		Problem:     problem,
		Suggestions: lo.Uniq(suggestions),
		Commands:    []string{"See all types: emschema types"},
		NoColor:     noColor,
	}
}

// CompileError reports a failed dataset compilation
func CompileError(err error, noColor bool) Message {
	return Message{
		Level:   LevelError,
		Context: "compile failed",
		Problem: err.Error(),
		Commands: []string{
			"Check the manifest: emschema compile --config emschema.yaml",
			"Get help: emschema compile --help",
		},
		NoColor: noColor,
	}
}

// ApplyError reports a failed apply. Nothing is committed on failure.
func ApplyError(err error, noColor bool) Message {
	return Message{
		Level:   LevelError,
		Context: "apply failed",
		Problem: err.Error(),
		Detail:  "The transaction was rolled back; no tables were created.",
		Commands: []string{
			"Preview the DDL: emschema ddl",
			"Get help: emschema apply --help",
		},
		NoColor: noColor,
	}
}

// ConfigError reports an invalid or missing manifest
func ConfigError(err error, noColor bool) Message {
	return Message{
		Level:   LevelError,
		Context: "configuration error",
		Problem: err.Error(),
		Commands: []string{
			"View config: cat emschema.yaml",
			"Get help: emschema --help",
		},
		NoColor: noColor,
	}
}

// Success formats a success line
func Success(message string, noColor bool) string {
	return style(noColor, color.FgGreen, color.Bold).Sprintf("✓ %s", message)
}

// WriteSuccess writes a success line to w
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, Success(message, noColor))
}

// Info formats an informational message
func Info(message string, noColor bool) string {
	return Message{Level: LevelInfo, Problem: message, NoColor: noColor}.String()
}
