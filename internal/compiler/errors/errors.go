// Package errors provides structured error handling for the schema compiler.
// Every failure the compiler can raise carries a stable error code and a
// category so callers can match on it with errors.Is and tools can consume it
// as JSON.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error code of the schema compiler
type ErrorCode string

// ErrorCategory represents the category of a compiler error
type ErrorCategory string

const (
	// CategorySchema represents schema definition and lookup errors (SCH100-199)
	CategorySchema ErrorCategory = "schema"
	// CategoryCodeGen represents table-dict and type mapping errors (GEN600-699)
	CategoryCodeGen ErrorCategory = "codegen"
)

// SchemaError represents a structured compiler error
type SchemaError struct {
	// Code is the unique error code (e.g., "SCH100")
	Code ErrorCode `json:"code"`
	// Type is a machine-readable error type identifier
	Type string `json:"type"`
	// Category is the error category
	Category ErrorCategory `json:"category"`
	// Message is the primary error message
	Message string `json:"message"`
	// Table is the table being built when the error occurred (optional)
	Table string `json:"table,omitempty"`
	// Field is the offending field (optional)
	Field string `json:"field,omitempty"`
	// Names lists every offending name for aggregate errors (optional)
	Names []string `json:"names,omitempty"`
	// Suggestion provides a hint for fixing the error (optional)
	Suggestion string `json:"suggestion,omitempty"`
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Table != "" {
		fmt.Fprintf(&b, " (table %s", e.Table)
		if e.Field != "" {
			fmt.Fprintf(&b, ", field %s", e.Field)
		}
		b.WriteString(")")
	} else if e.Field != "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	return b.String()
}

// Is reports whether target is a SchemaError with the same code.
// It lets callers match against the sentinel values below with errors.Is.
func (e *SchemaError) Is(target error) bool {
	t, ok := target.(*SchemaError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ToJSON returns the error as a JSON string
func (e *SchemaError) ToJSON() (string, error) {
	bytes, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// WithTable sets the table name for the error
func (e *SchemaError) WithTable(table string) *SchemaError {
	e.Table = table
	return e
}

// WithField sets the field name for the error
func (e *SchemaError) WithField(field string) *SchemaError {
	e.Field = field
	return e
}

// WithSuggestion sets a suggestion for fixing the error
func (e *SchemaError) WithSuggestion(suggestion string) *SchemaError {
	e.Suggestion = suggestion
	return e
}

// Code extracts the error code from err, or "" when err is not a SchemaError.
func Code(err error) ErrorCode {
	var se *SchemaError
	if As(err, &se) {
		return se.Code
	}
	return ""
}

// newError creates a new SchemaError with the given parameters
func newError(code ErrorCode, typ string, category ErrorCategory, message string) *SchemaError {
	return &SchemaError{
		Code:     code,
		Type:     typ,
		Category: category,
		Message:  message,
	}
}
