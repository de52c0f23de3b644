package schema

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

// MaxIdentifierLength is the longest column name PostgreSQL keeps
const MaxIdentifierLength = 63

// ReservedColumns are the column names the table builder adds itself
var ReservedColumns = []string{"id", "created", "deleted", "superseded_id"}

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidationError is a schema definition problem with context
type ValidationError struct {
	Schema  string
	Field   string // flattened name, empty for schema-level problems
	Message string
	Hint    string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	var b strings.Builder

	b.WriteString(e.Schema)
	if e.Field != "" {
		b.WriteString(".")
		b.WriteString(e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)

	if e.Hint != "" {
		b.WriteString(" (hint: ")
		b.WriteString(e.Hint)
		b.WriteString(")")
	}
	return b.String()
}

// SchemaValidator checks schema definitions before they are registered.
// Problems that make a table impossible to build are errors; suspicious but
// buildable declarations are warnings.
type SchemaValidator struct {
	warnings []string
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{}
}

// Warnings returns the warnings of the last Validate call
func (v *SchemaValidator) Warnings() []string {
	return v.warnings
}

// Validate reports every problem in def, nested schemas included
func (v *SchemaValidator) Validate(def *SchemaDef) error {
	v.warnings = nil
	if def == nil {
		return fmt.Errorf("schema cannot be nil")
	}
	if def.Name == "" {
		return &ValidationError{Message: "schema name is required"}
	}
	return v.validateFields(def.Name, def, "", false)
}

func (v *SchemaValidator) validateFields(schemaName string, def *SchemaDef, prefix string, inherited bool) error {
	var errs error
	for _, f := range def.Fields() {
		name := f.Name
		if prefix != "" {
			name = prefix + "_" + f.Name
		}
		fail := func(msg, hint string) {
			errs = multierr.Append(errs, &ValidationError{Schema: schemaName, Field: name, Message: msg, Hint: hint})
		}

		switch {
		case !identifierPattern.MatchString(f.Name):
			fail(fmt.Sprintf("invalid field name %q", f.Name), "use lowercase letters, digits and underscores")
		case strings.Contains(f.Name, "__"):
			fail("field names must not contain \"__\"", "\"__\" separates a table from its segmentation source")
		}
		if prefix == "" && isReserved(f.Name) {
			fail(fmt.Sprintf("%q is a reserved column name", f.Name), "rename the field")
		}
		if len(name) > MaxIdentifierLength {
			fail(fmt.Sprintf("column name is longer than %d characters", MaxIdentifierLength), "shorten the field or its parent")
		}

		if f.IsNested() {
			if f.Nested == def {
				fail("schema embeds itself", "")
				continue
			}
			if f.GeometrySubtype != "" {
				fail("geometry subtype set on a nested field", "set it on the nested point field")
			}
			if err := v.validateFields(schemaName, f.Nested, name, inherited || f.SegmentationField); err != nil {
				errs = multierr.Append(errs, err)
			}
			continue
		}

		if f.GeometrySubtype != "" && f.Type != TypeGeometryPoint {
			fail(fmt.Sprintf("geometry subtype set on %s field", f.Type), "only GeometryPoint fields carry a subtype")
		}
		if f.Required && f.Default != nil {
			v.warnings = append(v.warnings, fmt.Sprintf("%s.%s: default never applies to a required field", schemaName, name))
		}
		if f.DropColumn && f.Indexed {
			v.warnings = append(v.warnings, fmt.Sprintf("%s.%s: dropped field is marked indexed", schemaName, name))
		}
		if f.Type == TypeReferenceID && (inherited || f.SegmentationField) && f.Metadata != MetadataReference {
			v.warnings = append(v.warnings, fmt.Sprintf("%s.%s: segmentation reference needs reference_table metadata at compile time", schemaName, name))
		}
	}
	return errs
}

func isReserved(name string) bool {
	for _, r := range ReservedColumns {
		if r == name {
			return true
		}
	}
	return false
}
