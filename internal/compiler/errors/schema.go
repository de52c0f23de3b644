package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Schema error codes (SCH100-199)
const (
	// ErrCodeUnknownSchemaType indicates requested schema names that are not registered
	ErrCodeUnknownSchemaType ErrorCode = "SCH100"
	// ErrCodeUnsupportedFieldType indicates a field type with no column mapping
	ErrCodeUnsupportedFieldType ErrorCode = "SCH101"
	// ErrCodeMissingReferenceMetadata indicates a reference field without a reference_table
	ErrCodeMissingReferenceMetadata ErrorCode = "SCH102"
	// ErrCodeSchemaNotFlattened indicates a nested field reached a flat-only stage
	ErrCodeSchemaNotFlattened ErrorCode = "SCH103"
	// ErrCodeDuplicateColumn indicates two fields that map to the same column name
	ErrCodeDuplicateColumn ErrorCode = "SCH104"
	// ErrCodeSchemaNotFound indicates a lookup of a schema that is not registered
	ErrCodeSchemaNotFound ErrorCode = "SCH105"
	// ErrCodeInvalidRecord indicates a record that does not satisfy its schema
	ErrCodeInvalidRecord ErrorCode = "SCH106"
)

// Sentinels for errors.Is matching. Only the code is compared.
var (
	ErrUnknownSchemaType        = &SchemaError{Code: ErrCodeUnknownSchemaType}
	ErrUnsupportedFieldType     = &SchemaError{Code: ErrCodeUnsupportedFieldType}
	ErrMissingReferenceMetadata = &SchemaError{Code: ErrCodeMissingReferenceMetadata}
	ErrSchemaNotFlattened       = &SchemaError{Code: ErrCodeSchemaNotFlattened}
	ErrDuplicateColumn          = &SchemaError{Code: ErrCodeDuplicateColumn}
	ErrSchemaNotFound           = &SchemaError{Code: ErrCodeSchemaNotFound}
	ErrInvalidRecord            = &SchemaError{Code: ErrCodeInvalidRecord}
)

// NewUnknownSchemaType creates a SCH100 error naming every unknown schema
func NewUnknownSchemaType(names []string) *SchemaError {
	e := newError(
		ErrCodeUnknownSchemaType,
		"unknown_schema_type",
		CategorySchema,
		fmt.Sprintf("[%s] are invalid types", strings.Join(names, ", ")),
	).WithSuggestion("Register the schema or check the spelling of the schema name")
	e.Names = append([]string(nil), names...)
	return e
}

// NewUnsupportedFieldType creates a SCH101 error
func NewUnsupportedFieldType(field, fieldType string) *SchemaError {
	return newError(
		ErrCodeUnsupportedFieldType,
		"unsupported_field_type",
		CategoryCodeGen,
		fmt.Sprintf("field type %s not supported", fieldType),
	).WithField(field)
}

// NewMissingReferenceMetadata creates a SCH102 error. metadataPresent is false
// when no table metadata was supplied at all.
func NewMissingReferenceMetadata(field string, metadataPresent bool) *SchemaError {
	msg := "no metadata provided for reference annotation"
	if metadataPresent {
		msg = "reference table not specified in metadata"
	}
	return newError(
		ErrCodeMissingReferenceMetadata,
		"missing_reference_metadata",
		CategoryCodeGen,
		msg,
	).WithField(field).WithSuggestion("Set reference_table in the table metadata")
}

// NewSchemaNotFlattened creates a SCH103 error
func NewSchemaNotFlattened(schemaName, field string) *SchemaError {
	return newError(
		ErrCodeSchemaNotFlattened,
		"schema_not_flattened",
		CategoryCodeGen,
		fmt.Sprintf("schema %s must be flattened before splitting", schemaName),
	).WithField(field)
}

// NewDuplicateColumn creates a SCH104 error
func NewDuplicateColumn(column string) *SchemaError {
	return newError(
		ErrCodeDuplicateColumn,
		"duplicate_column",
		CategoryCodeGen,
		fmt.Sprintf("column %s is declared more than once", column),
	).WithField(column)
}

// NewSchemaNotFound creates a SCH105 error
func NewSchemaNotFound(name string) *SchemaError {
	return newError(
		ErrCodeSchemaNotFound,
		"schema_not_found",
		CategorySchema,
		fmt.Sprintf("schema %s is not registered", name),
	)
}

// NewInvalidRecord creates a SCH106 error describing the individual field failures
func NewInvalidRecord(schemaName string, cause error) *SchemaError {
	return newError(
		ErrCodeInvalidRecord,
		"invalid_record",
		CategorySchema,
		fmt.Sprintf("record does not match schema %s: %v", schemaName, cause),
	)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
