// Package schema provides the type definitions for annotation schemas.
// A schema is an ordered set of typed fields. Fields may nest another schema
// (for example a bound spatial point) until the schema is flattened, after
// which every field maps to exactly one storage column.
package schema

import (
	"fmt"
	"strings"
)

// FieldType represents the abstract type of a declared field
type FieldType int

const (
	TypeInteger FieldType = iota
	TypeFloat
	TypeString
	TypeBoolean

	// Spatial location stored as a PostGIS geometry
	TypeGeometryPoint

	// Foreign key into a table named by table metadata
	TypeReferenceID

	// Big-integer identifiers (supervoxel and root ids) without a foreign key
	TypeNumeric
)

// String returns the string representation of the field type
func (f FieldType) String() string {
	switch f {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeBoolean:
		return "boolean"
	case TypeGeometryPoint:
		return "geometry_point"
	case TypeReferenceID:
		return "reference_id"
	case TypeNumeric:
		return "numeric"
	default:
		return fmt.Sprintf("field_type(%d)", int(f))
	}
}

// ParseFieldType converts a string to a FieldType
func ParseFieldType(s string) (FieldType, error) {
	switch s {
	case "integer", "int":
		return TypeInteger, nil
	case "float":
		return TypeFloat, nil
	case "string", "str":
		return TypeString, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "geometry_point":
		return TypeGeometryPoint, nil
	case "reference_id":
		return TypeReferenceID, nil
	case "numeric":
		return TypeNumeric, nil
	default:
		return 0, fmt.Errorf("unknown field type: %s", s)
	}
}

// MetadataKind marks fields whose storage depends on table-level metadata
type MetadataKind int

const (
	MetadataNone MetadataKind = iota
	MetadataReference
)

// String returns the string representation of the metadata kind
func (m MetadataKind) String() string {
	switch m {
	case MetadataNone:
		return "none"
	case MetadataReference:
		return "reference"
	default:
		return "unknown"
	}
}

// DefaultGeometrySubtype is the PostGIS geometry type used for points
const DefaultGeometrySubtype = "POINTZ"

// FieldSpec is one declared field of a schema
type FieldSpec struct {
	Name string
	Type FieldType

	// Storage hints
	Indexed           bool
	DropColumn        bool // excluded from storage entirely
	SegmentationField bool // stored in the segmentation split table
	Metadata          MetadataKind
	GeometrySubtype   string // only meaningful for TypeGeometryPoint

	// Record validation
	Required    bool
	Default     interface{}
	Description string

	// Nested schema; set only before flattening
	Nested *SchemaDef
}

// IsNested reports whether the field embeds another schema
func (f *FieldSpec) IsNested() bool {
	return f.Nested != nil
}

// RequiresReference reports whether the field needs a reference_table entry
// in the table metadata to be stored.
func (f *FieldSpec) RequiresReference() bool {
	return f.Metadata == MetadataReference || f.Type == TypeReferenceID
}

// Subtype returns the geometry subtype, defaulting to POINTZ
func (f *FieldSpec) Subtype() string {
	if f.GeometrySubtype == "" {
		return DefaultGeometrySubtype
	}
	return f.GeometrySubtype
}

// Clone returns a shallow copy of the field with a new name
func (f *FieldSpec) Clone(name string) *FieldSpec {
	c := *f
	c.Name = name
	return &c
}

// PostLoadFunc inspects a loaded record and may annotate it (typically by
// setting the "valid" key). It is the hook through which domain-specific
// checks run.
type PostLoadFunc func(Record) (Record, error)

// SchemaDef is a named, ordered set of fields
type SchemaDef struct {
	Name     string
	fields   []*FieldSpec
	index    map[string]int
	PostLoad PostLoadFunc
}

// NewSchemaDef creates a schema with the given fields in order.
// It panics on duplicate field names since definitions are static.
func NewSchemaDef(name string, fields ...*FieldSpec) *SchemaDef {
	s := &SchemaDef{
		Name:  name,
		index: make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if err := s.Add(f); err != nil {
			panic(err)
		}
	}
	return s
}

// Add appends a field, failing if the name is already declared
func (s *SchemaDef) Add(f *FieldSpec) error {
	if f == nil {
		return fmt.Errorf("schema %s: field cannot be nil", s.Name)
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, exists := s.index[f.Name]; exists {
		return fmt.Errorf("schema %s: field %s is already declared", s.Name, f.Name)
	}
	s.index[f.Name] = len(s.fields)
	s.fields = append(s.fields, f)
	return nil
}

// Extend returns a new schema containing the fields of s followed by extra
func (s *SchemaDef) Extend(name string, extra ...*FieldSpec) *SchemaDef {
	fields := make([]*FieldSpec, 0, len(s.fields)+len(extra))
	fields = append(fields, s.fields...)
	fields = append(fields, extra...)
	ext := NewSchemaDef(name, fields...)
	ext.PostLoad = s.PostLoad
	return ext
}

// Fields returns the fields in declaration order
func (s *SchemaDef) Fields() []*FieldSpec {
	out := make([]*FieldSpec, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field returns the field with the given name
func (s *SchemaDef) Field(name string) (*FieldSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.fields[i], true
}

// HasField returns true if the schema declares a field with the given name
func (s *SchemaDef) HasField(name string) bool {
	_, ok := s.index[name]
	return ok
}

// FieldNames returns field names in declaration order
func (s *SchemaDef) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Len returns the number of declared fields
func (s *SchemaDef) Len() int {
	return len(s.fields)
}

// IsFlat reports whether no field embeds another schema
func (s *SchemaDef) IsFlat() bool {
	for _, f := range s.fields {
		if f.IsNested() {
			return false
		}
	}
	return true
}

// String returns a compact representation, e.g. "cell_type{pt:{...}, cell_type:string}"
func (s *SchemaDef) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		if f.IsNested() {
			parts[i] = fmt.Sprintf("%s:%s", f.Name, f.Nested.String())
		} else {
			parts[i] = fmt.Sprintf("%s:%s", f.Name, f.Type)
		}
	}
	return fmt.Sprintf("%s{%s}", s.Name, strings.Join(parts, ", "))
}

// TableMetadata carries table-level settings that fields may depend on.
// A nil *TableMetadata means no metadata was supplied.
type TableMetadata struct {
	ReferenceTable string `mapstructure:"reference_table" json:"reference_table,omitempty"`
}
