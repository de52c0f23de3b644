// Package codegen compiles flattened annotation schemas into table
// descriptions. It classifies fields into the annotation and segmentation
// halves, maps abstract field types to storage column types and renders the
// resulting tables as PostgreSQL/PostGIS DDL.
package codegen

import (
	"fmt"
	"sync"

	cerrors "github.com/connectome/emschema/internal/compiler/errors"
	"github.com/connectome/emschema/internal/orm/schema"
)

// ColumnKind is a concrete storage column type
type ColumnKind int

const (
	KindInteger ColumnKind = iota
	KindBigInteger
	KindFloat
	KindString
	KindBoolean
	KindDateTime
	KindGeometry
)

// String returns the SQL name of the column kind
func (k ColumnKind) String() string {
	switch k {
	case KindInteger:
		return "INTEGER"
	case KindBigInteger:
		return "BIGINT"
	case KindFloat:
		return "FLOAT"
	case KindString:
		return "VARCHAR"
	case KindBoolean:
		return "BOOLEAN"
	case KindDateTime:
		return "TIMESTAMP WITHOUT TIME ZONE"
	case KindGeometry:
		return "GEOMETRY"
	default:
		return "UNKNOWN"
	}
}

// ColumnType is a storage column type with its geometry parameters
type ColumnType struct {
	Kind         ColumnKind
	GeometryType string // e.g. POINTZ
	Dimension    int
}

// String returns the SQL type, e.g. "BIGINT" or "geometry(POINTZ)"
func (c ColumnType) String() string {
	if c.Kind == KindGeometry {
		return fmt.Sprintf("geometry(%s)", c.GeometryType)
	}
	return c.Kind.String()
}

// Column is one compiled storage column
type Column struct {
	Name       string
	Type       ColumnType
	PrimaryKey bool
	Indexed    bool
	Nullable   bool
	ForeignKey string // "<table>.id", empty when none
}

// ForeignTable returns the table the foreign key points at
func (c Column) ForeignTable() string {
	for i := len(c.ForeignKey) - 1; i >= 0; i-- {
		if c.ForeignKey[i] == '.' {
			return c.ForeignKey[:i]
		}
	}
	return c.ForeignKey
}

// TypeMapper maps abstract field types to storage column types.
// It is the single source of truth for the mapping; Register extends it.
type TypeMapper struct {
	mu    sync.RWMutex
	kinds map[schema.FieldType]ColumnKind
}

// NewTypeMapper creates a TypeMapper with the default mapping
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{
		kinds: map[schema.FieldType]ColumnKind{
			schema.TypeInteger:       KindInteger,
			schema.TypeFloat:         KindFloat,
			schema.TypeString:        KindString,
			schema.TypeBoolean:       KindBoolean,
			schema.TypeNumeric:       KindBigInteger,
			schema.TypeReferenceID:   KindBigInteger,
			schema.TypeGeometryPoint: KindGeometry,
		},
	}
}

// Register adds or replaces the storage kind for a field type
func (tm *TypeMapper) Register(ft schema.FieldType, kind ColumnKind) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.kinds[ft] = kind
}

// MapType converts an abstract field type to its storage column type
func (tm *TypeMapper) MapType(ft schema.FieldType) (ColumnType, error) {
	tm.mu.RLock()
	kind, ok := tm.kinds[ft]
	tm.mu.RUnlock()
	if !ok {
		return ColumnType{}, cerrors.NewUnsupportedFieldType("", ft.String())
	}

	if kind == KindGeometry {
		return ColumnType{Kind: KindGeometry, GeometryType: schema.DefaultGeometrySubtype, Dimension: 3}, nil
	}
	return ColumnType{Kind: kind}, nil
}

// MapField builds the column for a flattened field. referenceTable is the
// resolved reference_table for reference fields and ignored otherwise.
func (tm *TypeMapper) MapField(f *schema.FieldSpec, referenceTable string) (Column, error) {
	if f.IsNested() {
		return Column{}, cerrors.NewSchemaNotFlattened(f.Nested.Name, f.Name)
	}

	colType, err := tm.MapType(f.Type)
	if err != nil {
		return Column{}, cerrors.NewUnsupportedFieldType(f.Name, f.Type.String())
	}

	col := Column{
		Name:     f.Name,
		Type:     colType,
		Indexed:  f.Indexed,
		Nullable: true,
	}

	switch f.Type {
	case schema.TypeGeometryPoint:
		col.Type.GeometryType = f.Subtype()
	case schema.TypeReferenceID:
		if referenceTable == "" {
			return Column{}, cerrors.NewMissingReferenceMetadata(f.Name, false)
		}
		col.ForeignKey = referenceTable + ".id"
	}

	return col, nil
}
