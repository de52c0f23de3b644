// Package models turns compiled table descriptions into storage models and
// caches them for the life of the process.
package models

import (
	"github.com/connectome/emschema/internal/orm/codegen"
)

// Kind selects which model family a table belongs to
type Kind int

const (
	// KindFull models split annotation and segmentation into linked tables
	KindFull Kind = iota
	// KindFlat models store the whole flattened schema in one table
	KindFlat
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindFull:
		return "full"
	case KindFlat:
		return "flat"
	default:
		return "unknown"
	}
}

// Model is the storage mapping of one physical table. Models are immutable
// once built and shared by every caller of the registry.
type Model struct {
	kind   Kind
	dict   *codegen.TableDict
	parent *Model
}

// NewModel materializes a model from a compiled table. parent is the base
// model of a segmentation split and nil otherwise.
func NewModel(kind Kind, dict *codegen.TableDict, parent *Model) *Model {
	return &Model{kind: kind, dict: dict, parent: parent}
}

// TableName returns the physical table name
func (m *Model) TableName() string {
	return m.dict.TableName
}

// PolymorphicIdentity returns the identity tag of the table
func (m *Model) PolymorphicIdentity() string {
	return m.dict.PolymorphicIdentity
}

// Concrete reports whether the model is a segmentation split table
func (m *Model) Concrete() bool {
	return m.dict.Concrete
}

// Kind returns the model family
func (m *Model) Kind() Kind {
	return m.kind
}

// Parent returns the base model of a split table
func (m *Model) Parent() *Model {
	return m.parent
}

// Columns returns the columns in table order
func (m *Model) Columns() []codegen.Column {
	out := make([]codegen.Column, len(m.dict.Columns))
	copy(out, m.dict.Columns)
	return out
}

// Column returns the column with the given name
func (m *Model) Column(name string) (codegen.Column, bool) {
	return m.dict.Column(name)
}

// TableDict returns the compiled description the model was built from
func (m *Model) TableDict() *codegen.TableDict {
	return m.dict
}
