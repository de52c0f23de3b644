package schema

import (
	"fmt"

	cerrors "github.com/connectome/emschema/internal/compiler/errors"
)

// Flatten returns a copy of def with every nested schema inlined.
// A nested field "pt" holding "position" becomes "pt_position". Drop and
// segmentation flags set on a nested field apply to all of its children.
// Two flattened names that collide are reported as a duplicate column.
func Flatten(def *SchemaDef) (*SchemaDef, error) {
	if def == nil {
		return nil, fmt.Errorf("schema cannot be nil")
	}

	flat := &SchemaDef{
		Name:     def.Name,
		index:    make(map[string]int),
		PostLoad: def.PostLoad,
	}
	if err := flattenInto(flat, def, "", nil); err != nil {
		return nil, err
	}
	return flat, nil
}

func flattenInto(dst, src *SchemaDef, prefix string, parent *FieldSpec) error {
	for _, f := range src.fields {
		name := f.Name
		if prefix != "" {
			name = prefix + "_" + f.Name
		}

		if f.IsNested() {
			inherited := f
			if parent != nil {
				inherited = f.Clone(f.Name)
				inherited.DropColumn = f.DropColumn || parent.DropColumn
				inherited.SegmentationField = f.SegmentationField || parent.SegmentationField
			}
			if err := flattenInto(dst, f.Nested, name, inherited); err != nil {
				return err
			}
			continue
		}

		leaf := f.Clone(name)
		if parent != nil {
			leaf.DropColumn = leaf.DropColumn || parent.DropColumn
			leaf.SegmentationField = leaf.SegmentationField || parent.SegmentationField
			leaf.Required = leaf.Required && parent.Required
		}
		if dst.HasField(name) {
			return cerrors.NewDuplicateColumn(name)
		}
		dst.index[name] = len(dst.fields)
		dst.fields = append(dst.fields, leaf)
	}
	return nil
}

// AssertFlat fails with SchemaNotFlattened if any field still nests a schema
func AssertFlat(def *SchemaDef) error {
	for _, f := range def.fields {
		if f.IsNested() {
			return cerrors.NewSchemaNotFlattened(def.Name, f.Name)
		}
	}
	return nil
}
