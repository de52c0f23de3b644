package schemas

import "github.com/connectome/emschema/internal/orm/schema"

// Builtins returns the shipped schema definitions keyed by type name
func Builtins() map[string]*schema.SchemaDef {
	return map[string]*schema.SchemaDef{
		ContactType:         Contact(),
		"bound_tag":         BoundTag(),
		"cell_type_local":   CellTypeLocal(),
		"fly_cell_type":     FlyCellType(),
		"fly_cell_type_ext": FlyCellTypeExt(),
		"reference_tag":     ReferenceTag(),
	}
}

// RegisterBuiltins registers every shipped schema
func RegisterBuiltins(reg *schema.Registry) error {
	for name, def := range Builtins() {
		if err := reg.Register(name, def); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry pre-loaded with the shipped schemas
func NewRegistry() (*schema.Registry, error) {
	reg := schema.NewRegistry()
	if err := RegisterBuiltins(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
