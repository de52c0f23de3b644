package schemas

import (
	"fmt"

	"github.com/connectome/emschema/internal/orm/schema"
)

var allowedHemispheres = []string{"L", "R", "M", "U"}

// FlyCellType is a cell type assignment for fly datasets
func FlyCellType() *schema.SchemaDef {
	def := annotation("fly_cell_type",
		&schema.FieldSpec{
			Name:        "classification_system",
			Type:        schema.TypeString,
			Required:    true,
			Description: "Classification system followed",
		},
		pointField("pt", "Location associated with classification"),
		&schema.FieldSpec{
			Name:        "cell_type",
			Type:        schema.TypeString,
			Required:    true,
			Description: "Cell type name",
		},
		&schema.FieldSpec{
			Name:        "hemisphere",
			Type:        schema.TypeString,
			Default:     "U",
			Description: "Cell hemisphere",
		},
	)
	def.PostLoad = validateHemisphere
	return def
}

// FlyCellTypeExt adds driver line and synonym to FlyCellType
func FlyCellTypeExt() *schema.SchemaDef {
	return FlyCellType().Extend("fly_cell_type_ext",
		&schema.FieldSpec{Name: "driver_line", Type: schema.TypeString, Description: "Driver line name"},
		&schema.FieldSpec{Name: "synonym", Type: schema.TypeString, Description: "Synonym"},
	)
}

func validateHemisphere(r schema.Record) (schema.Record, error) {
	h, _ := r["hemisphere"].(string)
	if !contains(allowedHemispheres, h) {
		return nil, fmt.Errorf("hemisphere %q is not one of %v", h, allowedHemispheres)
	}
	return r, nil
}
