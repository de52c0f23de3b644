package schemas

import (
	"fmt"

	"github.com/connectome/emschema/internal/orm/schema"
)

var allowedClassificationSystems = []string{"ivscc", "valence", "classical", "freeform"}

// allowedCellTypes maps each classification system to its cell types.
// "classical" historically listed "unknown" twice; dedupe collapses it.
var allowedCellTypes = map[string][]string{
	"valence": {"e", "i", "g", "unknown"},
	"ivscc":   ivsccTypes(),
	"classical": dedupe([]string{
		"chandelier",
		"pyramidal",
		"martinotti",
		"pv",
		"sst",
		"vip",
		"neurogliaform",
		"unknown",
		"astrocyte",
		"microglia-perivascular",
		"microglia-perineuronal",
		"unknown",
	}),
}

func ivsccTypes() []string {
	types := make([]string, 0, 31)
	for i := 1; i <= 14; i++ {
		types = append(types, fmt.Sprintf("spiny_%d", i))
	}
	for i := 1; i <= 16; i++ {
		types = append(types, fmt.Sprintf("aspiny_s_%d", i))
	}
	return append(types, "unknown")
}

// CellTypeLocal is a cell type classification at a point
func CellTypeLocal() *schema.SchemaDef {
	def := annotation("cell_type_local",
		&schema.FieldSpec{
			Name:        "classification_system",
			Type:        schema.TypeString,
			Required:    true,
			Description: "Classification system followed",
		},
		&schema.FieldSpec{
			Name:        "cell_type",
			Type:        schema.TypeString,
			Required:    true,
			Description: "Cell type name",
		},
		&schema.FieldSpec{
			Name:        "confidence",
			Type:        schema.TypeFloat,
			Description: "Confidence in assignment, between 0-1",
		},
		pointField("pt", "Location associated with classification"),
	)
	def.PostLoad = validateCellType
	return def
}

// validateCellType rejects unknown classification systems and confidences
// outside [0,1], then flags the record valid when the cell type belongs to
// its system. Free-form systems are always valid.
func validateCellType(r schema.Record) (schema.Record, error) {
	system, _ := r["classification_system"].(string)
	if !contains(allowedClassificationSystems, system) {
		return nil, fmt.Errorf("classification_system %q is not one of %v", system, allowedClassificationSystems)
	}
	if c, ok := r["confidence"].(float64); ok && (c < 0 || c > 1) {
		return nil, fmt.Errorf("confidence %v must be between 0 and 1", c)
	}

	allowed, known := allowedCellTypes[system]
	if !known {
		r["valid"] = true
		return r, nil
	}
	cellType, _ := r["cell_type"].(string)
	r["valid"] = contains(allowed, cellType)
	return r, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
