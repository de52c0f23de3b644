package schemas

import (
	"fmt"

	"github.com/connectome/emschema/internal/orm/schema"
)

// BoundCategoricalFactory builds a point tag schema whose records are valid
// when category is one of allowedCategories.
func BoundCategoricalFactory(name string, allowedCategories []string) *schema.SchemaDef {
	def := annotation(name,
		pointField("pt", "Location associated with the tag"),
		&schema.FieldSpec{
			Name:        "category",
			Type:        schema.TypeString,
			Required:    true,
			Description: "Categorical text tag",
		},
	)
	def.PostLoad = inSet("category", allowedCategories)
	return def
}

// BoundCategoricalSystemFactory builds a point tag schema whose records are
// valid when category belongs to the list allowed for their
// classification_system.
func BoundCategoricalSystemFactory(name string, allowedCategoryDict map[string][]string) *schema.SchemaDef {
	def := annotation(name,
		pointField("pt", "Location associated with the tag"),
		&schema.FieldSpec{
			Name:        "category",
			Type:        schema.TypeString,
			Required:    true,
			Description: "Categorical text tag",
		},
		&schema.FieldSpec{
			Name:        "classification_system",
			Type:        schema.TypeString,
			Required:    true,
			Description: "Classification system for category",
		},
	)

	hooks := make(map[string]schema.PostLoadFunc, len(allowedCategoryDict))
	for system, allowed := range allowedCategoryDict {
		hooks[system] = inSet("category", allowed)
	}
	def.PostLoad = func(r schema.Record) (schema.Record, error) {
		system, _ := r["classification_system"].(string)
		hook, ok := hooks[system]
		if !ok {
			return nil, fmt.Errorf("unknown classification_system %q", system)
		}
		return hook(r)
	}
	return def
}

// BoundTag is a free text tag at a point
func BoundTag() *schema.SchemaDef {
	return annotation("bound_tag",
		pointField("pt", "Location associated with the tag"),
		&schema.FieldSpec{
			Name:        "tag",
			Type:        schema.TypeString,
			Required:    true,
			Description: "Arbitrary text tag",
		},
	)
}
