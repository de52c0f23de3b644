// Package schemas holds the annotation schema definitions that ship with the
// compiler. Field-level rules (allowed categories, ranges) run in each
// schema's post-load hook and only ever set the record's "valid" flag.
package schemas

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/connectome/emschema/internal/orm/schema"
)

// SpatialPoint is a bare location
func SpatialPoint() *schema.SchemaDef {
	return schema.NewSchemaDef("spatial_point", positionField(false))
}

// BoundSpatialPoint is an indexed location bound to a supervoxel and root id.
// The ids depend on the segmentation and land in the split table.
func BoundSpatialPoint() *schema.SchemaDef {
	return schema.NewSchemaDef("bound_spatial_point",
		positionField(true),
		&schema.FieldSpec{
			Name:              "supervoxel_id",
			Type:              schema.TypeNumeric,
			SegmentationField: true,
			Description:       "supervoxel id of this point",
		},
		&schema.FieldSpec{
			Name:              "root_id",
			Type:              schema.TypeNumeric,
			SegmentationField: true,
			Indexed:           true,
			Description:       "root id of the bound supervoxel",
		},
	)
}

func positionField(indexed bool) *schema.FieldSpec {
	return &schema.FieldSpec{
		Name:            "position",
		Type:            schema.TypeGeometryPoint,
		GeometrySubtype: schema.DefaultGeometrySubtype,
		Indexed:         indexed,
		Required:        true,
		Description:     "spatial position in voxels of x,y,z of annotation",
	}
}

// annotation returns the common prefix of every annotation schema
func annotation(name string, fields ...*schema.FieldSpec) *schema.SchemaDef {
	base := []*schema.FieldSpec{
		{
			Name:        "valid",
			Type:        schema.TypeBoolean,
			Description: "is this annotation valid",
		},
	}
	return schema.NewSchemaDef(name, append(base, fields...)...)
}

// pointField declares a required nested bound point
func pointField(name, description string) *schema.FieldSpec {
	return &schema.FieldSpec{
		Name:        name,
		Nested:      BoundSpatialPoint(),
		Required:    true,
		Description: description,
	}
}

// dedupe removes repeated allowed values while keeping first-seen order
func dedupe(values []string) []string {
	return lo.Uniq(values)
}

// inSet builds a post-load hook that marks a record valid when the value of
// field is one of allowed.
func inSet(field string, allowed []string) schema.PostLoadFunc {
	set := lo.SliceToMap(dedupe(allowed), func(v string) (string, struct{}) {
		return v, struct{}{}
	})
	return func(r schema.Record) (schema.Record, error) {
		v, ok := r[field].(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string", field)
		}
		_, member := set[v]
		r["valid"] = member
		return r, nil
	}
}
