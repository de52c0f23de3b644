package schemas

import "github.com/connectome/emschema/internal/orm/schema"

// ReferenceTag tags a row of another annotation table. The target table is
// named by the reference_table entry of the table metadata.
func ReferenceTag() *schema.SchemaDef {
	return annotation("reference_tag",
		&schema.FieldSpec{
			Name:        "target_id",
			Type:        schema.TypeReferenceID,
			Metadata:    schema.MetadataReference,
			Required:    true,
			Indexed:     true,
			Description: "id of the referenced annotation",
		},
		&schema.FieldSpec{
			Name:        "tag",
			Type:        schema.TypeString,
			Required:    true,
			Description: "free text tag",
		},
	)
}
