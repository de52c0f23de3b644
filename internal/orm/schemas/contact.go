package schemas

import "github.com/connectome/emschema/internal/orm/schema"

// ContactType is the registered name of the contact schema
const ContactType = "contact"

// Contact describes a contact between two objects
func Contact() *schema.SchemaDef {
	return annotation(ContactType,
		pointField("sidea_pt", "point on side a of contact"),
		pointField("sideb_pt", "point on side b of contact"),
		&schema.FieldSpec{
			Name:        "ctr_pt",
			Nested:      SpatialPoint(),
			Required:    true,
			Description: "point at center of contact",
		},
		&schema.FieldSpec{
			Name:        "size",
			Type:        schema.TypeInteger,
			Required:    true,
			Description: "size of contact",
		},
	)
}
