package codegen

import (
	cerrors "github.com/connectome/emschema/internal/compiler/errors"
	"github.com/connectome/emschema/internal/orm/schema"
)

// Bucket is the half of a schema a field is stored in
type Bucket int

const (
	BucketAnnotation Bucket = iota
	BucketSegmentation
	BucketDropped
)

// String returns the string representation of the bucket
func (b Bucket) String() string {
	switch b {
	case BucketAnnotation:
		return "annotation"
	case BucketSegmentation:
		return "segmentation"
	case BucketDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Classify decides which half of the schema a flattened field belongs to
func Classify(f *schema.FieldSpec) (Bucket, error) {
	if f.IsNested() {
		return 0, cerrors.NewSchemaNotFlattened(f.Nested.Name, f.Name)
	}
	switch {
	case f.DropColumn:
		return BucketDropped, nil
	case f.SegmentationField:
		return BucketSegmentation, nil
	default:
		return BucketAnnotation, nil
	}
}

// Split divides a flattened schema into its annotation and segmentation
// halves, preserving field order. Dropped fields appear in neither half.
func Split(def *schema.SchemaDef) (annotation, segmentation *schema.SchemaDef, err error) {
	if err := schema.AssertFlat(def); err != nil {
		return nil, nil, err
	}

	annotation = schema.NewSchemaDef(def.Name + "_annotation")
	segmentation = schema.NewSchemaDef(def.Name + "_segmentation")

	for _, f := range def.Fields() {
		bucket, err := Classify(f)
		if err != nil {
			return nil, nil, err
		}
		switch bucket {
		case BucketAnnotation:
			err = annotation.Add(f)
		case BucketSegmentation:
			err = segmentation.Add(f)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return annotation, segmentation, nil
}
