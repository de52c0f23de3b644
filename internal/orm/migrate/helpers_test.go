package migrate

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/connectome/emschema/internal/orm/models"
	"github.com/connectome/emschema/internal/orm/schema"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func synapseSchema() *schema.SchemaDef {
	return schema.NewSchemaDef("synapse",
		&schema.FieldSpec{Name: "pt", Type: schema.TypeGeometryPoint, Indexed: true},
		&schema.FieldSpec{Name: "size", Type: schema.TypeInteger},
		&schema.FieldSpec{Name: "root_id", Type: schema.TypeNumeric, SegmentationField: true, Indexed: true},
	)
}

func refSchema() *schema.SchemaDef {
	return schema.NewSchemaDef("ref",
		&schema.FieldSpec{Name: "target_id", Type: schema.TypeReferenceID, Metadata: schema.MetadataReference},
		&schema.FieldSpec{Name: "tag", Type: schema.TypeString},
	)
}

// splitModels compiles synapse into table "syn" split by "seg" and returns
// (base, split).
func splitModels(t *testing.T) (*models.Model, *models.Model) {
	t.Helper()
	c := models.NewCompiler(schema.NewRegistry())
	split, err := c.CompileModelFromSchema(synapseSchema(), models.ModelOptions{
		TableName:          "syn",
		SegmentationSource: "seg",
		WithAuditColumns:   true,
	})
	require.NoError(t, err)
	require.NotNil(t, split.Parent())
	return split.Parent(), split
}

func refModel(t *testing.T, c *models.Compiler, table, target string) *models.Model {
	t.Helper()
	m, err := c.CompileModelFromSchema(refSchema(), models.ModelOptions{
		TableName: table,
		Metadata:  &schema.TableMetadata{ReferenceTable: target},
	})
	require.NoError(t, err)
	return m
}
