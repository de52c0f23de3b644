package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	cerrors "github.com/connectome/emschema/internal/compiler/errors"
	"github.com/connectome/emschema/internal/orm/codegen"
	"github.com/connectome/emschema/internal/orm/schema"
	"github.com/connectome/emschema/internal/orm/schemas"
)

func tagSystemSchema() *schema.SchemaDef {
	return schema.NewSchemaDef("tag_system",
		&schema.FieldSpec{Name: "pt", Type: schema.TypeGeometryPoint, Indexed: true},
		&schema.FieldSpec{Name: "category", Type: schema.TypeString},
		&schema.FieldSpec{Name: "classification_system", Type: schema.TypeString},
	)
}

func segmentedSchema() *schema.SchemaDef {
	return tagSystemSchema().Extend("tag_system_seg",
		&schema.FieldSpec{Name: "supervoxel_id", Type: schema.TypeReferenceID, SegmentationField: true},
	)
}

func setupCompiler(t *testing.T) *Compiler {
	t.Helper()
	reg, err := schemas.NewRegistry()
	require.NoError(t, err)
	reg.MustRegister("tag_system", tagSystemSchema())
	reg.MustRegister("tag_system_seg", segmentedSchema())
	return NewCompiler(reg, WithLogger(zaptest.NewLogger(t)))
}

func TestCompileModel_BaseTable(t *testing.T) {
	c := setupCompiler(t)

	m, err := c.CompileModel("tag_system", ModelOptions{TableName: "T", WithAuditColumns: true})
	require.NoError(t, err)

	assert.Equal(t, "T", m.TableName())
	assert.Equal(t, "T", m.PolymorphicIdentity())
	assert.False(t, m.Concrete())
	assert.Nil(t, m.Parent())
	assert.Equal(t, KindFull, m.Kind())

	names := make([]string, 0)
	for _, col := range m.Columns() {
		names = append(names, col.Name)
		assert.Empty(t, col.ForeignKey, col.Name)
	}
	assert.Equal(t, []string{"id", "created", "deleted", "superseded_id", "pt", "category", "classification_system"}, names)

	pt, ok := m.Column("pt")
	require.True(t, ok)
	assert.Equal(t, codegen.KindGeometry, pt.Type.Kind)
	assert.True(t, pt.Indexed)
}

func TestCompileModel_SegmentationSplit(t *testing.T) {
	c := setupCompiler(t)

	split, err := c.CompileModel("tag_system_seg", ModelOptions{
		TableName:          "T",
		SegmentationSource: "seg1",
		Metadata:           &schema.TableMetadata{ReferenceTable: "base"},
		WithAuditColumns:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, "T__seg1", split.TableName())
	assert.Equal(t, "T__seg1", split.PolymorphicIdentity())
	assert.True(t, split.Concrete())

	id, _ := split.Column("id")
	assert.True(t, id.PrimaryKey)
	assert.Equal(t, "T.id", id.ForeignKey)

	sv, ok := split.Column("supervoxel_id")
	require.True(t, ok)
	assert.Equal(t, codegen.KindBigInteger, sv.Type.Kind)
	assert.Equal(t, "base.id", sv.ForeignKey)

	// The base table is built first and linked as parent
	base := split.Parent()
	require.NotNil(t, base)
	assert.Equal(t, "T", base.TableName())
	_, hasSV := base.Column("supervoxel_id")
	assert.False(t, hasSV)

	cached, ok := c.Registry().Lookup("T", KindFull)
	require.True(t, ok)
	assert.Same(t, base, cached)
}

func TestCompileModel_Idempotent(t *testing.T) {
	c := setupCompiler(t)
	opts := ModelOptions{TableName: "cells", WithAuditColumns: true}

	m1, err := c.CompileModel("cell_type_local", opts)
	require.NoError(t, err)
	m2, err := c.CompileModel("cell_type_local", opts)
	require.NoError(t, err)

	assert.Same(t, m1, m2)
}

func TestCompileModel_MissingReferenceLeavesNothingCached(t *testing.T) {
	c := setupCompiler(t)

	_, err := c.CompileModel("tag_system_seg", ModelOptions{TableName: "T", SegmentationSource: "seg1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrMissingReferenceMetadata)

	_, ok := c.Registry().Lookup("T", KindFull)
	assert.False(t, ok, "base table must not be cached")
	_, ok = c.Registry().Lookup("T__seg1", KindFull)
	assert.False(t, ok, "split table must not be cached")
}

func TestCompileModel_UnknownSchema(t *testing.T) {
	c := setupCompiler(t)

	_, err := c.CompileModel("nope", ModelOptions{TableName: "x"})
	assert.ErrorIs(t, err, cerrors.ErrSchemaNotFound)
}

func TestCompileModel_NestedSchemaIsFlattened(t *testing.T) {
	c := setupCompiler(t)

	base, err := c.CompileModel("cell_type_local", ModelOptions{TableName: "cells"})
	require.NoError(t, err)
	_, ok := base.Column("pt_position")
	assert.True(t, ok)
	_, ok = base.Column("pt_root_id")
	assert.False(t, ok, "segmentation fields stay out of the base table")

	split, err := c.CompileModel("cell_type_local", ModelOptions{TableName: "cells", SegmentationSource: "pcg"})
	require.NoError(t, err)
	var names []string
	for _, col := range split.Columns() {
		names = append(names, col.Name)
	}
	assert.Equal(t, []string{"id", "pt_supervoxel_id", "pt_root_id"}, names)
	assert.Same(t, base, split.Parent())
}

func TestCompileFlatModel(t *testing.T) {
	c := setupCompiler(t)

	flat, err := c.CompileFlatModel("cell_type_local", ModelOptions{TableName: "cells", WithAuditColumns: true})
	require.NoError(t, err)

	assert.Equal(t, KindFlat, flat.Kind())
	_, hasCreated := flat.Column("created")
	assert.False(t, hasCreated, "flat models never carry audit columns")
	_, hasRoot := flat.Column("pt_root_id")
	assert.True(t, hasRoot, "flat models keep segmentation fields")

	again, err := c.CompileFlatModel("cell_type_local", ModelOptions{TableName: "cells"})
	require.NoError(t, err)
	assert.Same(t, flat, again)

	full, err := c.CompileModel("cell_type_local", ModelOptions{TableName: "cells"})
	require.NoError(t, err)
	assert.NotSame(t, flat, full)
}

func TestCompileDataset(t *testing.T) {
	c := setupCompiler(t)
	req := DatasetRequest{
		AlignedVolume: "minnie65",
		Tables: []SchemaTable{
			{SchemaName: "cell_type_local", TableName: "cells"},
			{SchemaName: "reference_tag", TableName: "cell_refs"},
		},
		IncludeContacts: true,
		Metadata: map[string]*schema.TableMetadata{
			"cell_refs": {ReferenceTable: "cells"},
		},
		WithAuditColumns: true,
	}

	dataset, err := c.CompileDataset(req)
	require.NoError(t, err)

	require.Len(t, dataset, 3)
	assert.Equal(t, "cells", dataset["cells"].TableName())
	assert.Equal(t, "minnie65__contact", dataset[ContactKey].TableName())

	target, ok := dataset["cell_refs"].Column("target_id")
	require.True(t, ok)
	assert.Equal(t, "cells.id", target.ForeignKey)

	again, err := c.CompileDataset(req)
	require.NoError(t, err)
	for key, m := range dataset {
		assert.Same(t, m, again[key], key)
	}
}

func TestCompileDataset_WithSegmentationSource(t *testing.T) {
	c := setupCompiler(t)

	dataset, err := c.CompileDataset(DatasetRequest{
		AlignedVolume:      "minnie65",
		Tables:             []SchemaTable{{SchemaName: "cell_type_local", TableName: "cells"}},
		SegmentationSource: "pcg_v1",
	})
	require.NoError(t, err)

	split := dataset["cells"]
	assert.Equal(t, "cells__pcg_v1", split.TableName())
	require.NotNil(t, split.Parent())
	assert.Equal(t, "cells", split.Parent().TableName())
}

func TestCompileDataset_UnknownTypesReportedTogether(t *testing.T) {
	c := setupCompiler(t)

	_, err := c.CompileDataset(DatasetRequest{
		AlignedVolume: "minnie65",
		Tables: []SchemaTable{
			{SchemaName: "cell_type_local", TableName: "cells"},
			{SchemaName: "not_a_schema", TableName: "a"},
			{SchemaName: "also_missing", TableName: "b"},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrUnknownSchemaType)
	assert.Contains(t, err.Error(), "not_a_schema")
	assert.Contains(t, err.Error(), "also_missing")

	var se *cerrors.SchemaError
	require.True(t, cerrors.As(err, &se))
	assert.Equal(t, []string{"not_a_schema", "also_missing"}, se.Names)

	// Validation happens before any table is compiled
	assert.Equal(t, 0, c.Registry().Len(KindFull))
}

func TestCompileDataset_FailureDoesNotPoisonCache(t *testing.T) {
	c := setupCompiler(t)

	cells, err := c.CompileModel("cell_type_local", ModelOptions{TableName: "cells"})
	require.NoError(t, err)

	_, err = c.CompileDataset(DatasetRequest{
		Tables: []SchemaTable{
			{SchemaName: "cell_type_local", TableName: "cells"},
			{SchemaName: "reference_tag", TableName: "refs"},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrMissingReferenceMetadata)
	assert.Contains(t, err.Error(), "table refs (reference_tag)")

	again, err := c.CompileModel("cell_type_local", ModelOptions{TableName: "cells"})
	require.NoError(t, err)
	assert.Same(t, cells, again)
	_, ok := c.Registry().Lookup("refs", KindFull)
	assert.False(t, ok)
}

func TestCompileDataset_ConcurrentCallers(t *testing.T) {
	c := setupCompiler(t)
	req := DatasetRequest{
		AlignedVolume:   "fanc",
		Tables:          []SchemaTable{{SchemaName: "fly_cell_type", TableName: "fly_cells"}},
		IncludeContacts: true,
	}

	const workers = 16
	results := make([]map[string]*Model, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.CompileDataset(req)
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.NotNil(t, results[i])
		assert.Same(t, results[0]["fly_cells"], results[i]["fly_cells"])
		assert.Same(t, results[0][ContactKey], results[i][ContactKey])
	}
}

func TestCompiler_LogsBuilds(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reg, err := schemas.NewRegistry()
	require.NoError(t, err)
	c := NewCompiler(reg, WithLogger(zap.New(core)))

	_, err = c.CompileModel("bound_tag", ModelOptions{TableName: "tags"})
	require.NoError(t, err)
	_, err = c.CompileModel("bound_tag", ModelOptions{TableName: "tags"})
	require.NoError(t, err)

	built := logs.FilterMessage("built model").All()
	require.Len(t, built, 1)
	assert.Equal(t, "tags", built[0].ContextMap()["table"])
}

func TestCompiler_SharedRegistry(t *testing.T) {
	reg, err := schemas.NewRegistry()
	require.NoError(t, err)
	shared := NewRegistry()

	a := NewCompiler(reg, WithRegistry(shared))
	b := NewCompiler(reg, WithRegistry(shared), WithTableBuilder(codegen.NewTableBuilder(codegen.NewTypeMapper())))

	m1, err := a.CompileModel("bound_tag", ModelOptions{TableName: "tags"})
	require.NoError(t, err)
	m2, err := b.CompileModel("bound_tag", ModelOptions{TableName: "tags"})
	require.NoError(t, err)
	assert.Same(t, m1, m2)
}
