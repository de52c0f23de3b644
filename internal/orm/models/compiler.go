package models

import (
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	cerrors "github.com/connectome/emschema/internal/compiler/errors"
	"github.com/connectome/emschema/internal/orm/codegen"
	"github.com/connectome/emschema/internal/orm/schema"
	"github.com/connectome/emschema/internal/orm/schemas"
)

// SchemaSource resolves schema type names to definitions
type SchemaSource interface {
	GetSchema(name string) (*schema.SchemaDef, error)
	GetTypes() []string
}

// ModelOptions configures the compilation of one table
type ModelOptions struct {
	TableName string
	// SegmentationSource selects the segmentation split table
	// <TableName>__<SegmentationSource> instead of the base table.
	SegmentationSource string
	Metadata           *schema.TableMetadata
	WithAuditColumns   bool
}

// SchemaTable pairs a schema type with the table it is stored in
type SchemaTable struct {
	SchemaName string
	TableName  string
}

// DatasetRequest describes every table of one aligned volume
type DatasetRequest struct {
	AlignedVolume      string
	Tables             []SchemaTable
	SegmentationSource string
	IncludeContacts    bool
	Metadata           map[string]*schema.TableMetadata // keyed by table name
	WithAuditColumns   bool
}

// Compiler compiles schemas into cached storage models
type Compiler struct {
	schemas  SchemaSource
	registry *Registry
	builder  *codegen.TableBuilder
	logger   *zap.Logger
}

// Option configures a Compiler
type Option func(*Compiler)

// WithLogger sets the logger used for build events
func WithLogger(logger *zap.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// WithRegistry shares an existing model registry
func WithRegistry(registry *Registry) Option {
	return func(c *Compiler) {
		c.registry = registry
	}
}

// WithTableBuilder overrides the table builder, e.g. to extend the type mapping
func WithTableBuilder(builder *codegen.TableBuilder) Option {
	return func(c *Compiler) {
		c.builder = builder
	}
}

// NewCompiler creates a compiler reading schemas from source
func NewCompiler(source SchemaSource, opts ...Option) *Compiler {
	c := &Compiler{
		schemas:  source,
		registry: NewRegistry(),
		builder:  codegen.NewTableBuilder(nil),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the model registry backing the compiler
func (c *Compiler) Registry() *Registry {
	return c.registry
}

// CompileModel compiles the table for a registered schema type
func (c *Compiler) CompileModel(schemaName string, opts ModelOptions) (*Model, error) {
	def, err := c.schemas.GetSchema(schemaName)
	if err != nil {
		return nil, err
	}
	return c.CompileModelFromSchema(def, opts)
}

// CompileModelFromSchema compiles a table from a schema definition.
// With a segmentation source the base table is always registered before its
// split, and both table dicts are validated before either is registered so a
// failure leaves nothing cached for the table.
func (c *Compiler) CompileModelFromSchema(def *schema.SchemaDef, opts ModelOptions) (*Model, error) {
	key := opts.TableName
	if opts.SegmentationSource != "" {
		key = codegen.SplitTableName(opts.TableName, opts.SegmentationSource)
	}
	if m, ok := c.registry.Lookup(key, KindFull); ok {
		return m, nil
	}

	flat, err := schema.Flatten(def)
	if err != nil {
		return nil, err
	}
	annotation, segmentation, err := codegen.Split(flat)
	if err != nil {
		return nil, err
	}

	baseDict, err := c.builder.Build(codegen.TableOptions{
		TableName:        opts.TableName,
		Schema:           annotation,
		Metadata:         opts.Metadata,
		WithAuditColumns: opts.WithAuditColumns,
	})
	if err != nil {
		return nil, err
	}

	var splitDict *codegen.TableDict
	if opts.SegmentationSource != "" {
		splitDict, err = c.builder.Build(codegen.TableOptions{
			TableName:          opts.TableName,
			Schema:             segmentation,
			SegmentationSource: opts.SegmentationSource,
			Metadata:           opts.Metadata,
			WithAuditColumns:   opts.WithAuditColumns,
		})
		if err != nil {
			return nil, err
		}
	}

	base, err := c.registry.GetOrBuild(opts.TableName, KindFull, c.buildFunc(KindFull, baseDict, nil))
	if err != nil {
		return nil, err
	}
	if splitDict == nil {
		return base, nil
	}
	return c.registry.GetOrBuild(splitDict.TableName, KindFull, c.buildFunc(KindFull, splitDict, base))
}

// CompileFlatModel compiles the whole flattened schema into one table
// without audit columns.
func (c *Compiler) CompileFlatModel(schemaName string, opts ModelOptions) (*Model, error) {
	def, err := c.schemas.GetSchema(schemaName)
	if err != nil {
		return nil, err
	}
	return c.CompileFlatModelFromSchema(def, opts)
}

// CompileFlatModelFromSchema is CompileFlatModel for a schema definition
func (c *Compiler) CompileFlatModelFromSchema(def *schema.SchemaDef, opts ModelOptions) (*Model, error) {
	key := opts.TableName
	if opts.SegmentationSource != "" {
		key = codegen.SplitTableName(opts.TableName, opts.SegmentationSource)
	}
	if m, ok := c.registry.Lookup(key, KindFlat); ok {
		return m, nil
	}

	flat, err := schema.Flatten(def)
	if err != nil {
		return nil, err
	}
	dict, err := c.builder.Build(codegen.TableOptions{
		TableName:          opts.TableName,
		Schema:             flat,
		SegmentationSource: opts.SegmentationSource,
		Metadata:           opts.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return c.registry.GetOrBuild(key, KindFlat, c.buildFunc(KindFlat, dict, nil))
}

// CompileDataset compiles every table of a dataset. Unknown schema types are
// reported together before anything is compiled. The contact table, when
// requested, is returned under ContactKey.
func (c *Compiler) CompileDataset(req DatasetRequest) (map[string]*Model, error) {
	if err := c.validateTypes(req.Tables); err != nil {
		return nil, err
	}

	dataset := make(map[string]*Model, len(req.Tables)+1)
	for _, st := range req.Tables {
		m, err := c.CompileModel(st.SchemaName, ModelOptions{
			TableName:          st.TableName,
			SegmentationSource: req.SegmentationSource,
			Metadata:           req.Metadata[st.TableName],
			WithAuditColumns:   req.WithAuditColumns,
		})
		if err != nil {
			return nil, fmt.Errorf("table %s (%s): %w", st.TableName, st.SchemaName, err)
		}
		dataset[st.TableName] = m
	}

	if req.IncludeContacts {
		m, err := c.CompileModelFromSchema(schemas.Contact(), ModelOptions{
			TableName:        ContactTableName(req.AlignedVolume),
			WithAuditColumns: true,
		})
		if err != nil {
			return nil, fmt.Errorf("contact table: %w", err)
		}
		dataset[ContactKey] = m
	}

	c.logger.Info("compiled dataset",
		zap.String("aligned_volume", req.AlignedVolume),
		zap.String("segmentation_source", req.SegmentationSource),
		zap.Int("tables", len(dataset)),
	)
	return dataset, nil
}

func (c *Compiler) validateTypes(tables []SchemaTable) error {
	known := lo.SliceToMap(c.schemas.GetTypes(), func(name string) (string, struct{}) {
		return name, struct{}{}
	})

	var unknown []string
	for _, st := range tables {
		if _, ok := known[st.SchemaName]; !ok {
			unknown = append(unknown, st.SchemaName)
		}
	}
	if len(unknown) > 0 {
		return cerrors.NewUnknownSchemaType(lo.Uniq(unknown))
	}
	return nil
}

func (c *Compiler) buildFunc(kind Kind, dict *codegen.TableDict, parent *Model) BuildFunc {
	return func() (*Model, error) {
		c.logger.Debug("built model",
			zap.String("table", dict.TableName),
			zap.Stringer("kind", kind),
			zap.Int("columns", len(dict.Columns)),
			zap.Bool("concrete", dict.Concrete),
		)
		return NewModel(kind, dict, parent), nil
	}
}
