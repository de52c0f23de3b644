package codegen

import (
	"fmt"

	cerrors "github.com/connectome/emschema/internal/compiler/errors"
	"github.com/connectome/emschema/internal/orm/schema"
)

// SplitTableName returns the name of the segmentation table for a base table
func SplitTableName(tableName, segmentationSource string) string {
	return fmt.Sprintf("%s__%s", tableName, segmentationSource)
}

// TableDict is the compiled description of one physical table
type TableDict struct {
	TableName           string
	BaseTable           string // parent table of a segmentation split, empty otherwise
	PolymorphicIdentity string
	Concrete            bool // segmentation split stored in its own table
	Columns             []Column

	index map[string]int
}

// Column returns the column with the given name
func (d *TableDict) Column(name string) (Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return Column{}, false
	}
	return d.Columns[i], true
}

// HasColumn returns true if the table has a column with the given name
func (d *TableDict) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// ColumnNames returns column names in table order
func (d *TableDict) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the primary key column
func (d *TableDict) PrimaryKey() Column {
	for _, c := range d.Columns {
		if c.PrimaryKey {
			return c
		}
	}
	return Column{}
}

// ForeignKeys returns every column that references another table
func (d *TableDict) ForeignKeys() []Column {
	var fks []Column
	for _, c := range d.Columns {
		if c.ForeignKey != "" {
			fks = append(fks, c)
		}
	}
	return fks
}

func (d *TableDict) add(c Column) error {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if _, exists := d.index[c.Name]; exists {
		return cerrors.NewDuplicateColumn(c.Name).WithTable(d.TableName)
	}
	d.index[c.Name] = len(d.Columns)
	d.Columns = append(d.Columns, c)
	return nil
}

// TableOptions configures a single table build
type TableOptions struct {
	TableName          string
	Schema             *schema.SchemaDef // must be flat
	SegmentationSource string            // non-empty builds the split table
	Metadata           *schema.TableMetadata
	WithAuditColumns   bool
}

// TableBuilder assembles TableDicts from flattened schemas
type TableBuilder struct {
	typeMapper *TypeMapper
}

// NewTableBuilder creates a TableBuilder. A nil mapper uses the default mapping.
func NewTableBuilder(mapper *TypeMapper) *TableBuilder {
	if mapper == nil {
		mapper = NewTypeMapper()
	}
	return &TableBuilder{typeMapper: mapper}
}

// TypeMapper returns the mapper used by the builder
func (b *TableBuilder) TypeMapper() *TypeMapper {
	return b.typeMapper
}

// Build compiles one table. Columns come out in the order: id, audit
// columns, then schema fields in declaration order.
func (b *TableBuilder) Build(opts TableOptions) (*TableDict, error) {
	if opts.Schema == nil {
		return nil, fmt.Errorf("table %s: schema cannot be nil", opts.TableName)
	}
	if err := schema.AssertFlat(opts.Schema); err != nil {
		return nil, withTable(err, opts.TableName)
	}

	dict := &TableDict{}
	id := Column{
		Name:       "id",
		Type:       ColumnType{Kind: KindBigInteger},
		PrimaryKey: true,
	}
	if opts.SegmentationSource != "" {
		dict.TableName = SplitTableName(opts.TableName, opts.SegmentationSource)
		dict.BaseTable = opts.TableName
		dict.PolymorphicIdentity = dict.TableName
		dict.Concrete = true
		id.ForeignKey = opts.TableName + ".id"
	} else {
		dict.TableName = opts.TableName
		dict.PolymorphicIdentity = opts.TableName
	}
	if err := dict.add(id); err != nil {
		return nil, err
	}

	if opts.WithAuditColumns {
		for _, c := range auditColumns() {
			if err := dict.add(c); err != nil {
				return nil, err
			}
		}
	}

	for _, f := range opts.Schema.Fields() {
		if f.DropColumn {
			continue
		}

		referenceTable, err := resolveReference(f, opts.Metadata)
		if err != nil {
			return nil, withTable(err, dict.TableName)
		}

		col, err := b.typeMapper.MapField(f, referenceTable)
		if err != nil {
			return nil, withTable(err, dict.TableName)
		}
		if err := dict.add(col); err != nil {
			return nil, err
		}
	}

	return dict, nil
}

// BuildTableDict builds one table with the default type mapping
func BuildTableDict(opts TableOptions) (*TableDict, error) {
	return NewTableBuilder(nil).Build(opts)
}

func auditColumns() []Column {
	return []Column{
		{Name: "created", Type: ColumnType{Kind: KindDateTime}, Indexed: true, Nullable: false},
		{Name: "deleted", Type: ColumnType{Kind: KindDateTime}, Indexed: true, Nullable: true},
		{Name: "superseded_id", Type: ColumnType{Kind: KindBigInteger}, Nullable: true},
	}
}

// resolveReference returns the reference table a field points at, or "" for
// fields that do not need one.
func resolveReference(f *schema.FieldSpec, md *schema.TableMetadata) (string, error) {
	if !f.RequiresReference() {
		return "", nil
	}
	if md == nil {
		return "", cerrors.NewMissingReferenceMetadata(f.Name, false)
	}
	if md.ReferenceTable == "" {
		return "", cerrors.NewMissingReferenceMetadata(f.Name, true)
	}
	return md.ReferenceTable, nil
}

func withTable(err error, table string) error {
	var se *cerrors.SchemaError
	if cerrors.As(err, &se) && se.Table == "" {
		se.Table = table
	}
	return err
}
