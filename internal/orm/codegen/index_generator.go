package codegen

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/connectome/emschema/internal/orm/schema"
)

// IndexMethod is the access method of an index
type IndexMethod int

const (
	IndexBTree IndexMethod = iota
	// IndexGistND is an N-dimensional GIST index for geometry columns
	IndexGistND
)

// Index is one secondary index of a table
type Index struct {
	Name   string
	Table  string
	Column string
	Method IndexMethod
}

// IndexGenerator derives secondary indexes from indexed columns
type IndexGenerator struct{}

// NewIndexGenerator creates a new index generator
func NewIndexGenerator() *IndexGenerator {
	return &IndexGenerator{}
}

// Indexes returns the indexes of a table in column order. Primary keys are
// skipped; geometry columns get an N-dimensional GIST index.
func (g *IndexGenerator) Indexes(dict *TableDict) []Index {
	var indexes []Index
	for _, col := range dict.Columns {
		if !col.Indexed || col.PrimaryKey {
			continue
		}
		idx := Index{Table: dict.TableName, Column: col.Name}
		if col.Type.Kind == KindGeometry {
			idx.Method = IndexGistND
			idx.Name = IndexName("idx", dict.TableName, col.Name)
		} else {
			idx.Name = IndexName("ix", dict.TableName, col.Name)
		}
		indexes = append(indexes, idx)
	}
	return indexes
}

// IndexName returns <prefix>_<table>_<column>. Names over PostgreSQL's
// identifier limit are cut and suffixed with the last four hex digits of
// their md5, the same names SQLAlchemy gives such indexes.
func IndexName(prefix, table, column string) string {
	name := fmt.Sprintf("%s_%s_%s", prefix, table, column)
	if len(name) <= schema.MaxIdentifierLength {
		return name
	}
	sum := md5.Sum([]byte(name))
	digest := hex.EncodeToString(sum[:])
	return name[:schema.MaxIdentifierLength-8] + "_" + digest[len(digest)-4:]
}

// GenerateIndexes generates CREATE INDEX statements in column order
func (g *IndexGenerator) GenerateIndexes(dict *TableDict) []string {
	var stmts []string
	for _, idx := range g.Indexes(dict) {
		stmts = append(stmts, g.generateIndex(idx))
	}
	return stmts
}

func (g *IndexGenerator) generateIndex(idx Index) string {
	switch idx.Method {
	case IndexGistND:
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING gist (%s gist_geometry_ops_nd);",
			QuoteIdentifier(idx.Name), QuoteIdentifier(idx.Table), QuoteIdentifier(idx.Column))
	default:
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s);",
			QuoteIdentifier(idx.Name), QuoteIdentifier(idx.Table), QuoteIdentifier(idx.Column))
	}
}
