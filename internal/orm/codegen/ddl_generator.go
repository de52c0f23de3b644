package codegen

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// DDLGenerator renders TableDicts as PostgreSQL/PostGIS DDL statements
type DDLGenerator struct {
	indexes *IndexGenerator
}

// NewDDLGenerator creates a new DDL generator
func NewDDLGenerator() *DDLGenerator {
	return &DDLGenerator{indexes: NewIndexGenerator()}
}

// QuoteIdentifier quotes a table or column name for PostgreSQL
func QuoteIdentifier(identifier string) string {
	return pq.QuoteIdentifier(identifier)
}

// GenerateCreateTable generates a CREATE TABLE statement for a table
func (g *DDLGenerator) GenerateCreateTable(dict *TableDict) (string, error) {
	if dict == nil {
		return "", fmt.Errorf("table cannot be nil")
	}
	if len(dict.Columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", dict.TableName)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", QuoteIdentifier(dict.TableName)))

	for i, col := range dict.Columns {
		b.WriteString("  ")
		b.WriteString(g.generateColumnDefinition(col))
		if i < len(dict.Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}

	b.WriteString(");")
	return b.String(), nil
}

// generateColumnDefinition generates a column definition
func (g *DDLGenerator) generateColumnDefinition(col Column) string {
	parts := []string{QuoteIdentifier(col.Name)}

	switch {
	case col.PrimaryKey && col.ForeignKey == "" && col.Type.Kind == KindBigInteger:
		parts = append(parts, "BIGSERIAL")
	default:
		parts = append(parts, col.Type.String())
	}

	if col.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	} else if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}

	if col.ForeignKey != "" {
		parts = append(parts, fmt.Sprintf("REFERENCES %s (%s)",
			QuoteIdentifier(col.ForeignTable()), QuoteIdentifier("id")))
	}

	return strings.Join(parts, " ")
}

// GenerateIndexes generates CREATE INDEX statements in column order.
// Geometry columns get an N-dimensional GIST index.
func (g *DDLGenerator) GenerateIndexes(dict *TableDict) []string {
	return g.indexes.GenerateIndexes(dict)
}

// GenerateSchema generates the table followed by its indexes
func (g *DDLGenerator) GenerateSchema(dict *TableDict) ([]string, error) {
	createTable, err := g.GenerateCreateTable(dict)
	if err != nil {
		return nil, err
	}
	return append([]string{createTable}, g.GenerateIndexes(dict)...), nil
}

// GenerateDropTable generates a DROP TABLE statement
func (g *DDLGenerator) GenerateDropTable(dict *TableDict) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", QuoteIdentifier(dict.TableName))
}
