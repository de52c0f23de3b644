// Package migrate creates the physical tables of compiled models in a
// PostgreSQL/PostGIS database and tracks which tables it has created.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/connectome/emschema/internal/orm/models"
)

// TrackingTable is the table recording every table created by the applier
const TrackingTable = "emschema_tables"

// AppliedTable is one row of the tracking table
type AppliedTable struct {
	TableName           string
	PolymorphicIdentity string
	BaseTable           string // parent of a segmentation split, empty otherwise
	AppliedAt           time.Time
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Tracker manages the table history in the database
type Tracker struct {
	db *sql.DB
}

// NewTracker creates a new table tracker
func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db}
}

// Initialize ensures the tracking table exists
func (t *Tracker) Initialize(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS emschema_tables (
	table_name VARCHAR(255) PRIMARY KEY,
	polymorphic_identity VARCHAR(255) NOT NULL,
	base_table VARCHAR(255),
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
	if _, err := t.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to initialize tracking table: %w", err)
	}
	return nil
}

// GetApplied returns every tracked table ordered by creation time
func (t *Tracker) GetApplied(ctx context.Context) ([]*AppliedTable, error) {
	return t.getApplied(ctx, t.db)
}

func (t *Tracker) getApplied(ctx context.Context, q querier) ([]*AppliedTable, error) {
	query := `
SELECT table_name, polymorphic_identity, base_table, applied_at
FROM emschema_tables
ORDER BY applied_at ASC, table_name ASC
`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked tables: %w", err)
	}
	defer rows.Close()

	var tables []*AppliedTable
	for rows.Next() {
		at := &AppliedTable{}
		var base sql.NullString
		if err := rows.Scan(&at.TableName, &at.PolymorphicIdentity, &base, &at.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tracked table: %w", err)
		}
		at.BaseTable = base.String
		tables = append(tables, at)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracked tables: %w", err)
	}
	return tables, nil
}

// IsApplied checks if a table has been created
func (t *Tracker) IsApplied(ctx context.Context, table string) (bool, error) {
	query := "SELECT EXISTS(SELECT 1 FROM emschema_tables WHERE table_name = $1)"
	var exists bool
	if err := t.db.QueryRowContext(ctx, query, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check table status: %w", err)
	}
	return exists, nil
}

// Record marks a model's table as created in a transaction
func (t *Tracker) Record(ctx context.Context, tx *sql.Tx, m *models.Model) error {
	query := `
INSERT INTO emschema_tables (table_name, polymorphic_identity, base_table)
VALUES ($1, $2, $3)
`
	var base sql.NullString
	if m.Parent() != nil {
		base = sql.NullString{String: m.Parent().TableName(), Valid: true}
	}
	if _, err := tx.ExecContext(ctx, query, m.TableName(), m.PolymorphicIdentity(), base); err != nil {
		return fmt.Errorf("failed to record table %s: %w", m.TableName(), err)
	}
	return nil
}

// Remove deletes a table record in a transaction
func (t *Tracker) Remove(ctx context.Context, tx *sql.Tx, table string) error {
	query := "DELETE FROM emschema_tables WHERE table_name = $1"
	result, err := tx.ExecContext(ctx, query, table)
	if err != nil {
		return fmt.Errorf("failed to remove table record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("table %s is not tracked", table)
	}
	return nil
}

// GetPending returns the models whose tables have not been created yet,
// keeping their order.
func (t *Tracker) GetPending(ctx context.Context, all []*models.Model) ([]*models.Model, error) {
	return t.getPending(ctx, t.db, all)
}

// GetPendingTx is GetPending read inside tx
func (t *Tracker) GetPendingTx(ctx context.Context, tx *sql.Tx, all []*models.Model) ([]*models.Model, error) {
	return t.getPending(ctx, tx, all)
}

func (t *Tracker) getPending(ctx context.Context, q querier, all []*models.Model) ([]*models.Model, error) {
	applied, err := t.getApplied(ctx, q)
	if err != nil {
		return nil, err
	}

	appliedSet := make(map[string]bool, len(applied))
	for _, at := range applied {
		appliedSet[at.TableName] = true
	}

	var pending []*models.Model
	for _, m := range all {
		if !appliedSet[m.TableName()] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}
