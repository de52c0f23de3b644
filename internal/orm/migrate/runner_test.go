package migrate

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/connectome/emschema/internal/orm/codegen"
	"github.com/connectome/emschema/internal/orm/models"
)

var trackedColumns = []string{"table_name", "polymorphic_identity", "base_table", "applied_at"}

func expectTracking(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS emschema_tables`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT table_name, polymorphic_identity, base_table, applied_at\s+FROM emschema_tables`).
		WillReturnRows(rows)
}

func expectCreate(t *testing.T, mock sqlmock.Sqlmock, m *models.Model, base interface{}) {
	t.Helper()
	ddl, err := codegen.NewDDLGenerator().GenerateSchema(m.TableDict())
	require.NoError(t, err)
	for _, stmt := range ddl {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(`INSERT INTO emschema_tables`).
		WithArgs(m.TableName(), m.PolymorphicIdentity(), base).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestPlan(t *testing.T) {
	_, split := splitModels(t)

	stmts, err := Plan([]*models.Model{split})
	require.NoError(t, err)
	require.NotEmpty(t, stmts)

	assert.Equal(t, EnablePostGIS, stmts[0])

	baseAt, splitAt := -1, -1
	for i, s := range stmts {
		switch {
		case strings.HasPrefix(s, `CREATE TABLE IF NOT EXISTS "syn" (`):
			baseAt = i
		case strings.HasPrefix(s, `CREATE TABLE IF NOT EXISTS "syn__seg" (`):
			splitAt = i
		}
	}
	require.NotEqual(t, -1, baseAt, "base table is pulled in from the split's parent")
	require.NotEqual(t, -1, splitAt)
	assert.Less(t, baseAt, splitAt)
	assert.Contains(t, stmts[splitAt], `"id" BIGINT PRIMARY KEY REFERENCES "syn" ("id")`)
}

func TestPlanWithoutGeometry(t *testing.T) {
	c := models.NewCompiler(nil)
	tags := refModel(t, c, "tags", "cells")

	stmts, err := Plan([]*models.Model{tags})
	require.NoError(t, err)
	for _, s := range stmts {
		assert.NotEqual(t, EnablePostGIS, s)
	}
}

func TestApplier_Apply(t *testing.T) {
	db, mock := setupTestDB(t)
	base, split := splitModels(t)
	applier := NewApplier(db, WithLogger(zaptest.NewLogger(t)))

	expectTracking(mock, sqlmock.NewRows(trackedColumns))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(EnablePostGIS)).WillReturnResult(sqlmock.NewResult(0, 0))
	expectCreate(t, mock, base, nil)
	expectCreate(t, mock, split, "syn")
	mock.ExpectCommit()

	result, err := applier.Apply(context.Background(), []*models.Model{split, base})
	require.NoError(t, err)

	assert.Equal(t, []string{"syn", "syn__seg"}, result.Applied)
	assert.Empty(t, result.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplier_ApplySkipsTrackedTables(t *testing.T) {
	db, mock := setupTestDB(t)
	base, split := splitModels(t)
	applier := NewApplier(db)

	expectTracking(mock, sqlmock.NewRows(trackedColumns).AddRow("syn", "syn", nil, time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(EnablePostGIS)).WillReturnResult(sqlmock.NewResult(0, 0))
	expectCreate(t, mock, split, "syn")
	mock.ExpectCommit()

	result, err := applier.Apply(context.Background(), []*models.Model{base, split})
	require.NoError(t, err)

	assert.Equal(t, []string{"syn__seg"}, result.Applied)
	assert.Equal(t, []string{"syn"}, result.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplier_ApplyNothingPending(t *testing.T) {
	db, mock := setupTestDB(t)
	base, split := splitModels(t)
	applier := NewApplier(db)

	expectTracking(mock, sqlmock.NewRows(trackedColumns).
		AddRow("syn", "syn", nil, time.Now()).
		AddRow("syn__seg", "syn__seg", "syn", time.Now()))

	result, err := applier.Apply(context.Background(), []*models.Model{base, split})
	require.NoError(t, err)

	assert.Empty(t, result.Applied)
	assert.Equal(t, []string{"syn", "syn__seg"}, result.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplier_ApplyRollsBackOnError(t *testing.T) {
	db, mock := setupTestDB(t)
	base, _ := splitModels(t)
	applier := NewApplier(db)

	expectTracking(mock, sqlmock.NewRows(trackedColumns))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(EnablePostGIS)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "syn"`).
		WillReturnError(errors.New(`type "geometry" does not exist`))
	mock.ExpectRollback()

	_, err := applier.Apply(context.Background(), []*models.Model{base})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table syn: failed to execute DDL")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplier_ApplyCommitError(t *testing.T) {
	db, mock := setupTestDB(t)
	c := models.NewCompiler(nil)
	tags := refModel(t, c, "tags", "cells")
	applier := NewApplier(db)

	expectTracking(mock, sqlmock.NewRows(trackedColumns))
	mock.ExpectBegin()
	expectCreate(t, mock, tags, nil)
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	_, err := applier.Apply(context.Background(), []*models.Model{tags})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
}

func TestApplier_Drop(t *testing.T) {
	db, mock := setupTestDB(t)
	base, split := splitModels(t)
	applier := NewApplier(db)

	expectTracking(mock, sqlmock.NewRows(trackedColumns).
		AddRow("syn", "syn", nil, time.Now()).
		AddRow("syn__seg", "syn__seg", "syn", time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "syn__seg" CASCADE;`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM emschema_tables`).WithArgs("syn__seg").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "syn" CASCADE;`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM emschema_tables`).WithArgs("syn").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := applier.Drop(context.Background(), []*models.Model{base, split})
	require.NoError(t, err)

	assert.Equal(t, []string{"syn__seg", "syn"}, result.Dropped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplier_DropSkipsUntracked(t *testing.T) {
	db, mock := setupTestDB(t)
	base, _ := splitModels(t)
	applier := NewApplier(db)

	expectTracking(mock, sqlmock.NewRows(trackedColumns))
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := applier.Drop(context.Background(), []*models.Model{base})
	require.NoError(t, err)

	assert.Empty(t, result.Dropped)
	assert.Equal(t, []string{"syn"}, result.Skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}
