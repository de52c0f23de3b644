package migrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connectome/emschema/internal/orm/models"
)

func TestTracker_Initialize(t *testing.T) {
	db, mock := setupTestDB(t)
	tracker := NewTracker(db)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS emschema_tables`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, tracker.Initialize(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTracker_InitializeError(t *testing.T) {
	db, mock := setupTestDB(t)
	tracker := NewTracker(db)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS emschema_tables`).
		WillReturnError(errors.New("permission denied"))

	err := tracker.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize tracking table")
}

func TestTracker_GetApplied(t *testing.T) {
	db, mock := setupTestDB(t)
	tracker := NewTracker(db)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT table_name, polymorphic_identity, base_table, applied_at\s+FROM emschema_tables`).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "polymorphic_identity", "base_table", "applied_at"}).
			AddRow("syn", "syn", nil, now).
			AddRow("syn__seg", "syn__seg", "syn", now))

	applied, err := tracker.GetApplied(context.Background())
	require.NoError(t, err)
	require.Len(t, applied, 2)

	assert.Equal(t, "syn", applied[0].TableName)
	assert.Empty(t, applied[0].BaseTable)
	assert.Equal(t, "syn__seg", applied[1].TableName)
	assert.Equal(t, "syn", applied[1].BaseTable)
	assert.Equal(t, now, applied[1].AppliedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTracker_IsApplied(t *testing.T) {
	db, mock := setupTestDB(t)
	tracker := NewTracker(db)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("syn").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := tracker.IsApplied(context.Background(), "syn")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTracker_RecordAndRemove(t *testing.T) {
	db, mock := setupTestDB(t)
	tracker := NewTracker(db)
	_, split := splitModels(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO emschema_tables`).
		WithArgs("syn__seg", "syn__seg", "syn").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM emschema_tables WHERE table_name = \$1`).
		WithArgs("syn__seg").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM emschema_tables WHERE table_name = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	require.NoError(t, tracker.Record(ctx, tx, split))
	require.NoError(t, tracker.Remove(ctx, tx, "syn__seg"))

	err = tracker.Remove(ctx, tx, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not tracked")

	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTracker_GetPending(t *testing.T) {
	db, mock := setupTestDB(t)
	tracker := NewTracker(db)
	base, split := splitModels(t)

	mock.ExpectQuery(`SELECT table_name, polymorphic_identity, base_table, applied_at\s+FROM emschema_tables`).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "polymorphic_identity", "base_table", "applied_at"}).
			AddRow("syn", "syn", nil, time.Now()))

	pending, err := tracker.GetPending(context.Background(), []*models.Model{base, split})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Same(t, split, pending[0])
}

func TestTracker_GetPendingTx(t *testing.T) {
	db, mock := setupTestDB(t)
	tracker := NewTracker(db)
	base, split := splitModels(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT table_name, polymorphic_identity, base_table, applied_at\s+FROM emschema_tables`).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "polymorphic_identity", "base_table", "applied_at"}).
			AddRow("syn__seg", "syn__seg", "syn", time.Now()))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)

	pending, err := tracker.GetPendingTx(ctx, tx, []*models.Model{base, split})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Same(t, base, pending[0])

	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
