package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "foreman.db"))
	require.NoError(t, err)
	return db
}

func TestOpen_AppliesSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Every table from the schema is queryable
	for _, table := range []string{"projects", "requirements", "tasks", "task_dependencies", "resources", "resource_assignments"} {
		_, err := db.Select(ctx, "SELECT COUNT(*) FROM "+table)
		assert.NoError(t, err, table)
	}
}

func TestExecuteAndSelect(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.Execute(ctx, "INSERT INTO projects(name, description) VALUES (!p1, !p2)", "Atlas", "Mapping platform")
	require.NoError(t, err)

	rows, err := db.Select(ctx, "SELECT project_id, name, description FROM projects WHERE name = !p1", "Atlas")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, int64(1), AsInt64(rows[0][0]))
	assert.Equal(t, "Atlas", AsString(rows[0][1]))
	assert.Equal(t, "Mapping platform", AsString(rows[0][2]))
}

func TestExecute_NullFromEmptyString(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.Execute(ctx, "INSERT INTO resources(first_name, last_name, contact) VALUES (!p1, !p2, !p3)",
		"Ada", "", "ada@example.com")
	require.NoError(t, err)

	rows, err := db.Select(ctx, "SELECT first_name FROM resources WHERE last_name IS NULL")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada", AsString(rows[0][0]))
}

func TestExecute_UniqueConstraint(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Execute(ctx, "INSERT INTO projects(name, description) VALUES (!p1, !p2)", "Atlas", ""))
	err := db.Execute(ctx, "INSERT INTO projects(name, description) VALUES (!p1, !p2)", "Atlas", "")
	assert.Error(t, err)
}

func TestColumn(t *testing.T) {
	rows := [][]any{
		{"Atlas", int64(1)},
		{nil, int64(2)},
		{"Borealis", int64(3)},
	}
	// NULLs stay in place as empty strings so indexes still match rows
	assert.Equal(t, []string{"Atlas", "", "Borealis"}, Column(rows, 0))
}
