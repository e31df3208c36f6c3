// Package store provides the parameterized query primitives used by the
// sub-workflow tools, backed by a sqlite database.
package store

import (
	"context"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/foreman-dev/foreman/pkg/errors"
)

// Querier defines the read/write primitives consumed by sub-workflow tools
type Querier interface {
	// Select runs a formatted query and returns all rows
	Select(ctx context.Context, query string, args ...any) ([][]any, error)

	// Execute runs a formatted write statement
	Execute(ctx context.Context, query string, args ...any) error
}

// DB implements Querier on a gorm-managed sqlite database
type DB struct {
	db *gorm.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects(
		project_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS requirements(
		requirement_id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects(project_id),
		description TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tasks(
		task_id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL REFERENCES projects(project_id),
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		start TEXT NOT NULL,
		"end" TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS task_dependencies(
		dependency_id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id INTEGER NOT NULL REFERENCES tasks(task_id),
		dependent_id INTEGER NOT NULL REFERENCES tasks(task_id),
		description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS resources(
		resource_id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL,
		last_name TEXT,
		contact TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS resource_assignments(
		assignment_id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id INTEGER NOT NULL REFERENCES tasks(task_id),
		resource_id INTEGER NOT NULL REFERENCES resources(resource_id)
	)`,
}

// Open opens (or creates) the database at path and applies the schema
func Open(path string) (*DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStoreQuery, "failed to open database", err)
	}

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			return nil, apperrors.New(apperrors.ErrCodeStoreWrite, "failed to apply schema", err)
		}
	}

	return &DB{db: db}, nil
}

// Gorm exposes the underlying handle for components that persist their own
// models, such as the session store.
func (d *DB) Gorm() *gorm.DB {
	return d.db
}

// Select runs a formatted query and returns all rows
func (d *DB) Select(ctx context.Context, query string, args ...any) ([][]any, error) {
	formatted, err := Format(query, args...)
	if err != nil {
		return nil, err
	}

	rows, err := d.db.WithContext(ctx).Raw(formatted).Rows()
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStoreQuery, "query failed", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStoreQuery, "failed to read columns", err)
	}

	var result [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, apperrors.New(apperrors.ErrCodeStoreQuery, "failed to scan row", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, values)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStoreQuery, "row iteration failed", err)
	}

	return result, nil
}

// Execute runs a formatted write statement
func (d *DB) Execute(ctx context.Context, query string, args ...any) error {
	formatted, err := Format(query, args...)
	if err != nil {
		return err
	}

	if err := d.db.WithContext(ctx).Exec(formatted).Error; err != nil {
		return apperrors.New(apperrors.ErrCodeStoreWrite, "write failed", err)
	}

	return nil
}

// Column extracts one column of a Select result as strings; NULL values
// are kept as empty strings so positions line up with the input rows
func Column(rows [][]any, index int) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if index < len(row) {
			out = append(out, AsString(row[index]))
		}
	}
	return out
}

// AsString coerces a scanned value to a string; NULL becomes ""
func AsString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return ""
	}
}

// AsInt64 coerces a scanned value to an int64
func AsInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
