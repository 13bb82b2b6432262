// Package store provides the DuckDB access layer for a demandcast
// project: connection management, table and schema introspection, file
// materialization, and exports.
//
// All value filters use bound parameters. Identifiers (schema, table,
// and column names) cannot be bound, so they are validated and quoted
// through internal/identifier before being interpolated into SQL text.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb database/sql driver

	"github.com/demandcast/demandcast-go/internal/identifier"
)

// Options configures opening a store.
type Options struct {
	// ReadOnly opens the database in read-only mode. Multiple read-only
	// connections may coexist; only one writable connection is allowed
	// per database file.
	// OPTIONAL: defaults to read-write.
	ReadOnly bool

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Store wraps a DuckDB connection. It is safe for concurrent readers;
// writers must be serialized externally (see the project-level docs).
type Store struct {
	db       *sql.DB
	readOnly bool
	logger   *slog.Logger
}

// Open opens the DuckDB database at path. An empty path opens an
// in-memory database, which is primarily useful in tests.
func Open(path string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dsn := path
	if opts.ReadOnly {
		if path == "" {
			return nil, fmt.Errorf("open store: in-memory database cannot be read-only")
		}
		dsn = path + "?access_mode=read_only"
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb at %q: %w", path, err)
	}
	return &Store{db: db, readOnly: opts.ReadOnly, logger: logger}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReadOnly reports whether the store was opened read-only.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// DB exposes the underlying connection pool for callers that compose
// their own statements. The parameter-binding rules above still apply.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Exec runs a statement with bound arguments.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// Query runs a query with bound arguments.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// Column describes one column of a table: its name and declared type as
// reported by the store.
type Column struct {
	Name string
	Type string
}

// ListTables returns the table names in the given schema, sorted.
func (s *Store) ListTables(ctx context.Context, schema string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		ORDER BY table_name`, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables in %s: %w", schema, err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// HasTable reports whether the table exists in the schema.
func (s *Store) HasTable(ctx context.Context, schema, table string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM information_schema.tables
		WHERE table_schema = ? AND table_name = ?`, schema, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table %s.%s: %w", schema, table, err)
	}
	return n > 0, nil
}

// ColumnTypes returns the columns of schema.table in ordinal order.
func (s *Store) ColumnTypes(ctx context.Context, schema, table string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s.%s: %w", schema, table, err)
	}
	defer rows.Close()
	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("describe %s.%s: table not found", schema, table)
	}
	return cols, nil
}

// CreateSchema creates the schema if it does not already exist.
func (s *Store) CreateSchema(ctx context.Context, name string) error {
	if err := identifier.Check(name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+identifier.Quote(name)); err != nil {
		return fmt.Errorf("create schema %s: %w", name, err)
	}
	return nil
}

// DropTable drops schema.table if it exists.
func (s *Store) DropTable(ctx context.Context, schema, table string) error {
	if err := identifier.Check(schema); err != nil {
		return err
	}
	if err := identifier.Check(table); err != nil {
		return err
	}
	stmt := "DROP TABLE IF EXISTS " + identifier.QuoteQualified(schema, table)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("drop table %s.%s: %w", schema, table, err)
	}
	return nil
}

// sqlLiteral escapes s as a single-quoted SQL string literal. Used for
// file paths in read_csv/read_parquet/COPY, which cannot be bound.
func sqlLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
