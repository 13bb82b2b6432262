package store

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/demandcast/demandcast-go/internal/identifier"
)

// CreateTableFromFile materializes schema.table from a CSV or Parquet
// file, replacing any existing table of that name. The format is chosen
// by the filename suffix. Column types are inferred by the store, with
// one exception: a CSV column named "timestamp" is forced to TIMESTAMP
// WITH TIME ZONE so that user-supplied override files match the
// calculated tables' timestamp type.
func (s *Store) CreateTableFromFile(ctx context.Context, schema, table, path string) error {
	if err := identifier.Check(schema); err != nil {
		return err
	}
	if err := identifier.Check(table); err != nil {
		return err
	}

	var source string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		hasTimestamp, err := csvHeaderHasColumn(path, "timestamp")
		if err != nil {
			return err
		}
		source = "read_csv(" + sqlLiteral(path) + ")"
		if hasTimestamp {
			source = "read_csv(" + sqlLiteral(path) + ", types={'timestamp': 'TIMESTAMP WITH TIME ZONE'})"
		}
	case ".parquet":
		source = "read_parquet(" + sqlLiteral(path) + ")"
	default:
		return fmt.Errorf("unsupported file type %q: expected .csv or .parquet", filepath.Ext(path))
	}

	stmt := "CREATE OR REPLACE TABLE " + identifier.QuoteQualified(schema, table) +
		" AS SELECT * FROM " + source
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s.%s from %s: %w", schema, table, path, err)
	}
	s.logger.Info("created table from file", "schema", schema, "table", table, "file", path)
	return nil
}

// csvHeaderHasColumn reports whether the first line of the CSV file
// names the given column.
func csvHeaderHasColumn(path, column string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return false, fmt.Errorf("read %s: %w", path, err)
		}
		return false, nil
	}
	for _, field := range strings.Split(scanner.Text(), ",") {
		if strings.TrimSpace(strings.Trim(strings.TrimSpace(field), `"`)) == column {
			return true, nil
		}
	}
	return false, nil
}
