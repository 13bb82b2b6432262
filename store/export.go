package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/demandcast/demandcast-go/internal/identifier"
)

// Export writes schema.table to a CSV or Parquet file, chosen by the
// filename suffix. An existing file is only replaced when overwrite is
// set.
func (s *Store) Export(ctx context.Context, schema, table, path string, overwrite bool) error {
	if err := identifier.Check(schema); err != nil {
		return err
	}
	if err := identifier.Check(table); err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("export to %s: file exists and overwrite is false", path)
		}
	}

	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		format = "(FORMAT CSV, HEADER)"
	case ".parquet":
		format = "(FORMAT PARQUET)"
	default:
		return fmt.Errorf("unsupported export type %q: expected .csv or .parquet", filepath.Ext(path))
	}

	stmt := "COPY " + identifier.QuoteQualified(schema, table) + " TO " + sqlLiteral(path) + " " + format
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("export %s.%s to %s: %w", schema, table, path, err)
	}
	s.logger.Info("exported table", "schema", schema, "table", table, "file", path)
	return nil
}
