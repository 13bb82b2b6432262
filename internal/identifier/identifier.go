// Package identifier validates and quotes SQL identifiers.
//
// DuckDB's parameter binding covers values only, never identifiers, so
// every schema, table, and column name interpolated into SQL text must
// pass through this package first.
package identifier

import (
	"fmt"
	"regexp"
	"strings"
)

var validName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Valid reports whether name is a plain SQL identifier: a letter or
// underscore followed by letters, digits, or underscores.
func Valid(name string) bool {
	return validName.MatchString(name)
}

// Check returns an error if name is not a valid identifier.
func Check(name string) error {
	if !Valid(name) {
		return fmt.Errorf("invalid SQL identifier: %q", name)
	}
	return nil
}

// Quote returns name wrapped in double quotes with embedded quotes doubled.
// Callers should still Check names that originate outside the engine.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteQualified returns a quoted schema.table reference.
func QuoteQualified(schema, table string) string {
	return Quote(schema) + "." + Quote(table)
}
