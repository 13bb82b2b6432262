// Package facttable declares the canonical schema of the unified
// energy_projection fact table and the statements that build it from
// per-scenario calculated tables.
//
// The query compiler's correctness depends on the invariants declared
// here: the column set is fixed, one row exists per (scenario,
// model_year, geography, sector, metric, timestamp), and value carries
// MWh for energy metrics and MW for demand metrics.
package facttable

import (
	"strings"

	"github.com/demandcast/demandcast-go/internal/identifier"
)

// Name is the unified fact table's name in the main schema.
const Name = "energy_projection"

// Column describes one canonical fact-table column.
type Column struct {
	Name string
	Type string
}

// Columns is the canonical ordered column set of the fact table.
var Columns = []Column{
	{Name: "timestamp", Type: "TIMESTAMP WITH TIME ZONE"},
	{Name: "model_year", Type: "BIGINT"},
	{Name: "scenario", Type: "VARCHAR"},
	{Name: "sector", Type: "VARCHAR"},
	{Name: "geography", Type: "VARCHAR"},
	{Name: "metric", Type: "VARCHAR"},
	{Name: "value", Type: "DOUBLE"},
}

// ProjectionList returns the fixed comma-separated SELECT list of the
// canonical columns, in declared order.
func ProjectionList() string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

// HasColumn reports whether name is a canonical fact-table column.
func HasColumn(name string) bool {
	for _, c := range Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// CreateFromScenarioSQL returns the statement that replaces the unified
// fact table with the given scenario's calculated energy projection.
// Used for the first scenario of a rebuild.
func CreateFromScenarioSQL(scenario string) (string, error) {
	if err := identifier.Check(scenario); err != nil {
		return "", err
	}
	return "CREATE OR REPLACE TABLE " + Name + " AS SELECT " + ProjectionList() +
		" FROM " + identifier.QuoteQualified(scenario, Name), nil
}

// InsertFromScenarioSQL returns the statement that appends the given
// scenario's calculated energy projection to the unified fact table.
// Used for every scenario after the first.
func InsertFromScenarioSQL(scenario string) (string, error) {
	if err := identifier.Check(scenario); err != nil {
		return "", err
	}
	return "INSERT INTO " + Name + " SELECT " + ProjectionList() +
		" FROM " + identifier.QuoteQualified(scenario, Name), nil
}
