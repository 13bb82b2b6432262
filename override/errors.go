package override

import (
	"errors"
	"fmt"
	"strings"

	"github.com/demandcast/demandcast-go/store"
)

// ErrOverrideOfOverride is returned when the table named for an
// override is itself an override artifact. Overriding an override is
// never supported.
var ErrOverrideOfOverride = errors.New("overriding an override table is not supported")

// UnknownScenarioError reports an override naming a scenario the
// project does not declare.
type UnknownScenarioError struct {
	Scenario string
	Known    []string
}

func (e *UnknownScenarioError) Error() string {
	return fmt.Sprintf("unknown scenario %q: project scenarios are [%s]",
		e.Scenario, strings.Join(e.Known, ", "))
}

// UnknownTableError reports an override naming a table that does not
// exist in the scenario's schema.
type UnknownTableError struct {
	Scenario string
	Table    string
}

func (e *UnknownTableError) Error() string {
	return fmt.Sprintf("table %q is not a calculated table in scenario %q", e.Table, e.Scenario)
}

// SchemaMismatchError reports an override source file whose inferred
// schema does not match the table it replaces. The override artifact has
// already been deleted when this error surfaces.
type SchemaMismatchError struct {
	Scenario        string
	Table           string
	BaseColumns     []store.Column
	OverrideColumns []store.Column
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf(
		"override schema for %s.%s does not match the existing table: override columns %s, existing columns %s",
		e.Scenario, e.Table, formatColumns(e.OverrideColumns), formatColumns(e.BaseColumns))
}

func formatColumns(cols []store.Column) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c.Name + " " + c.Type
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// NotActiveError reports a removal request for an override that is not
// currently installed.
type NotActiveError struct {
	Scenario string
	Table    string
}

func (e *NotActiveError) Error() string {
	return fmt.Sprintf("no active override for table %q in scenario %q", e.Table, e.Scenario)
}

// DuplicateRemovalError reports two removal requests targeting the same
// logical override within one call.
type DuplicateRemovalError struct {
	Scenario string
	Table    string
}

func (e *DuplicateRemovalError) Error() string {
	return fmt.Sprintf("duplicate removal request for table %q in scenario %q", e.Table, e.Scenario)
}
