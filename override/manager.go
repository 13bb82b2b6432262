// Package override installs and removes per-scenario table overrides:
// user-supplied tables that replace a calculated table's output for one
// scenario.
//
// An override's physical artifact is a second table named
// <table>_override in the scenario's schema, schema-compatible with the
// table it replaces, plus a generated transformation model file that
// routes the scenario's build through the override. The persisted
// override list (config.TableOverrides) is the single source of truth
// for what is currently overridden.
//
// Install and Remove are batch operations with documented partial-apply
// semantics: the first invalid entry aborts the remainder of the batch,
// but entries already applied are not rolled back. Callers must trigger
// a full rebuild and persist the configuration after either call
// succeeds (or partially applies).
package override

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/demandcast/demandcast-go/config"
	"github.com/demandcast/demandcast-go/internal/identifier"
	"github.com/demandcast/demandcast-go/store"
)

// Suffix is appended to a table name to name its override artifact.
const Suffix = "_override"

// Spec describes one override to install.
type Spec struct {
	Scenario   string
	TableName  string
	SourceFile string
}

// Ref identifies one active override to remove. TableName accepts
// either the base table name or the _override-suffixed artifact name.
type Ref struct {
	Scenario  string
	TableName string
}

// Manager validates, installs, and removes overrides.
type Manager struct {
	// Store is the read-write store connection.
	// REQUIRED: MUST NOT be nil.
	Store *store.Store

	// Config supplies the known scenarios.
	// REQUIRED: MUST NOT be nil.
	Config *config.ProjectConfig

	// Overrides is the persisted override list this manager mutates.
	// REQUIRED: MUST NOT be nil.
	Overrides *config.TableOverrides

	// ModelsDir is the directory holding the transformation model files
	// where override models are emitted.
	// REQUIRED: MUST be an existing directory.
	ModelsDir string

	// Logger for override logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// Install applies the override specs in order. Each entry is validated
// before anything destructive happens for it: the scenario must be
// declared, the table must exist in the scenario's schema, and the name
// must not already denote an override artifact. The source file is then
// materialized as <table>_override and schema-checked against the base
// table; on mismatch the artifact is dropped before the error surfaces.
//
// Entries applied before a failing entry stay applied.
func (m *Manager) Install(ctx context.Context, specs []Spec) error {
	for _, spec := range specs {
		if err := m.installOne(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) installOne(ctx context.Context, spec Spec) error {
	if !m.Config.HasScenario(spec.Scenario) {
		return &UnknownScenarioError{Scenario: spec.Scenario, Known: m.Config.ScenarioNames()}
	}
	if strings.HasSuffix(spec.TableName, Suffix) {
		return fmt.Errorf("%w: %s", ErrOverrideOfOverride, spec.TableName)
	}
	if err := identifier.Check(spec.TableName); err != nil {
		return err
	}
	ok, err := m.Store.HasTable(ctx, spec.Scenario, spec.TableName)
	if err != nil {
		return err
	}
	if !ok {
		return &UnknownTableError{Scenario: spec.Scenario, Table: spec.TableName}
	}

	overrideTable := spec.TableName + Suffix
	if err := m.Store.CreateTableFromFile(ctx, spec.Scenario, overrideTable, spec.SourceFile); err != nil {
		return err
	}
	if err := m.checkSchemas(ctx, spec.Scenario, spec.TableName, overrideTable); err != nil {
		return err
	}
	if err := m.writeModelFile(spec.Scenario, spec.TableName); err != nil {
		return err
	}
	m.Overrides.Tables = append(m.Overrides.Tables, config.TableOverride{
		Scenario:  spec.Scenario,
		TableName: spec.TableName,
	})
	m.logger().Info("installed table override",
		"scenario", spec.Scenario,
		"table", spec.TableName,
		"source", spec.SourceFile,
	)
	return nil
}

// checkSchemas compares the override artifact's schema against the base
// table's: column names and declared types must match as sets,
// independent of column order. On mismatch the artifact is dropped
// before the error is returned, so a rejected override leaves no new
// table behind.
func (m *Manager) checkSchemas(ctx context.Context, scenario, baseTable, overrideTable string) error {
	base, err := m.Store.ColumnTypes(ctx, scenario, baseTable)
	if err != nil {
		return err
	}
	over, err := m.Store.ColumnTypes(ctx, scenario, overrideTable)
	if err != nil {
		return err
	}
	sortColumns(base)
	sortColumns(over)
	if columnsEqual(base, over) {
		return nil
	}
	if dropErr := m.Store.DropTable(ctx, scenario, overrideTable); dropErr != nil {
		return fmt.Errorf("drop mismatched override artifact: %w", dropErr)
	}
	return &SchemaMismatchError{
		Scenario:        scenario,
		Table:           baseTable,
		BaseColumns:     base,
		OverrideColumns: over,
	}
}

// Remove deactivates the named overrides. All entries are validated
// first (normalization, active check, in-call duplicate check); the
// destructive pass then drops artifacts and list entries in reverse
// index order so that list-index invalidation from earlier removals
// cannot corrupt later lookups.
func (m *Manager) Remove(ctx context.Context, refs []Ref) error {
	seen := make(map[Ref]struct{}, len(refs))
	indices := make([]int, 0, len(refs))
	for _, ref := range refs {
		base := Ref{Scenario: ref.Scenario, TableName: strings.TrimSuffix(ref.TableName, Suffix)}
		if _, dup := seen[base]; dup {
			return &DuplicateRemovalError{Scenario: base.Scenario, Table: base.TableName}
		}
		seen[base] = struct{}{}
		idx := m.Overrides.Index(base.Scenario, base.TableName)
		if idx < 0 {
			return &NotActiveError{Scenario: base.Scenario, Table: base.TableName}
		}
		indices = append(indices, idx)
	}

	sort.Sort(sort.Reverse(sort.IntSlice(indices)))
	for _, idx := range indices {
		entry := m.Overrides.Tables[idx]
		if err := m.Store.DropTable(ctx, entry.Scenario, entry.TableName+Suffix); err != nil {
			return err
		}
		modelFile := m.modelFilePath(entry.TableName)
		if err := os.Remove(modelFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove override model %s: %w", modelFile, err)
		}
		m.Overrides.Tables = append(m.Overrides.Tables[:idx], m.Overrides.Tables[idx+1:]...)
		m.logger().Info("removed table override",
			"scenario", entry.Scenario,
			"table", entry.TableName,
		)
	}
	return nil
}

func (m *Manager) modelFilePath(table string) string {
	return filepath.Join(m.ModelsDir, table+Suffix+".sql")
}

// writeModelFile emits the transformation model that routes the
// scenario's build through the override table.
func (m *Manager) writeModelFile(scenario, table string) error {
	path := m.modelFilePath(table)
	body := "SELECT * FROM " + identifier.QuoteQualified(scenario, table+Suffix) + "\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write override model %s: %w", path, err)
	}
	return nil
}

func sortColumns(cols []store.Column) {
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
}

func columnsEqual(a, b []store.Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
