package demandcast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/demandcast/demandcast-go/build"
	"github.com/demandcast/demandcast-go/config"
	"github.com/demandcast/demandcast-go/override"
	"github.com/demandcast/demandcast-go/query"
	"github.com/demandcast/demandcast-go/store"
	"github.com/demandcast/demandcast-go/transform"
)

// projectRunner simulates the external transformation runner. It
// writes a two-row calculated energy_projection table per scenario,
// shifting values by 100 when the run sees overrides so tests can
// observe override-aware rebuilds.
type projectRunner struct {
	s    *store.Store
	runs []transform.Params
}

func (r *projectRunner) Run(ctx context.Context, p transform.Params) error {
	r.runs = append(r.runs, p)
	offset := 0.0
	if len(p.Overrides) > 0 {
		offset = 100.0
	}
	if err := r.s.CreateSchema(ctx, p.Scenario); err != nil {
		return err
	}
	create := fmt.Sprintf(`CREATE OR REPLACE TABLE %s.energy_projection (
		timestamp TIMESTAMPTZ, model_year BIGINT, scenario VARCHAR,
		sector VARCHAR, geography VARCHAR, metric VARCHAR, value DOUBLE)`, p.Scenario)
	if err := r.s.Exec(ctx, create); err != nil {
		return err
	}
	insert := fmt.Sprintf(`INSERT INTO %s.energy_projection VALUES
		(TIMESTAMPTZ '2025-01-01 00:00:00+00', 2025, '%s', 'residential', 'country_1', 'cooling', %f),
		(TIMESTAMPTZ '2025-01-01 01:00:00+00', 2025, '%s', 'commercial', 'country_1', 'lighting', %f)`,
		p.Scenario, p.Scenario, 1.5+offset, p.Scenario, 2.5+offset)
	return r.s.Exec(ctx, insert)
}

func newProjectDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.ProjectConfig{
		ProjectID: "test",
		Country:   "country_1",
		StartYear: 2025,
		EndYear:   2030,
		Scenarios: []config.Scenario{{Name: "baseline"}, {Name: "high_growth"}},
	}
	if err := cfg.Save(filepath.Join(dir, config.ConfigFile)); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"registry_data", filepath.FromSlash(ModelsDir)} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	s, err := store.Open(filepath.Join(dir, filepath.FromSlash(StorePath)), store.Options{})
	if err != nil {
		t.Fatal(err)
	}
	// Force creation of the database file.
	rows, err := s.Query(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatal(err)
	}
	rows.Close()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	return dir
}

func newTestProject(t *testing.T) (*Project, *projectRunner) {
	t.Helper()
	dir := newProjectDir(t)
	runner := &projectRunner{}
	p, err := Load(dir, Options{Runner: runner})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	runner.s = p.Store()
	return p, runner
}

func annualTotal(t *testing.T, p *Project, scenario string) float64 {
	t.Helper()
	res, err := p.Query().AnnualTotal(context.Background(), query.AnnualRequest{
		Scenarios: []string{scenario},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("rows = %v", res.Rows)
	}
	return res.Rows[0][2].(float64)
}

func TestLoadNotAProject(t *testing.T) {
	if _, err := Load(t.TempDir(), Options{}); !errors.Is(err, ErrNotAProject) {
		t.Fatalf("Load = %v, want ErrNotAProject", err)
	}

	// A config alone is not enough: the store must exist too.
	dir := t.TempDir()
	cfg := &config.ProjectConfig{ProjectID: "x", Country: "c", StartYear: 2025, EndYear: 2030,
		Scenarios: []config.Scenario{{Name: "baseline"}}}
	if err := cfg.Save(filepath.Join(dir, config.ConfigFile)); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir, Options{}); !errors.Is(err, ErrNotAProject) {
		t.Fatalf("Load = %v, want ErrNotAProject", err)
	}
}

func TestLoadAccessors(t *testing.T) {
	p, _ := newTestProject(t)
	names := p.ListScenarioNames()
	if len(names) != 2 || names[0] != "baseline" || names[1] != "high_growth" {
		t.Errorf("ListScenarioNames = %v", names)
	}
	if p.Config().Country != "country_1" {
		t.Errorf("Country = %q", p.Config().Country)
	}
	if p.LastRebuild() != nil {
		t.Error("LastRebuild should be nil before any rebuild")
	}
}

func TestListCalculatedTables(t *testing.T) {
	p, _ := newTestProject(t)
	modelsDir := filepath.Join(p.dir, filepath.FromSlash(ModelsDir))
	for _, name := range []string{"energy_projection.sql", "res_load_shapes.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(modelsDir, name), []byte("SELECT 1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	names, err := p.ListCalculatedTables()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "energy_projection" || names[1] != "res_load_shapes" {
		t.Errorf("ListCalculatedTables = %v", names)
	}
}

func TestRebuild(t *testing.T) {
	p, runner := newTestProject(t)
	ctx := context.Background()

	m, err := p.Rebuild(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Scenarios) != 2 || len(runner.runs) != 2 {
		t.Fatalf("manifest scenarios = %v, runs = %d", m.Scenarios, len(runner.runs))
	}
	if got := annualTotal(t, p, "baseline"); math.Abs(got-4.0) > 1e-9 {
		t.Errorf("baseline total = %v, want 4", got)
	}
	if p.LastRebuild() != m {
		t.Error("LastRebuild not updated")
	}

	// The manifest survives a reload.
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	reloaded, err := Load(p.dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer reloaded.Close()
	last := reloaded.LastRebuild()
	if last == nil || len(last.Scenarios) != 2 {
		t.Fatalf("reloaded LastRebuild = %+v", last)
	}
	if _, err := os.Stat(filepath.Join(p.dir, build.ManifestFile)); err != nil {
		t.Errorf("manifest file: %v", err)
	}
}

func TestRebuildRequiresRunner(t *testing.T) {
	dir := newProjectDir(t)
	p, err := Load(dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if _, err := p.Rebuild(context.Background(), false); !errors.Is(err, ErrNoRunner) {
		t.Fatalf("Rebuild = %v, want ErrNoRunner", err)
	}
}

func TestReadOnlyProject(t *testing.T) {
	dir := newProjectDir(t)
	p, err := Load(dir, Options{ReadOnly: true, Runner: &projectRunner{}})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	ctx := context.Background()
	if _, err := p.Rebuild(ctx, false); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Rebuild = %v, want ErrReadOnly", err)
	}
	if err := p.OverrideCalculatedTables(ctx, nil); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("OverrideCalculatedTables = %v, want ErrReadOnly", err)
	}
	if err := p.RemoveTableOverrides(ctx, nil); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("RemoveTableOverrides = %v, want ErrReadOnly", err)
	}
}

func TestFactTable(t *testing.T) {
	p, _ := newTestProject(t)
	ctx := context.Background()
	if _, err := p.Rebuild(ctx, false); err != nil {
		t.Fatal(err)
	}

	countRows := func(scenario string) int {
		rows, err := p.FactTable(ctx, scenario)
		if err != nil {
			t.Fatal(err)
		}
		defer rows.Close()
		n := 0
		for rows.Next() {
			n++
		}
		return n
	}
	if n := countRows(""); n != 4 {
		t.Errorf("all rows = %d, want 4", n)
	}
	if n := countRows("baseline"); n != 2 {
		t.Errorf("baseline rows = %d, want 2", n)
	}
	if _, err := p.FactTable(ctx, "nope"); err == nil {
		t.Error("FactTable should reject an unknown scenario")
	}
}

func TestExportCalculatedTable(t *testing.T) {
	p, _ := newTestProject(t)
	ctx := context.Background()
	if _, err := p.Rebuild(ctx, false); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "baseline.csv")
	if err := p.ExportCalculatedTable(ctx, "baseline", "energy_projection", out, false); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("export file: %v", err)
	}

	err := p.ExportCalculatedTable(ctx, "baseline", "missing", out, true)
	var unknown *override.UnknownTableError
	if !errors.As(err, &unknown) {
		t.Fatalf("ExportCalculatedTable = %v, want *UnknownTableError", err)
	}
}

func TestOverrideLifecycle(t *testing.T) {
	p, _ := newTestProject(t)
	ctx := context.Background()
	if _, err := p.Rebuild(ctx, false); err != nil {
		t.Fatal(err)
	}
	before := annualTotal(t, p, "baseline")

	src := filepath.Join(t.TempDir(), "override.csv")
	csv := "timestamp,model_year,scenario,sector,geography,metric,value\n" +
		"2025-01-01 00:00:00+00,2025,baseline,residential,country_1,cooling,50.0\n"
	if err := os.WriteFile(src, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	err := p.OverrideCalculatedTables(ctx, []override.Spec{
		{Scenario: "baseline", TableName: "energy_projection", SourceFile: src},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := annualTotal(t, p, "baseline"); math.Abs(got-before) < 1e-9 {
		t.Error("override rebuild left results unchanged")
	}
	active := p.ActiveOverrides()
	if len(active) != 1 || active[0].TableName != "energy_projection" {
		t.Errorf("ActiveOverrides = %+v", active)
	}
	persisted, err := config.LoadOverrides(filepath.Join(p.dir, config.OverridesFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted.Tables) != 1 {
		t.Errorf("persisted overrides = %+v", persisted.Tables)
	}

	// Removing the override restores the original results.
	err = p.RemoveTableOverrides(ctx, []override.Ref{
		{Scenario: "baseline", TableName: "energy_projection"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := annualTotal(t, p, "baseline"); math.Abs(got-before) > 1e-9 {
		t.Errorf("total after remove = %v, want %v", got, before)
	}
	persisted, err = config.LoadOverrides(filepath.Join(p.dir, config.OverridesFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted.Tables) != 0 {
		t.Errorf("persisted overrides after remove = %+v", persisted.Tables)
	}
}

func TestOverrideBatchFailurePersistsApplied(t *testing.T) {
	p, _ := newTestProject(t)
	ctx := context.Background()
	if _, err := p.Rebuild(ctx, false); err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(t.TempDir(), "override.csv")
	csv := "timestamp,model_year,scenario,sector,geography,metric,value\n" +
		"2025-01-01 00:00:00+00,2025,baseline,residential,country_1,cooling,50.0\n"
	if err := os.WriteFile(src, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	err := p.OverrideCalculatedTables(ctx, []override.Spec{
		{Scenario: "baseline", TableName: "energy_projection", SourceFile: src},
		{Scenario: "nope", TableName: "energy_projection", SourceFile: src},
	})
	var unknown *override.UnknownScenarioError
	if !errors.As(err, &unknown) {
		t.Fatalf("OverrideCalculatedTables = %v, want *UnknownScenarioError", err)
	}
	// The applied first entry is persisted even though no rebuild ran.
	persisted, err := config.LoadOverrides(filepath.Join(p.dir, config.OverridesFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(persisted.Tables) != 1 {
		t.Errorf("persisted overrides = %+v", persisted.Tables)
	}
}
