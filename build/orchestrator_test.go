package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/demandcast/demandcast-go/config"
	"github.com/demandcast/demandcast-go/facttable"
	"github.com/demandcast/demandcast-go/store"
	"github.com/demandcast/demandcast-go/transform"
)

func testConfig() *config.ProjectConfig {
	return &config.ProjectConfig{
		ProjectID: "test",
		Country:   "country_1",
		StartYear: 2025,
		EndYear:   2030,
		Scenarios: []config.Scenario{{Name: "baseline"}, {Name: "high_growth"}},
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("", store.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// tableRunner simulates the external transformation runner by writing a
// small calculated energy_projection table into the scenario schema.
// The override mapping shifts values so tests can observe whether a run
// saw its overrides.
type tableRunner struct {
	s     *store.Store
	runs  []transform.Params
	fail  string // scenario name that should fail, if any
	panic string // scenario name that should panic, if any
}

func (r *tableRunner) Run(ctx context.Context, p transform.Params) error {
	r.runs = append(r.runs, p)
	if p.Scenario == r.fail {
		return &transform.RunError{Scenario: p.Scenario, Output: "model error", Err: errors.New("exit status 2")}
	}
	if p.Scenario == r.panic {
		panic("runner crashed")
	}
	offset := 0.0
	if len(p.Overrides) > 0 {
		offset = 100.0
	}
	if err := r.s.CreateSchema(ctx, p.Scenario); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`CREATE OR REPLACE TABLE %s.energy_projection AS
		SELECT * FROM (VALUES
			(TIMESTAMPTZ '2025-01-01 00:00:00+00', 2025, '%s', 'residential', 'country_1', 'cooling', %f),
			(TIMESTAMPTZ '2025-01-01 01:00:00+00', 2025, '%s', 'commercial', 'country_1', 'lighting', %f)
		) v(timestamp, model_year, scenario, sector, geography, metric, value)`,
		p.Scenario, p.Scenario, 1.5+offset, p.Scenario, 2.5+offset)
	return r.s.Exec(ctx, stmt)
}

func factRows(t *testing.T, s *store.Store) map[string]int {
	t.Helper()
	rows, err := s.Query(context.Background(),
		"SELECT scenario, count(*) FROM "+facttable.Name+" GROUP BY scenario")
	if err != nil {
		t.Fatalf("query fact table: %v", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var scenario string
		var n int
		if err := rows.Scan(&scenario, &n); err != nil {
			t.Fatal(err)
		}
		out[scenario] = n
	}
	return out
}

func TestRebuildUnionsAllScenarios(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	runner := &tableRunner{s: s}
	o := &Orchestrator{Store: s, Config: testConfig(), Overrides: &config.TableOverrides{}, Runner: runner}

	manifest, err := o.Rebuild(ctx, false)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	got := factRows(t, s)
	want := map[string]int{"baseline": 2, "high_growth": 2}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("fact rows = %v, want %v", got, want)
	}
	if len(manifest.Scenarios) != 2 || manifest.Scenarios[0].Name != "baseline" {
		t.Errorf("manifest scenarios = %+v", manifest.Scenarios)
	}
	if manifest.Scenarios[0].Rows != 2 {
		t.Errorf("manifest rows = %d, want 2", manifest.Scenarios[0].Rows)
	}
	// Scenarios ran in declared order.
	if runner.runs[0].Scenario != "baseline" || runner.runs[1].Scenario != "high_growth" {
		t.Errorf("run order = %v", runner.runs)
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	runner := &tableRunner{s: s}
	o := &Orchestrator{Store: s, Config: testConfig(), Overrides: &config.TableOverrides{}, Runner: runner}

	if _, err := o.Rebuild(ctx, true); err != nil {
		t.Fatal(err)
	}
	first := factRows(t, s)
	if _, err := o.Rebuild(ctx, true); err != nil {
		t.Fatal(err)
	}
	second := factRows(t, s)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second rebuild changed fact table: %v != %v", first, second)
	}
	// No duplicated rows: the first scenario replaced the table.
	if first["baseline"] != 2 {
		t.Errorf("baseline rows = %d, want 2", first["baseline"])
	}
}

func TestRebuildPassesOverrides(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	runner := &tableRunner{s: s}
	overrides := &config.TableOverrides{Tables: []config.TableOverride{
		{Scenario: "baseline", TableName: "res_load_shapes"},
	}}
	o := &Orchestrator{Store: s, Config: testConfig(), Overrides: overrides, Runner: runner}

	if _, err := o.Rebuild(ctx, true); err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"res_load_shapes": "res_load_shapes_override"}
	if !reflect.DeepEqual(runner.runs[0].Overrides, want) {
		t.Errorf("baseline overrides = %v, want %v", runner.runs[0].Overrides, want)
	}
	if len(runner.runs[1].Overrides) != 0 {
		t.Errorf("high_growth overrides = %v, want none", runner.runs[1].Overrides)
	}

	// useOverrides=false hands every run an empty set.
	runner.runs = nil
	if _, err := o.Rebuild(ctx, false); err != nil {
		t.Fatal(err)
	}
	for _, run := range runner.runs {
		if len(run.Overrides) != 0 {
			t.Errorf("run %s saw overrides %v with useOverrides=false", run.Scenario, run.Overrides)
		}
	}
}

func TestRebuildHaltsOnRunnerFailure(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	runner := &tableRunner{s: s, fail: "high_growth"}
	o := &Orchestrator{Store: s, Config: testConfig(), Overrides: &config.TableOverrides{}, Runner: runner}

	_, err := o.Rebuild(ctx, false)
	var runErr *transform.RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("Rebuild error = %v, want *transform.RunError", err)
	}
	if runErr.Scenario != "high_growth" || runErr.Output != "model error" {
		t.Errorf("RunError = %+v", runErr)
	}
	// Partial state is observable: only the first scenario is present.
	got := factRows(t, s)
	if !reflect.DeepEqual(got, map[string]int{"baseline": 2}) {
		t.Errorf("fact rows after failure = %v, want baseline only", got)
	}
}

func TestRebuildRecoversRunnerPanic(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	runner := &tableRunner{s: s, panic: "baseline"}
	o := &Orchestrator{Store: s, Config: testConfig(), Overrides: &config.TableOverrides{}, Runner: runner}

	_, err := o.Rebuild(ctx, false)
	if err == nil {
		t.Fatal("Rebuild should surface the runner panic as an error")
	}
}

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestFile)
	m := &Manifest{
		UseOverrides: true,
		Scenarios: []ScenarioBuild{
			{Name: "baseline", Overrides: []string{"res_load_shapes"}, Rows: 17520},
			{Name: "high_growth", Rows: 17520},
		},
	}
	if err := WriteManifest(m, path); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	got, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if !reflect.DeepEqual(m, got) {
		t.Errorf("manifest round trip: %+v != %+v", m, got)
	}
}
