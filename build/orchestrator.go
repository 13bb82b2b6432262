// Package build rebuilds the unified energy_projection fact table from
// per-scenario transformation runs.
//
// A rebuild is strictly sequential: each scenario's transformation run
// shares one underlying store connection, and the append-vs-replace
// decision for the fact table requires the previous scenario's rows to
// be committed first. There is no cancellation beyond the context passed
// to the runner, no retry, and no per-scenario atomicity: a failure
// mid-loop leaves the fact table holding only the scenarios processed so
// far.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/demandcast/demandcast-go/config"
	"github.com/demandcast/demandcast-go/facttable"
	"github.com/demandcast/demandcast-go/internal/recovery"
	"github.com/demandcast/demandcast-go/store"
	"github.com/demandcast/demandcast-go/transform"
)

// Orchestrator drives fact-table rebuilds.
type Orchestrator struct {
	// Store is the read-write store connection.
	// REQUIRED: MUST NOT be nil.
	Store *store.Store

	// Config supplies the scenario order, geography, and model years.
	// REQUIRED: MUST NOT be nil.
	Config *config.ProjectConfig

	// Overrides is the persisted override list consulted when a rebuild
	// runs with overrides enabled.
	// REQUIRED: MUST NOT be nil (an empty list is fine).
	Overrides *config.TableOverrides

	// Runner executes one scenario's transformation.
	// REQUIRED: MUST NOT be nil.
	Runner transform.Runner

	// Logger for rebuild logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Rebuild recomputes every scenario's calculated tables and unions them
// into the fact table, in declared scenario order. The first scenario
// replaces the table; each subsequent scenario appends. When
// useOverrides is false, every run receives an empty override set.
//
// A runner failure halts the rebuild and propagates the
// *transform.RunError unchanged.
func (o *Orchestrator) Rebuild(ctx context.Context, useOverrides bool) (*Manifest, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	manifest := &Manifest{
		StartedAt:    time.Now().UTC(),
		UseOverrides: useOverrides,
	}
	byScenario := map[string][]string{}
	if useOverrides {
		byScenario = o.Overrides.ByScenario()
	}

	for i, scenario := range o.Config.Scenarios {
		overrides := make(map[string]string)
		for _, table := range byScenario[scenario.Name] {
			overrides[table] = table + "_override"
		}

		params := transform.Params{
			Scenario:   scenario.Name,
			Geography:  o.Config.Country,
			ModelYears: o.Config.ModelYears(),
			Overrides:  overrides,
		}
		logger.Info("transform run starting",
			"scenario", scenario.Name,
			"overrides", len(overrides),
		)
		err := recovery.Guard(logger, "transform run", func() error {
			return o.Runner.Run(ctx, params)
		})
		if err != nil {
			return nil, err
		}

		var stmt string
		if i == 0 {
			stmt, err = facttable.CreateFromScenarioSQL(scenario.Name)
		} else {
			stmt, err = facttable.InsertFromScenarioSQL(scenario.Name)
		}
		if err != nil {
			return nil, err
		}
		if err := o.Store.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("union scenario %s into %s: %w", scenario.Name, facttable.Name, err)
		}

		rows, err := o.scenarioRows(ctx, scenario.Name)
		if err != nil {
			return nil, err
		}
		manifest.Scenarios = append(manifest.Scenarios, ScenarioBuild{
			Name:      scenario.Name,
			Overrides: byScenario[scenario.Name],
			Rows:      rows,
		})
		logger.Info("scenario added to fact table", "scenario", scenario.Name, "rows", rows)
	}

	manifest.FinishedAt = time.Now().UTC()
	return manifest, nil
}

func (o *Orchestrator) scenarioRows(ctx context.Context, scenario string) (int64, error) {
	var n int64
	err := o.Store.DB().QueryRowContext(ctx,
		"SELECT count(*) FROM "+facttable.Name+" WHERE scenario = ?", scenario).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rows for scenario %s: %w", scenario, err)
	}
	return n, nil
}
