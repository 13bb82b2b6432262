// Package query compiles analytical requests against the unified
// energy_projection fact table into parameter-bound SQL and tabular
// results. All value filters use bound parameters; the only
// identifiers assembled into SQL text are the fixed fact-table column
// names selected by the breakdown allowlist.
//
// The compiler is read-only and safe for concurrent use against a
// store opened in read-only mode. It must not run against a store
// mid-rebuild: partial rebuild state is observable.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/demandcast/demandcast-go/config"
	"github.com/demandcast/demandcast-go/facttable"
	"github.com/demandcast/demandcast-go/meta"
	"github.com/demandcast/demandcast-go/store"
)

// Compiler executes analytical queries over the fact table.
type Compiler struct {
	// Store is the analytical store holding the fact table. REQUIRED.
	Store *store.Store

	// Cache supplies the known scenario and model-year sets used for
	// request validation and defaults. REQUIRED.
	Cache *meta.Cache

	// Config supplies the declared scenario order and the project
	// geography. REQUIRED.
	Config *config.ProjectConfig

	// Logger receives query diagnostics. OPTIONAL.
	Logger *slog.Logger
}

func (c *Compiler) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// resolveScenarios applies the all-known default and validates an
// explicit filter. The returned list follows the declared project
// order regardless of request order.
func (c *Compiler) resolveScenarios(ctx context.Context, requested []string) ([]string, error) {
	known, err := c.Cache.Scenarios(ctx)
	if err != nil {
		return nil, err
	}
	if len(requested) == 0 {
		return known, nil
	}
	knownSet := make(map[string]bool, len(known))
	for _, s := range known {
		knownSet[s] = true
	}
	var invalid []string
	reqSet := make(map[string]bool, len(requested))
	for _, s := range requested {
		if !knownSet[s] {
			invalid = append(invalid, s)
		}
		reqSet[s] = true
	}
	if len(invalid) > 0 {
		return nil, &InvalidScenariosError{Invalid: invalid, Valid: known}
	}
	out := make([]string, 0, len(reqSet))
	for _, s := range known {
		if reqSet[s] {
			out = append(out, s)
		}
	}
	return out, nil
}

// resolveYears applies the all-known default and validates an explicit
// filter. The returned list is ascending.
func (c *Compiler) resolveYears(ctx context.Context, requested []int) ([]int, error) {
	known, err := c.Cache.Years(ctx)
	if err != nil {
		return nil, err
	}
	if len(requested) == 0 {
		return known, nil
	}
	knownSet := make(map[int]bool, len(known))
	for _, y := range known {
		knownSet[y] = true
	}
	var invalid []int
	reqSet := make(map[int]bool, len(requested))
	for _, y := range requested {
		if !knownSet[y] {
			invalid = append(invalid, y)
		}
		reqSet[y] = true
	}
	if len(invalid) > 0 {
		return nil, &InvalidYearsError{Invalid: invalid, Valid: known}
	}
	out := make([]int, 0, len(reqSet))
	for _, y := range known {
		if reqSet[y] {
			out = append(out, y)
		}
	}
	return out, nil
}

// factFilter builds the shared WHERE fragment over geography, scenario
// and model_year, all bound.
func (c *Compiler) factFilter(scenarios []string, years []int) (string, []any) {
	clause := "geography = ? AND scenario IN (" + placeholders(len(scenarios)) +
		") AND model_year IN (" + placeholders(len(years)) + ")"
	args := make([]any, 0, 1+len(scenarios)+len(years))
	args = append(args, c.Config.Country)
	for _, s := range scenarios {
		args = append(args, s)
	}
	for _, y := range years {
		args = append(args, y)
	}
	return clause, args
}

// AnnualTotal returns the summed consumption per scenario and model
// year, optionally broken down by sector or end use.
//
// Columns: scenario, model_year[, sector|end_use], value. Rows come in
// declared scenario order, then year ascending, then breakdown value
// ascending.
func (c *Compiler) AnnualTotal(ctx context.Context, req AnnualRequest) (*Result, error) {
	scenarios, err := c.resolveScenarios(ctx, req.Scenarios)
	if err != nil {
		return nil, err
	}
	years, err := c.resolveYears(ctx, req.Years)
	if err != nil {
		return nil, err
	}

	sel := "scenario, model_year"
	cols := []string{"scenario", "model_year"}
	if req.Breakdown != BreakdownNone {
		col, err := req.Breakdown.column()
		if err != nil {
			return nil, err
		}
		sel += ", " + col
		cols = append(cols, string(req.Breakdown))
	}
	filter, args := c.factFilter(scenarios, years)
	q := "SELECT " + sel + ", SUM(value) AS value FROM " + facttable.Name +
		" WHERE " + filter + " GROUP BY " + sel

	data, err := c.run(ctx, q, args)
	if err != nil {
		return nil, err
	}
	c.orderAnnual(data, req.Breakdown != BreakdownNone)
	return &Result{Columns: append(cols, "value"), Rows: data}, nil
}

// AnnualPeak returns the peak system demand per scenario and model
// year: the maximum over timestamps of the instantaneous total across
// all rows. Ties are broken by the earliest timestamp. With a
// breakdown, the per-slice values are taken at that peak timestamp,
// not as independent per-slice peaks, so they sum to the system peak.
//
// Columns: scenario, model_year[, sector|end_use], value. Row order
// matches AnnualTotal.
func (c *Compiler) AnnualPeak(ctx context.Context, req AnnualRequest) (*Result, error) {
	scenarios, err := c.resolveScenarios(ctx, req.Scenarios)
	if err != nil {
		return nil, err
	}
	years, err := c.resolveYears(ctx, req.Years)
	if err != nil {
		return nil, err
	}

	filter, args := c.factFilter(scenarios, years)
	ctes := "WITH totals AS (" +
		"SELECT scenario, model_year, timestamp, SUM(value) AS total" +
		" FROM " + facttable.Name + " WHERE " + filter +
		" GROUP BY scenario, model_year, timestamp" +
		"), ranked AS (" +
		"SELECT scenario, model_year, timestamp, total," +
		" row_number() OVER (PARTITION BY scenario, model_year ORDER BY total DESC, timestamp ASC) AS rn" +
		" FROM totals)"

	cols := []string{"scenario", "model_year"}
	var q string
	if req.Breakdown == BreakdownNone {
		q = ctes + " SELECT scenario, model_year, total AS value FROM ranked WHERE rn = 1"
	} else {
		col, err := req.Breakdown.column()
		if err != nil {
			return nil, err
		}
		cols = append(cols, string(req.Breakdown))
		q = ctes + " SELECT r.scenario, r.model_year, f." + col + ", SUM(f.value) AS value" +
			" FROM ranked r JOIN " + facttable.Name + " f" +
			" ON f.scenario = r.scenario AND f.model_year = r.model_year AND f.timestamp = r.timestamp" +
			" WHERE r.rn = 1 AND f.geography = ?" +
			" GROUP BY r.scenario, r.model_year, f." + col
		args = append(args, c.Config.Country)
	}

	data, err := c.run(ctx, q, args)
	if err != nil {
		return nil, err
	}
	c.orderAnnual(data, req.Breakdown != BreakdownNone)
	return &Result{Columns: append(cols, "value"), Rows: data}, nil
}

// orderAnnual sorts rows shaped [scenario, model_year, breakdown?, ...]
// by declared scenario order, then year, then breakdown value.
func (c *Compiler) orderAnnual(rows [][]any, hasBreakdown bool) {
	rank := make(map[string]int, len(c.Config.Scenarios))
	for i, name := range c.Config.ScenarioNames() {
		rank[name] = i
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if ra, rb := rank[a[0].(string)], rank[b[0].(string)]; ra != rb {
			return ra < rb
		}
		if ya, yb := a[1].(int64), b[1].(int64); ya != yb {
			return ya < yb
		}
		if hasBreakdown {
			return a[2].(string) < b[2].(string)
		}
		return false
	})
}

// run executes a compiled statement and scans all rows.
func (c *Compiler) run(ctx context.Context, q string, args []any) ([][]any, error) {
	c.logger().Debug("running query", "sql", q)
	rows, err := c.Store.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// scalar executes a compiled statement expected to yield a single
// value.
func (c *Compiler) scalar(ctx context.Context, q string, args []any) (float64, error) {
	data, err := c.run(ctx, q, args)
	if err != nil {
		return 0, err
	}
	if len(data) != 1 || len(data[0]) != 1 {
		return 0, fmt.Errorf("expected a single value, got %d rows", len(data))
	}
	v, ok := data[0][0].(float64)
	if !ok {
		return 0, fmt.Errorf("expected a float value, got %T", data[0][0])
	}
	return v, nil
}

func scanRows(rows *sql.Rows) ([][]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range vals {
			vals[i] = normalize(v)
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// normalize widens driver integer and float variants so result cells
// carry only string, int64, float64 or nil.
func normalize(v any) any {
	switch x := v.(type) {
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
