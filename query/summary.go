package query

import (
	"context"

	"github.com/demandcast/demandcast-go/facttable"
)

// Summary holds headline figures for one scenario and model year.
type Summary struct {
	Scenario string

	ModelYear int

	// TotalConsumption is the summed annual energy in MWh.
	TotalConsumption float64

	// PeakDemand is the maximum instantaneous system total in MW.
	PeakDemand float64

	// GrowthPercent is the consumption change relative to the earliest
	// model year in the fact table. Zero for the earliest year itself
	// or when its consumption is zero.
	GrowthPercent float64
}

func (s *Summary) result() *Result {
	return &Result{
		Columns: []string{"scenario", "model_year", "total_consumption", "peak_demand", "growth_percent"},
		Rows: [][]any{{
			s.Scenario, int64(s.ModelYear), s.TotalConsumption, s.PeakDemand, s.GrowthPercent,
		}},
	}
}

// ScenarioSummary computes the headline figures for one scenario and
// model year.
func (c *Compiler) ScenarioSummary(ctx context.Context, scenario string, year int) (*Summary, error) {
	if _, err := c.resolveScenarios(ctx, []string{scenario}); err != nil {
		return nil, err
	}
	years, err := c.resolveYears(ctx, []int{year})
	if err != nil {
		return nil, err
	}
	known, err := c.Cache.Years(ctx)
	if err != nil {
		return nil, err
	}
	baseYear := known[0]

	total, err := c.annualConsumption(ctx, scenario, years[0])
	if err != nil {
		return nil, err
	}
	peak, err := c.scalar(ctx,
		"SELECT COALESCE(MAX(total), 0) FROM ("+
			"SELECT SUM(value) AS total FROM "+facttable.Name+
			" WHERE geography = ? AND scenario = ? AND model_year = ?"+
			" GROUP BY timestamp)",
		[]any{c.Config.Country, scenario, year})
	if err != nil {
		return nil, err
	}

	growth := 0.0
	if year != baseYear {
		base, err := c.annualConsumption(ctx, scenario, baseYear)
		if err != nil {
			return nil, err
		}
		if base != 0 {
			growth = (total/base - 1) * 100
		}
	}
	return &Summary{
		Scenario:         scenario,
		ModelYear:        year,
		TotalConsumption: total,
		PeakDemand:       peak,
		GrowthPercent:    growth,
	}, nil
}

func (c *Compiler) annualConsumption(ctx context.Context, scenario string, year int) (float64, error) {
	return c.scalar(ctx,
		"SELECT COALESCE(SUM(value), 0) FROM "+facttable.Name+
			" WHERE geography = ? AND scenario = ? AND model_year = ?",
		[]any{c.Config.Country, scenario, year})
}
