package query

import (
	"context"
	"fmt"

	"github.com/demandcast/demandcast-go/facttable"
)

// TimeSeriesComparison returns a daily or weekly demand profile for
// one scenario across model years: the average over each period of the
// per-timestamp system total. Demand is intensive, so the partial week
// at the year end is averaged over the hours it has, never rescaled.
//
// Columns: [sector|end_use,] model_year, period, value. Daily periods
// are day-of-year starting at 1; weekly periods are week numbers
// starting at 1 on the Monday-anchored grid. Rows are ordered by
// model_year, then period, then breakdown value.
func (c *Compiler) TimeSeriesComparison(ctx context.Context, req TimeSeriesRequest) (*Result, error) {
	if _, err := c.resolveScenarios(ctx, []string{req.Scenario}); err != nil {
		return nil, err
	}
	years, err := c.resolveYears(ctx, req.Years)
	if err != nil {
		return nil, err
	}
	if req.Resample == "" {
		req.Resample = ResampleDaily
	}
	var periodExpr string
	switch req.Resample {
	case ResampleDaily:
		periodExpr = "dayofyear(timestamp)"
	case ResampleWeekly:
		periodExpr = "(" + hourOfYearExpr + " // 168 + 1)"
	default:
		return nil, fmt.Errorf("unknown resample %q", string(req.Resample))
	}

	sel := ""
	order := "model_year, period"
	var cols []string
	if req.Breakdown != BreakdownNone {
		col, err := req.Breakdown.column()
		if err != nil {
			return nil, err
		}
		sel = col + ", "
		order += ", " + col
		cols = append(cols, string(req.Breakdown))
	}
	cols = append(cols, "model_year", "period", "value")

	q := "WITH totals AS (" +
		"SELECT " + sel + "model_year, " + periodExpr + " AS period, timestamp, SUM(value) AS total" +
		" FROM " + facttable.Name +
		" WHERE geography = ? AND scenario = ? AND model_year IN (" + placeholders(len(years)) + ")" +
		" GROUP BY ALL)" +
		" SELECT " + sel + "model_year, period, AVG(total) AS value" +
		" FROM totals GROUP BY ALL ORDER BY " + order

	args := make([]any, 0, 2+len(years))
	args = append(args, c.Config.Country, req.Scenario)
	for _, y := range years {
		args = append(args, y)
	}
	data, err := c.run(ctx, q, args)
	if err != nil {
		return nil, err
	}
	return &Result{Columns: cols, Rows: data}, nil
}

// SeasonalProfile returns an hourly demand shape for one scenario
// across model years, grouped by season, day type or both. The chosen
// statistic aggregates the per-timestamp system totals within each
// (group, model_year, hour_of_day) cell.
//
// Columns: [season,] [day_type,] model_year, hour_of_day, value.
// Seasons are ordered winter, spring, summer, fall; hours 0..23.
func (c *Compiler) SeasonalProfile(ctx context.Context, req ProfileRequest) (*Result, error) {
	if _, err := c.resolveScenarios(ctx, []string{req.Scenario}); err != nil {
		return nil, err
	}
	years, err := c.resolveYears(ctx, req.Years)
	if err != nil {
		return nil, err
	}
	if req.Grouping == "" {
		req.Grouping = GroupingSeasonal
	}
	if req.Statistic == "" {
		req.Statistic = StatisticAverage
	}
	agg, err := req.Statistic.aggregate()
	if err != nil {
		return nil, err
	}

	var groupCols []string
	switch req.Grouping {
	case GroupingSeasonal:
		groupCols = []string{"season"}
	case GroupingDayType:
		groupCols = []string{"day_type"}
	case GroupingSeasonalDayType:
		groupCols = []string{"season", "day_type"}
	default:
		return nil, fmt.Errorf("unknown grouping %q", string(req.Grouping))
	}

	sel := ""
	order := ""
	for _, col := range groupCols {
		sel += col + ", "
		if col == "season" {
			order += seasonRankExpr + ", "
		} else {
			order += col + ", "
		}
	}
	order += "model_year, hour_of_day"

	q := "WITH totals AS (" +
		"SELECT model_year, " + seasonExpr + " AS season, " + dayTypeExpr + " AS day_type," +
		" hour(timestamp) AS hour_of_day, timestamp, SUM(value) AS total" +
		" FROM " + facttable.Name +
		" WHERE geography = ? AND scenario = ? AND model_year IN (" + placeholders(len(years)) + ")" +
		" GROUP BY ALL)" +
		" SELECT " + sel + "model_year, hour_of_day, " + agg + "(total) AS value" +
		" FROM totals GROUP BY ALL ORDER BY " + order

	args := make([]any, 0, 2+len(years))
	args = append(args, c.Config.Country, req.Scenario)
	for _, y := range years {
		args = append(args, y)
	}
	data, err := c.run(ctx, q, args)
	if err != nil {
		return nil, err
	}
	cols := append(append([]string{}, groupCols...), "model_year", "hour_of_day", "value")
	return &Result{Columns: cols, Rows: data}, nil
}
