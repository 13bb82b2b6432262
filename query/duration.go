package query

import (
	"context"
	"sort"
	"strconv"

	"github.com/demandcast/demandcast-go/facttable"
)

// LoadDurationCurve returns per-timestamp system totals pivoted into
// one column per scenario (single year) or per year (single scenario),
// each column independently sorted descending. Exactly one of the two
// dimensions may have more than one member after defaults are applied.
//
// Columns are named by the pivot members, scenarios in declared order
// or years ascending. Row i across columns does not refer to the same
// timestamp: each column's temporal alignment is intentionally
// discarded by the per-column sort. Columns of unequal length are
// padded with nulls.
func (c *Compiler) LoadDurationCurve(ctx context.Context, req DurationRequest) (*Result, error) {
	scenarios, err := c.resolveScenarios(ctx, req.Scenarios)
	if err != nil {
		return nil, err
	}
	years, err := c.resolveYears(ctx, req.Years)
	if err != nil {
		return nil, err
	}
	if len(scenarios) > 1 && len(years) > 1 {
		return nil, ErrConflictingPivotDimensions
	}

	filter, args := c.factFilter(scenarios, years)
	q := "SELECT scenario, model_year, SUM(value) AS total FROM " + facttable.Name +
		" WHERE " + filter + " GROUP BY scenario, model_year, timestamp"
	data, err := c.run(ctx, q, args)
	if err != nil {
		return nil, err
	}

	byYear := len(scenarios) == 1 && len(years) > 1
	var columns []string
	if byYear {
		for _, y := range years {
			columns = append(columns, strconv.Itoa(y))
		}
	} else {
		columns = append(columns, scenarios...)
	}

	curves := make(map[string][]float64, len(columns))
	for _, row := range data {
		var key string
		if byYear {
			key = strconv.FormatInt(row[1].(int64), 10)
		} else {
			key = row[0].(string)
		}
		curves[key] = append(curves[key], row[2].(float64))
	}

	height := 0
	for _, key := range columns {
		curve := curves[key]
		sort.Sort(sort.Reverse(sort.Float64Slice(curve)))
		if len(curve) > height {
			height = len(curve)
		}
	}

	rows := make([][]any, height)
	for i := range rows {
		cells := make([]any, len(columns))
		for j, key := range columns {
			if curve := curves[key]; i < len(curve) {
				cells[j] = curve[i]
			}
		}
		rows[i] = cells
	}
	return &Result{Columns: columns, Rows: rows}, nil
}
