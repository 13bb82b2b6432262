package query

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Kind selects the query operation a Request asks for.
type Kind string

const (
	KindAnnualTotal       Kind = "annual_total"
	KindAnnualPeak        Kind = "annual_peak"
	KindLoadDurationCurve Kind = "load_duration_curve"
	KindTimeSeries        Kind = "time_series"
	KindSeasonalProfile   Kind = "seasonal_profile"
	KindScenarioSummary   Kind = "scenario_summary"
)

// Breakdown is an optional grouping dimension applied to an otherwise
// aggregated query.
type Breakdown string

const (
	BreakdownNone   Breakdown = ""
	BreakdownSector Breakdown = "sector"
	BreakdownEndUse Breakdown = "end_use"
)

// column returns the fact-table column the breakdown groups by.
func (b Breakdown) column() (string, error) {
	switch b {
	case BreakdownSector:
		return "sector", nil
	case BreakdownEndUse:
		return "metric", nil
	}
	return "", fmt.Errorf("unknown breakdown %q", string(b))
}

// Resample is the period length of a time-series comparison.
type Resample string

const (
	ResampleDaily  Resample = "daily"
	ResampleWeekly Resample = "weekly"
)

// Grouping selects the dimensions of a seasonal profile.
type Grouping string

const (
	GroupingSeasonal        Grouping = "seasonal"
	GroupingDayType         Grouping = "day_type"
	GroupingSeasonalDayType Grouping = "seasonal_day_type"
)

// Statistic selects how per-timestamp system totals are aggregated
// into a representative profile. Demand is an intensive quantity here:
// every statistic aggregates, none of them sums, and partial periods
// are never rescaled.
type Statistic string

const (
	StatisticAverage    Statistic = "average"
	StatisticPeakDay    Statistic = "peak_day"
	StatisticMinimumDay Statistic = "minimum_day"
	StatisticMedianDay  Statistic = "median_day"
)

// aggregate returns the SQL aggregate the statistic maps to.
func (s Statistic) aggregate() (string, error) {
	switch s {
	case StatisticAverage:
		return "AVG", nil
	case StatisticPeakDay:
		return "MAX", nil
	case StatisticMinimumDay:
		return "MIN", nil
	case StatisticMedianDay:
		return "MEDIAN", nil
	}
	return "", fmt.Errorf("unknown statistic %q", string(s))
}

// AnnualRequest parameterizes AnnualTotal and AnnualPeak. Empty
// Scenarios or Years mean all known.
type AnnualRequest struct {
	Scenarios []string  `msgpack:"scenarios,omitempty"`
	Years     []int     `msgpack:"years,omitempty"`
	Breakdown Breakdown `msgpack:"breakdown,omitempty"`
}

// DurationRequest parameterizes LoadDurationCurve. At most one of
// Scenarios and Years may have more than one member after defaults
// are applied.
type DurationRequest struct {
	Scenarios []string `msgpack:"scenarios,omitempty"`
	Years     []int    `msgpack:"years,omitempty"`
}

// TimeSeriesRequest parameterizes TimeSeriesComparison for one
// scenario across model years.
type TimeSeriesRequest struct {
	Scenario  string    `msgpack:"scenario"`
	Years     []int     `msgpack:"years,omitempty"`
	Breakdown Breakdown `msgpack:"breakdown,omitempty"`
	Resample  Resample  `msgpack:"resample,omitempty"`
}

// ProfileRequest parameterizes SeasonalProfile for one scenario across
// model years.
type ProfileRequest struct {
	Scenario  string    `msgpack:"scenario"`
	Years     []int     `msgpack:"years,omitempty"`
	Grouping  Grouping  `msgpack:"grouping,omitempty"`
	Statistic Statistic `msgpack:"statistic,omitempty"`
}

// Request is the serialized form of a query, used by out-of-process
// callers. Only the fields relevant to Kind are read.
type Request struct {
	Kind      Kind      `msgpack:"kind"`
	Scenarios []string  `msgpack:"scenarios,omitempty"`
	Scenario  string    `msgpack:"scenario,omitempty"`
	Years     []int     `msgpack:"years,omitempty"`
	Year      int       `msgpack:"year,omitempty"`
	Breakdown Breakdown `msgpack:"breakdown,omitempty"`
	Resample  Resample  `msgpack:"resample,omitempty"`
	Grouping  Grouping  `msgpack:"grouping,omitempty"`
	Statistic Statistic `msgpack:"statistic,omitempty"`
}

// DecodeRequest deserializes a MessagePack query request.
func DecodeRequest(data []byte) (*Request, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty request payload")
	}
	var req Request
	if err := msgpack.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}

// EncodeRequest serializes a query request to MessagePack.
func EncodeRequest(req *Request) ([]byte, error) {
	data, err := msgpack.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return data, nil
}

// Run dispatches a decoded request to the matching operation.
// ScenarioSummary results are flattened to a one-row table.
func (c *Compiler) Run(ctx context.Context, req *Request) (*Result, error) {
	switch req.Kind {
	case KindAnnualTotal:
		return c.AnnualTotal(ctx, AnnualRequest{Scenarios: req.Scenarios, Years: req.Years, Breakdown: req.Breakdown})
	case KindAnnualPeak:
		return c.AnnualPeak(ctx, AnnualRequest{Scenarios: req.Scenarios, Years: req.Years, Breakdown: req.Breakdown})
	case KindLoadDurationCurve:
		return c.LoadDurationCurve(ctx, DurationRequest{Scenarios: req.Scenarios, Years: req.Years})
	case KindTimeSeries:
		return c.TimeSeriesComparison(ctx, TimeSeriesRequest{Scenario: req.Scenario, Years: req.Years, Breakdown: req.Breakdown, Resample: req.Resample})
	case KindSeasonalProfile:
		return c.SeasonalProfile(ctx, ProfileRequest{Scenario: req.Scenario, Years: req.Years, Grouping: req.Grouping, Statistic: req.Statistic})
	case KindScenarioSummary:
		s, err := c.ScenarioSummary(ctx, req.Scenario, req.Year)
		if err != nil {
			return nil, err
		}
		return s.result(), nil
	}
	return nil, fmt.Errorf("unknown query kind %q", string(req.Kind))
}
