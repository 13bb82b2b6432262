package query

// Calendar expressions over the fact table's timestamp column. The
// weather year is treated as non-leap: day-of-year cutpoints are fixed
// calendar days, and the week grid is anchored to the first hour of
// the series, assumed to fall on a Monday. That alignment must be
// validated per deployment.

// hourOfYearExpr is the zero-based hour index within the weather year.
const hourOfYearExpr = "((dayofyear(timestamp) - 1) * 24 + hour(timestamp))"

// seasonExpr buckets a timestamp by day-of-year cutpoints. Day 79
// (Mar 20) is the first spring day; day 78 is still winter. Winter
// wraps around the year end.
const seasonExpr = "CASE " +
	"WHEN dayofyear(timestamp) >= 79 AND dayofyear(timestamp) < 172 THEN 'spring' " +
	"WHEN dayofyear(timestamp) >= 172 AND dayofyear(timestamp) < 265 THEN 'summer' " +
	"WHEN dayofyear(timestamp) >= 265 AND dayofyear(timestamp) < 355 THEN 'fall' " +
	"ELSE 'winter' END"

// dayTypeExpr classifies a timestamp as weekday or weekend. Hour 120
// of each 168-hour week is Saturday 00:00 on the Monday-anchored grid.
const dayTypeExpr = "CASE WHEN " + hourOfYearExpr + " % 168 >= 120 THEN 'weekend' ELSE 'weekday' END"

// seasonRankExpr orders seasons chronologically from the year start
// instead of alphabetically.
const seasonRankExpr = "CASE season WHEN 'winter' THEN 0 WHEN 'spring' THEN 1 WHEN 'summer' THEN 2 ELSE 3 END"
