package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConflictingPivotDimensions is returned by LoadDurationCurve when
// both the scenario and year dimensions have more than one member.
// The curve pivots exactly one dimension into columns.
var ErrConflictingPivotDimensions = errors.New("load duration curve accepts multiple scenarios or multiple years, not both")

// InvalidScenariosError reports requested scenarios that are not
// present in the fact table. Every invalid member is listed, alongside
// the full valid set.
type InvalidScenariosError struct {
	Invalid []string
	Valid   []string
}

func (e *InvalidScenariosError) Error() string {
	return fmt.Sprintf("invalid scenarios [%s], valid scenarios are [%s]",
		strings.Join(e.Invalid, ", "), strings.Join(e.Valid, ", "))
}

// InvalidYearsError reports requested model years that are not present
// in the fact table. Every invalid member is listed, alongside the
// full valid set.
type InvalidYearsError struct {
	Invalid []int
	Valid   []int
}

func (e *InvalidYearsError) Error() string {
	return fmt.Sprintf("invalid years %v, valid years are %v", e.Invalid, e.Valid)
}
