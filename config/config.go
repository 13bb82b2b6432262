// Package config defines the persisted project configuration: the
// declared scenario order, the project geography, the model-year range,
// and the active table-override list.
//
// The scenario order declared here is canonical: every component that
// displays, unions, or iterates scenarios follows it.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Standard configuration file names inside a project directory.
const (
	ConfigFile    = "project.json"
	OverridesFile = "table_overrides.json"
)

// Scenario is a named variant of the projection. Each scenario owns an
// isolated schema in the store holding its calculated tables.
type Scenario struct {
	Name string `json:"name"`
}

// ProjectConfig defines a demandcast project.
type ProjectConfig struct {
	// ProjectID names the project.
	// REQUIRED: MUST be non-empty.
	ProjectID string `json:"project_id"`

	// Country is the project geography. Fact-table rows and metadata
	// queries are scoped to it.
	// REQUIRED: MUST be non-empty.
	Country string `json:"country"`

	// StartYear and EndYear bound the projection, inclusive.
	// REQUIRED: StartYear MUST NOT exceed EndYear.
	StartYear int `json:"start_year"`
	EndYear   int `json:"end_year"`

	// IntervalYears is the spacing between model years.
	// OPTIONAL: defaults to 5 when zero.
	IntervalYears int `json:"interval_years,omitempty"`

	// Scenarios lists the project scenarios in canonical order.
	// REQUIRED: MUST contain at least one scenario with unique names.
	Scenarios []Scenario `json:"scenarios"`
}

// ErrInvalidConfig indicates a project configuration failed validation.
var ErrInvalidConfig = errors.New("invalid project config")

// Validate checks the configuration invariants.
func (c *ProjectConfig) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("%w: project_id is required", ErrInvalidConfig)
	}
	if c.Country == "" {
		return fmt.Errorf("%w: country is required", ErrInvalidConfig)
	}
	if c.StartYear > c.EndYear {
		return fmt.Errorf("%w: start_year %d exceeds end_year %d", ErrInvalidConfig, c.StartYear, c.EndYear)
	}
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("%w: at least one scenario is required", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Scenarios))
	for _, s := range c.Scenarios {
		if s.Name == "" {
			return fmt.Errorf("%w: scenario name is required", ErrInvalidConfig)
		}
		if _, ok := seen[s.Name]; ok {
			return fmt.Errorf("%w: duplicate scenario name %q", ErrInvalidConfig, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// ModelYears returns the ordered list of model years covered by the
// projection: StartYear through EndYear stepped by IntervalYears.
func (c *ProjectConfig) ModelYears() []int {
	interval := c.IntervalYears
	if interval <= 0 {
		interval = 5
	}
	var years []int
	for y := c.StartYear; y <= c.EndYear; y += interval {
		years = append(years, y)
	}
	return years
}

// ScenarioNames returns scenario names in declared order.
func (c *ProjectConfig) ScenarioNames() []string {
	names := make([]string, len(c.Scenarios))
	for i, s := range c.Scenarios {
		names[i] = s.Name
	}
	return names
}

// HasScenario reports whether name is a declared scenario.
func (c *ProjectConfig) HasScenario(name string) bool {
	for _, s := range c.Scenarios {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Load reads and validates a project configuration file.
func Load(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project config: %w", err)
	}
	var cfg ProjectConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode project config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to path atomically: the file is written
// to a temp file in the same directory and renamed into place, so a
// crash mid-write never leaves a truncated config behind.
func (c *ProjectConfig) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return writeAtomic(path, c)
}

func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
