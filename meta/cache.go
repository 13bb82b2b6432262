// Package meta caches fact-table metadata: the valid model years and
// the scenarios actually present, in the project's declared order.
//
// The cache is populated lazily on first access and cleared by Refresh;
// the engine refreshes it after every rebuild and override change.
package meta

import (
	"context"
	"fmt"
	"sync"

	"github.com/demandcast/demandcast-go/config"
	"github.com/demandcast/demandcast-go/facttable"
	"github.com/demandcast/demandcast-go/store"
)

// YearTypeError reports that the store returned a non-integer
// model_year. This is a data-pipeline defect: silently coercing would
// corrupt downstream year validation, so it is always fatal.
type YearTypeError struct {
	Value any
}

func (e *YearTypeError) Error() string {
	return fmt.Sprintf("model_year has non-integer type %T (value %v); the fact-table pipeline is defective", e.Value, e.Value)
}

// Cache lazily caches years and scenarios. Safe for concurrent use.
type Cache struct {
	store *store.Store
	cfg   *config.ProjectConfig

	mu        sync.Mutex
	years     []int
	scenarios []string
}

// NewCache creates a cache reading from the given store, scoped to the
// project's geography and scenario order.
func NewCache(s *store.Store, cfg *config.ProjectConfig) *Cache {
	return &Cache{store: s, cfg: cfg}
}

// Years returns the distinct model years present in the fact table for
// the project geography, ascending. The result is cached until Refresh.
func (c *Cache) Years(ctx context.Context) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.years != nil {
		return c.years, nil
	}
	years, err := c.fetchYears(ctx)
	if err != nil {
		return nil, err
	}
	c.years = years
	return years, nil
}

// Scenarios returns the project's declared scenario order filtered to
// scenarios actually present in the fact table. The result is cached
// until Refresh.
func (c *Cache) Scenarios(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scenarios != nil {
		return c.scenarios, nil
	}
	scenarios, err := c.fetchScenarios(ctx)
	if err != nil {
		return nil, err
	}
	c.scenarios = scenarios
	return scenarios, nil
}

// Refresh clears both caches unconditionally. No eager reload happens;
// the next access recomputes.
func (c *Cache) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.years = nil
	c.scenarios = nil
}

func (c *Cache) fetchYears(ctx context.Context) ([]int, error) {
	rows, err := c.store.Query(ctx, `
		SELECT DISTINCT model_year
		FROM `+facttable.Name+`
		WHERE geography = ?
		ORDER BY model_year`, c.cfg.Country)
	if err != nil {
		return nil, fmt.Errorf("fetch model years: %w", err)
	}
	defer rows.Close()
	years := []int{}
	for rows.Next() {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan model year: %w", err)
		}
		switch v := raw.(type) {
		case int64:
			years = append(years, int(v))
		case int32:
			years = append(years, int(v))
		default:
			return nil, &YearTypeError{Value: raw}
		}
	}
	return years, rows.Err()
}

func (c *Cache) fetchScenarios(ctx context.Context) ([]string, error) {
	rows, err := c.store.Query(ctx, `
		SELECT DISTINCT scenario
		FROM `+facttable.Name+`
		WHERE geography = ?`, c.cfg.Country)
	if err != nil {
		return nil, fmt.Errorf("fetch scenarios: %w", err)
	}
	defer rows.Close()
	present := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		present[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	ordered := []string{}
	for _, name := range c.cfg.ScenarioNames() {
		if _, ok := present[name]; ok {
			ordered = append(ordered, name)
		}
	}
	return ordered, nil
}
