package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// TableOverride records that a calculated table's output for one
// scenario is replaced by user-supplied data.
type TableOverride struct {
	Scenario  string `json:"scenario"`
	TableName string `json:"table_name"`
}

// TableOverrides is the persisted override list, the single source of
// truth for what is currently overridden. Order is insertion order.
type TableOverrides struct {
	Tables []TableOverride `json:"tables"`
}

// Index returns the position of the override for (scenario, table), or
// -1 if it is not active.
func (o *TableOverrides) Index(scenario, table string) int {
	for i, t := range o.Tables {
		if t.Scenario == scenario && t.TableName == table {
			return i
		}
	}
	return -1
}

// ByScenario returns the overridden table names grouped per scenario.
func (o *TableOverrides) ByScenario() map[string][]string {
	out := make(map[string][]string)
	for _, t := range o.Tables {
		out[t.Scenario] = append(out[t.Scenario], t.TableName)
	}
	return out
}

// LoadOverrides reads the override list from path. A missing file is
// not an error: it yields an empty list, matching a project that has
// never installed an override.
func LoadOverrides(path string) (*TableOverrides, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &TableOverrides{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read table overrides: %w", err)
	}
	var o TableOverrides
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decode table overrides: %w", err)
	}
	return &o, nil
}

// Save writes the override list to path atomically.
func (o *TableOverrides) Save(path string) error {
	return writeAtomic(path, o)
}
