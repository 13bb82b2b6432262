package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strconv"
	"strings"
)

// CommandRunner invokes a dbt-style command-line transformation tool.
// The run parameters are passed as a single-line JSON object via
// "--vars", matching dbt's variable-injection convention:
//
//	dbt run --vars {"scenario": "baseline", "country": "country_1",
//	                "model_years": "(2025,2030)",
//	                "res_load_shapes_override": "res_load_shapes_override"}
type CommandRunner struct {
	// Command is the executable and its base arguments,
	// e.g. []string{"dbt", "run"}.
	// REQUIRED: MUST be non-empty.
	Command []string

	// Dir is the working directory for the command, normally the
	// project's transform directory.
	// OPTIONAL: empty means the current directory.
	Dir string

	// Logger for run logging.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

// Run executes one scenario's transformation. Failure wraps the
// captured combined output in a *RunError.
func (r *CommandRunner) Run(ctx context.Context, p Params) error {
	if len(r.Command) == 0 {
		return fmt.Errorf("command runner: no command configured")
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	vars, err := encodeVars(p)
	if err != nil {
		return &RunError{Scenario: p.Scenario, Err: err}
	}
	args := append(append([]string(nil), r.Command[1:]...), "--vars", vars)

	cmd := exec.CommandContext(ctx, r.Command[0], args...)
	cmd.Dir = r.Dir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logger.Info("running transform",
		"scenario", p.Scenario,
		"command", strings.Join(append([]string{r.Command[0]}, args...), " "),
	)
	if err := cmd.Run(); err != nil {
		return &RunError{Scenario: p.Scenario, Output: output.String(), Err: err}
	}
	return nil
}

// encodeVars builds the --vars JSON payload. model_years is encoded as
// the parenthesized list string the transformation models splice into
// their IN clauses. Override keys are emitted in sorted order so the
// payload is deterministic.
func encodeVars(p Params) (string, error) {
	years := make([]string, len(p.ModelYears))
	for i, y := range p.ModelYears {
		years[i] = strconv.Itoa(y)
	}
	vars := map[string]string{
		"scenario":    p.Scenario,
		"country":     p.Geography,
		"model_years": "(" + strings.Join(years, ",") + ")",
	}
	keys := make([]string, 0, len(p.Overrides))
	for k := range p.Overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vars[k+"_override"] = p.Overrides[k]
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return "", fmt.Errorf("encode vars: %w", err)
	}
	return string(data), nil
}
