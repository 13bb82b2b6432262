// Package transform defines the contract with the external per-scenario
// transformation runner: the process that turns raw scenario inputs into
// calculated tables inside the scenario's schema.
//
// The runner's internals (its SQL models) are outside the engine; the
// engine only depends on the documented contract: inputs are the
// scenario name, geography, ordered model years, and the active override
// mapping; success is a zero exit status; the produced tables are
// observable only by re-querying the store afterwards.
package transform

import "context"

// Params carries one transformation run's inputs.
type Params struct {
	// Scenario is the scenario being built.
	Scenario string

	// Geography is the project geography (country).
	Geography string

	// ModelYears is the ordered list of model years to project.
	ModelYears []int

	// Overrides maps an overridden calculated-table name to the name of
	// the override table that replaces its output. Empty when the run
	// must ignore overrides.
	Overrides map[string]string
}

// Runner executes one scenario's transformation run. Implementations
// are invoked sequentially by the build orchestrator; a run blocks
// until the external process finishes. There is no timeout in the base
// design: operators needing bounded latency must wrap the run with an
// external watchdog via the context.
type Runner interface {
	Run(ctx context.Context, p Params) error
}

// RunError reports a failed transformation run. It carries the scenario
// and the runner's diagnostic output; a RunError is fatal to the
// rebuild that produced it and is never retried by the engine.
type RunError struct {
	Scenario string
	Output   string
	Err      error
}

func (e *RunError) Error() string {
	msg := "transform run failed for scenario " + e.Scenario
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}
