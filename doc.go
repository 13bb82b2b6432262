// Package demandcast is a scenario data engine for multi-scenario
// electricity demand projections backed by DuckDB.
//
// A project directory holds a project configuration, a DuckDB store
// with one schema per scenario, and the transformation models that
// turn registry data into per-scenario calculated tables. The engine
// rebuilds a unified energy_projection fact table across all
// scenarios, lets users override individual calculated tables with
// their own data, and compiles analytical queries over the result.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//
//	    "github.com/demandcast/demandcast-go"
//	    "github.com/demandcast/demandcast-go/query"
//	)
//
//	func main() {
//	    proj, err := demandcast.Load("./my-project", demandcast.Options{ReadOnly: true})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer proj.Close()
//
//	    res, err := proj.Query().AnnualTotal(context.Background(), query.AnnualRequest{
//	        Breakdown: query.BreakdownSector,
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    for _, row := range res.Rows {
//	        log.Println(row)
//	    }
//	}
//
// # Architecture
//
// The engine is split by concern:
//
//   - config: project configuration and the persisted override list
//   - store: the DuckDB connection, schema introspection, file load/export
//   - transform: the external transformation runner invocation
//   - build: the sequential per-scenario rebuild orchestrator
//   - override: install and removal of calculated-table overrides
//   - meta: the cached known scenario and model-year sets
//   - query: the analytical query compiler over the fact table
//
// Project ties these together and owns their shared state.
//
// # Concurrency
//
// Rebuild and override operations are single-writer: they must not run
// concurrently with each other or with queries on the same store.
// Any number of read-only projects may query the same store
// concurrently while no writer is active.
//
// # Logging
//
// All components log through log/slog. Pass a logger in Options to
// direct output; the default is slog.Default().
package demandcast
