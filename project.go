package demandcast

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/demandcast/demandcast-go/build"
	"github.com/demandcast/demandcast-go/config"
	"github.com/demandcast/demandcast-go/facttable"
	"github.com/demandcast/demandcast-go/meta"
	"github.com/demandcast/demandcast-go/override"
	"github.com/demandcast/demandcast-go/query"
	"github.com/demandcast/demandcast-go/store"
	"github.com/demandcast/demandcast-go/transform"
)

// Project-relative locations of the store and the transformation
// models.
const (
	StorePath = "registry_data/data.duckdb"
	ModelsDir = "transformations/models"
)

var (
	// ErrNotAProject is returned by Load when the directory lacks the
	// project configuration or the store.
	ErrNotAProject = errors.New("not a project directory")

	// ErrReadOnly is returned by mutating operations on a project
	// opened read-only.
	ErrReadOnly = errors.New("project is opened read-only")

	// ErrNoRunner is returned by Rebuild and override operations when
	// no transformation runner was configured.
	ErrNoRunner = errors.New("no transformation runner configured")
)

// Options configures Load.
type Options struct {
	// ReadOnly opens the store read-only. Mutating operations fail
	// with ErrReadOnly. OPTIONAL.
	ReadOnly bool

	// Runner executes the per-scenario transformation during Rebuild.
	// REQUIRED for Rebuild and override operations, unused by
	// read-only consumers. OPTIONAL.
	Runner transform.Runner

	// Logger receives engine diagnostics. OPTIONAL.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Project is a loaded scenario data engine instance. It owns the store
// connection, the metadata cache and the persisted override list.
// A Project is not safe for concurrent mutating use.
type Project struct {
	dir       string
	cfg       *config.ProjectConfig
	overrides *config.TableOverrides
	store     *store.Store
	cache     *meta.Cache
	compiler  *query.Compiler
	runner    transform.Runner
	readOnly  bool
	log       *slog.Logger

	lastRebuild *build.Manifest
}

// Load opens the project at dir. The directory must contain the
// project configuration and the DuckDB store; anything else is
// reported as ErrNotAProject.
func Load(dir string, opts Options) (*Project, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfgPath := filepath.Join(dir, config.ConfigFile)
	if _, err := os.Stat(cfgPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAProject, cfgPath)
	}
	dbPath := filepath.Join(dir, filepath.FromSlash(StorePath))
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAProject, dbPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	overrides, err := config.LoadOverrides(filepath.Join(dir, config.OverridesFile))
	if err != nil {
		return nil, err
	}
	s, err := store.Open(dbPath, store.Options{ReadOnly: opts.ReadOnly, Logger: logger})
	if err != nil {
		return nil, err
	}

	cache := meta.NewCache(s, cfg)
	p := &Project{
		dir:       dir,
		cfg:       cfg,
		overrides: overrides,
		store:     s,
		cache:     cache,
		compiler:  &query.Compiler{Store: s, Cache: cache, Config: cfg, Logger: logger},
		runner:    opts.Runner,
		readOnly:  opts.ReadOnly,
		log:       logger,
	}
	if m, err := build.ReadManifest(filepath.Join(dir, build.ManifestFile)); err == nil {
		p.lastRebuild = m
	} else if !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("ignoring unreadable rebuild manifest", "error", err)
	}
	return p, nil
}

// Close releases the store connection.
func (p *Project) Close() error {
	return p.store.Close()
}

// Config returns the project configuration.
func (p *Project) Config() *config.ProjectConfig {
	return p.cfg
}

// Store returns the underlying store.
func (p *Project) Store() *store.Store {
	return p.store
}

// Query returns the analytical query compiler bound to this project.
func (p *Project) Query() *query.Compiler {
	return p.compiler
}

// LastRebuild returns the manifest of the most recent successful
// rebuild, or nil if none is recorded.
func (p *Project) LastRebuild() *build.Manifest {
	return p.lastRebuild
}

// ListScenarioNames returns the declared scenario names in project
// order.
func (p *Project) ListScenarioNames() []string {
	return p.cfg.ScenarioNames()
}

// ListTables returns the tables in a scenario's namespace.
func (p *Project) ListTables(ctx context.Context, scenario string) ([]string, error) {
	if !p.cfg.HasScenario(scenario) {
		return nil, &override.UnknownScenarioError{Scenario: scenario, Known: p.cfg.ScenarioNames()}
	}
	return p.store.ListTables(ctx, scenario)
}

// HasTable reports whether a scenario's namespace holds the table.
func (p *Project) HasTable(ctx context.Context, scenario, table string) (bool, error) {
	if !p.cfg.HasScenario(scenario) {
		return false, &override.UnknownScenarioError{Scenario: scenario, Known: p.cfg.ScenarioNames()}
	}
	return p.store.HasTable(ctx, scenario, table)
}

// ListCalculatedTables returns the names of the transformation models,
// sorted. A project without a models directory yields an empty list.
func (p *Project) ListCalculatedTables() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.dir, filepath.FromSlash(ModelsDir)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read models directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".sql"))
	}
	sort.Strings(names)
	return names, nil
}

// ExportCalculatedTable writes one scenario's calculated table to a
// CSV or Parquet file, chosen by the path extension.
func (p *Project) ExportCalculatedTable(ctx context.Context, scenario, table, path string, overwrite bool) error {
	ok, err := p.HasTable(ctx, scenario, table)
	if err != nil {
		return err
	}
	if !ok {
		return &override.UnknownTableError{Scenario: scenario, Table: table}
	}
	return p.store.Export(ctx, scenario, table, path, overwrite)
}

// FactTable returns the unified fact-table rows, optionally filtered
// to one scenario. The caller must close the returned rows.
func (p *Project) FactTable(ctx context.Context, scenario string) (*sql.Rows, error) {
	q := "SELECT " + facttable.ProjectionList() + " FROM " + facttable.Name
	var args []any
	if scenario != "" {
		if !p.cfg.HasScenario(scenario) {
			return nil, &override.UnknownScenarioError{Scenario: scenario, Known: p.cfg.ScenarioNames()}
		}
		q += " WHERE scenario = ?"
		args = append(args, scenario)
	}
	q += " ORDER BY scenario, model_year, timestamp, sector, metric"
	return p.store.Query(ctx, q, args...)
}

// Rebuild runs the transformation for every scenario in declared order
// and rebuilds the unified fact table, then refreshes the metadata
// cache and records a manifest. With useOverrides the active override
// tables replace their calculated counterparts.
func (p *Project) Rebuild(ctx context.Context, useOverrides bool) (*build.Manifest, error) {
	if p.readOnly {
		return nil, ErrReadOnly
	}
	if p.runner == nil {
		return nil, ErrNoRunner
	}
	orch := &build.Orchestrator{
		Store:     p.store,
		Config:    p.cfg,
		Overrides: p.overrides,
		Runner:    p.runner,
		Logger:    p.log,
	}
	m, err := orch.Rebuild(ctx, useOverrides)
	if err != nil {
		return nil, err
	}
	p.cache.Refresh()
	if err := build.WriteManifest(m, filepath.Join(p.dir, build.ManifestFile)); err != nil {
		p.log.Warn("rebuild succeeded but manifest write failed", "error", err)
	}
	p.lastRebuild = m
	return m, nil
}

// OverrideCalculatedTables installs calculated-table overrides and
// rebuilds with them applied. Entries are applied in order; on a
// failing entry the prior entries stay installed and persisted but no
// rebuild runs, so the caller can fix the batch and retry.
func (p *Project) OverrideCalculatedTables(ctx context.Context, specs []override.Spec) error {
	if p.readOnly {
		return ErrReadOnly
	}
	if p.runner == nil {
		return ErrNoRunner
	}
	applyErr := p.manager().Install(ctx, specs)
	if err := p.saveOverrides(); err != nil {
		return err
	}
	if applyErr != nil {
		return applyErr
	}
	_, err := p.Rebuild(ctx, true)
	return err
}

// RemoveTableOverrides removes active overrides and rebuilds with the
// remaining ones applied. The batch is validated as a whole before
// anything is removed.
func (p *Project) RemoveTableOverrides(ctx context.Context, refs []override.Ref) error {
	if p.readOnly {
		return ErrReadOnly
	}
	if p.runner == nil {
		return ErrNoRunner
	}
	if err := p.manager().Remove(ctx, refs); err != nil {
		return err
	}
	if err := p.saveOverrides(); err != nil {
		return err
	}
	_, err := p.Rebuild(ctx, true)
	return err
}

// ActiveOverrides returns the persisted override list.
func (p *Project) ActiveOverrides() []config.TableOverride {
	return p.overrides.Tables
}

func (p *Project) manager() *override.Manager {
	return &override.Manager{
		Store:     p.store,
		Config:    p.cfg,
		Overrides: p.overrides,
		ModelsDir: filepath.Join(p.dir, filepath.FromSlash(ModelsDir)),
		Logger:    p.log,
	}
}

func (p *Project) saveOverrides() error {
	return p.overrides.Save(filepath.Join(p.dir, config.OverridesFile))
}
