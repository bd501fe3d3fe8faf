package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"tabula/internal/dashboard"
	"tabula/internal/record"
	"tabula/internal/schema"
	"tabula/internal/table"
)

// Storage bundles the backends every handler works against. The memory and
// Postgres stores both satisfy these interfaces.
type Storage struct {
	Registry schema.Registry
	Records  record.Accessor
	Configs  dashboard.ConfigStore
	Views    table.ViewStore
	Hub      *record.Hub
	Log      zerolog.Logger

	// SeedDir and DashboardsDir are re-read by the admin reload endpoint;
	// guarded by reload once the server runs.
	SeedDir       string
	DashboardsDir string

	reload sync.Mutex
}

// NewMemoryStorage wires the in-process stores around a shared hub.
func NewMemoryStorage(log zerolog.Logger) *Storage {
	hub := record.NewHub(0)
	return &Storage{
		Registry: schema.NewMemoryRegistry(),
		Records:  record.NewMemoryStore(hub),
		Configs:  dashboard.NewMemoryConfigStore(),
		Views:    table.NewMemoryViewStore(),
		Hub:      hub,
		Log:      log,
	}
}

// controller builds a grid controller for one request and loads it.
func (s *Storage) controller(ctx context.Context, entity, module, branch string) (*table.Controller, error) {
	ctl := table.NewController(s.Registry, s.Records, entity, module, branch).WithLogger(s.Log)
	if err := ctl.Reload(ctx); err != nil {
		return nil, err
	}
	return ctl, nil
}

func (s *Storage) dashboards() *dashboard.Controller {
	return dashboard.NewController(s.Registry, s.Records, s.Configs, s.Log)
}

// SeedResult describes one load of the seed directories. Modules and
// Dashboards count what was written; Skipped counts seeds left alone because
// the store already held them.
type SeedResult struct {
	SeedDir       string `json:"seed_dir"`
	DashboardsDir string `json:"dashboards_dir"`
	Modules       int    `json:"modules"`
	Dashboards    int    `json:"dashboards"`
	Skipped       int    `json:"skipped"`
}

// Seed loads module schemas and dashboard configs from the configured
// directories at boot. Only modules and dashboards the store does not hold
// yet are written, so edits made through the API survive a restart. Missing
// directories load nothing.
func (s *Storage) Seed(ctx context.Context) (SeedResult, error) {
	s.reload.Lock()
	defer s.reload.Unlock()
	return s.load(ctx, false)
}

// Reload re-reads the seed directories and overwrites every module and
// dashboard they define. Non-empty arguments replace the directories.
func (s *Storage) Reload(ctx context.Context, seedDir, dashboardsDir string) (SeedResult, error) {
	s.reload.Lock()
	defer s.reload.Unlock()

	if seedDir != "" {
		s.SeedDir = seedDir
	}
	if dashboardsDir != "" {
		s.DashboardsDir = dashboardsDir
	}
	return s.load(ctx, true)
}

// load reads both directories; blocking lint issues abort before anything
// is written. Callers hold s.reload.
func (s *Storage) load(ctx context.Context, overwrite bool) (SeedResult, error) {
	res := SeedResult{SeedDir: s.SeedDir, DashboardsDir: s.DashboardsDir}

	mods, err := schema.LoadSeed(s.SeedDir)
	if err != nil {
		return res, fmt.Errorf("load schemas: %w", err)
	}
	if issues := schema.Lint(mods); len(issues) > 0 {
		return res, &LintError{Issues: issues}
	}
	seeds, err := dashboard.LoadConfigs(s.DashboardsDir)
	if err != nil {
		return res, fmt.Errorf("load dashboards: %w", err)
	}

	if overwrite {
		if err := schema.Seed(ctx, s.Registry, mods); err != nil {
			return res, err
		}
		if err := dashboard.Apply(ctx, s.Configs, seeds); err != nil {
			return res, err
		}
		res.Modules, res.Dashboards = len(mods), len(seeds)
	} else {
		if res.Modules, err = schema.SeedMissing(ctx, s.Registry, mods); err != nil {
			return res, err
		}
		if res.Dashboards, err = dashboard.ApplyMissing(ctx, s.Configs, seeds); err != nil {
			return res, err
		}
		res.Skipped = len(mods) + len(seeds) - res.Modules - res.Dashboards
	}
	s.Log.Info().
		Str("seed_dir", res.SeedDir).
		Bool("overwrite", overwrite).
		Int("modules", res.Modules).
		Int("dashboards", res.Dashboards).
		Int("skipped", res.Skipped).
		Msg("seed loaded")
	return res, nil
}

// LintError reports blocking schema issues found while seeding.
type LintError struct {
	Issues []schema.Issue
}

func (e *LintError) Error() string {
	return fmt.Sprintf("schema has %d blocking issues", len(e.Issues))
}
