package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"tabula/internal/record"
	"tabula/internal/schema"
)

// Mode is either Unconfigured or Configured.
type Mode interface {
	mode() string
}

// Unconfigured means no Config exists for the branch; the dashboard falls
// back to the automatic summary of Modules.
type Unconfigured struct {
	Modules []schema.Module
}

type Configured struct {
	Config  Config
	Modules []schema.Module
}

func (Unconfigured) mode() string { return "auto" }
func (Configured) mode() string   { return "configured" }

// ModeName is "auto" or "configured".
func ModeName(m Mode) string { return m.mode() }

// Resolve picks the mode of (entity, branch).
func Resolve(ctx context.Context, configs ConfigStore, reg schema.Registry, entity, branch string) (Mode, error) {
	modules, err := reg.GetAllSchemas(ctx, entity, branch)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	cfg, err := configs.GetConfig(ctx, entity, branch)
	switch {
	case errors.Is(err, ErrConfigNotFound):
		return Unconfigured{Modules: modules}, nil
	case err != nil:
		return nil, fmt.Errorf("load dashboard config: %w", err)
	}
	return Configured{Config: cfg, Modules: modules}, nil
}

// View is the computed dashboard. Exactly one of Report and Auto is set.
type View struct {
	Entity string      `json:"entity"`
	Branch string      `json:"branch,omitempty"`
	Mode   string      `json:"mode"`
	Config *Config     `json:"config,omitempty"`
	Report *Report     `json:"report,omitempty"`
	Auto   *AutoReport `json:"auto,omitempty"`
}

// Controller composes the registry, record store and config store.
type Controller struct {
	Registry schema.Registry
	Records  record.Reader
	Configs  ConfigStore
	Log      zerolog.Logger
}

func NewController(reg schema.Registry, rec record.Reader, configs ConfigStore, log zerolog.Logger) *Controller {
	return &Controller{Registry: reg, Records: rec, Configs: configs, Log: log}
}

// Build resolves the mode, fetches what it needs and computes the view.
func (c *Controller) Build(ctx context.Context, entity, branch string, opts Options) (View, error) {
	m, err := Resolve(ctx, c.Configs, c.Registry, entity, branch)
	if err != nil {
		return View{}, err
	}
	v := View{Entity: entity, Branch: branch, Mode: ModeName(m)}

	switch m := m.(type) {
	case Configured:
		data, err := Fetch(ctx, c.Records, entity, m.Config.Modules())
		if err != nil {
			return View{}, err
		}
		rep := Compute(data, m.Config, opts)
		cfg := m.Config
		v.Config, v.Report = &cfg, &rep
	case Unconfigured:
		var names []string
		for _, mod := range m.Modules {
			names = append(names, mod.ModuleName)
			names = append(names, mod.Targets()...)
		}
		data, err := Fetch(ctx, c.Records, entity, names)
		if err != nil {
			return View{}, err
		}
		auto := Summarize(data, m.Modules)
		v.Auto = &auto
	}
	c.Log.Debug().Str("entity", entity).Str("branch", branch).Str("mode", v.Mode).Msg("dashboard built")
	return v, nil
}
