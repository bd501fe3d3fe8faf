package schema

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout of a seed file: either a single module at the
// top level or a list under "modules".
type seedFile struct {
	Module  `yaml:",inline"`
	Modules []Module `yaml:"modules"`
}

// LoadSeed reads every *.yaml / *.yml file under root and returns the modules
// they define. A missing root yields no modules.
func LoadSeed(root string) ([]Module, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}
	var out []Module
	seen := map[moduleKey]string{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if d.IsDir() || (ext != ".yaml" && ext != ".yml") {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var sf seedFile
		if err := yaml.Unmarshal(b, &sf); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		mods := sf.Modules
		if sf.ModuleName != "" {
			mods = append([]Module{sf.Module}, mods...)
		}
		for _, m := range mods {
			if m.Entity == "" || m.ModuleName == "" {
				return fmt.Errorf("module in %s needs entity and module_name", path)
			}
			k := moduleKey{m.Entity, m.Branch, m.ModuleName}
			if prev, dup := seen[k]; dup {
				return fmt.Errorf("duplicate module %q for entity %q (files: %s, %s)", m.ModuleName, m.Entity, prev, path)
			}
			seen[k] = path
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Seed upserts every module into the registry.
func Seed(ctx context.Context, reg Registry, modules []Module) error {
	for _, m := range modules {
		if _, err := reg.UpsertSchema(ctx, m.Entity, m.ModuleName, m.Columns, m.Branch); err != nil {
			return fmt.Errorf("seed %s/%s: %w", m.Entity, m.ModuleName, err)
		}
	}
	return nil
}

// SeedMissing upserts only the modules the registry does not hold yet and
// returns how many it wrote. Modules already registered keep their columns.
func SeedMissing(ctx context.Context, reg Registry, modules []Module) (int, error) {
	type entityBranch struct{ entity, branch string }
	existing := make(map[entityBranch]map[string]bool)
	n := 0
	for _, m := range modules {
		eb := entityBranch{m.Entity, m.Branch}
		names, ok := existing[eb]
		if !ok {
			all, err := reg.GetAllSchemas(ctx, m.Entity, m.Branch)
			if err != nil {
				return n, fmt.Errorf("seed %s/%s: %w", m.Entity, m.ModuleName, err)
			}
			names = make(map[string]bool, len(all))
			for _, have := range all {
				if have.Branch == m.Branch {
					names[have.ModuleName] = true
				}
			}
			existing[eb] = names
		}
		if names[m.ModuleName] {
			continue
		}
		if _, err := reg.UpsertSchema(ctx, m.Entity, m.ModuleName, m.Columns, m.Branch); err != nil {
			return n, fmt.Errorf("seed %s/%s: %w", m.Entity, m.ModuleName, err)
		}
		names[m.ModuleName] = true
		n++
	}
	return n, nil
}
