package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var ErrConfigNotFound = errors.New("dashboard: config not found")

// ConfigStore keeps one Config per (entity, branch), independent of schemas.
type ConfigStore interface {
	GetConfig(ctx context.Context, entity, branch string) (Config, error)
	// PutConfig normalizes and validates cfg before storing it.
	PutConfig(ctx context.Context, entity, branch string, cfg Config) (Config, error)
	DeleteConfig(ctx context.Context, entity, branch string) error
}

type configKey struct {
	entity, branch string
}

type MemoryConfigStore struct {
	mu      sync.RWMutex
	configs map[configKey]Config
}

func NewMemoryConfigStore() *MemoryConfigStore {
	return &MemoryConfigStore{configs: make(map[configKey]Config)}
}

func (s *MemoryConfigStore) GetConfig(_ context.Context, entity, branch string) (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.configs[configKey{entity, branch}]
	if !ok {
		return Config{}, ErrConfigNotFound
	}
	return c.clone(), nil
}

func (s *MemoryConfigStore) PutConfig(_ context.Context, entity, branch string, cfg Config) (Config, error) {
	cfg, err := Normalize(cfg)
	if err != nil {
		return Config{}, err
	}
	s.mu.Lock()
	s.configs[configKey{entity, branch}] = cfg.clone()
	s.mu.Unlock()
	return cfg, nil
}

func (s *MemoryConfigStore) DeleteConfig(_ context.Context, entity, branch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := configKey{entity, branch}
	if _, ok := s.configs[k]; !ok {
		return ErrConfigNotFound
	}
	delete(s.configs, k)
	return nil
}

func (c Config) clone() Config {
	out := c
	out.Metrics = append([]Metric(nil), c.Metrics...)
	return out
}

// Seed is a dashboard config read from disk.
type Seed struct {
	Entity string `yaml:"entity"`
	Branch string `yaml:"branch"`
	Config `yaml:",inline"`
}

// LoadConfigs reads every *.yaml/*.yml file under root. A missing directory
// yields no seeds.
func LoadConfigs(root string) ([]Seed, error) {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	var out []Seed
	seen := make(map[configKey]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if d.IsDir() || (ext != ".yaml" && ext != ".yml") {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var s Seed
		if err := yaml.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if s.Entity == "" {
			return fmt.Errorf("dashboard in %s needs entity", path)
		}
		k := configKey{s.Entity, s.Branch}
		if prev, dup := seen[k]; dup {
			return fmt.Errorf("duplicate dashboard for entity %q branch %q (files: %s, %s)", s.Entity, s.Branch, prev, path)
		}
		seen[k] = path
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Apply stores every seed.
func Apply(ctx context.Context, store ConfigStore, seeds []Seed) error {
	for _, s := range seeds {
		if _, err := store.PutConfig(ctx, s.Entity, s.Branch, s.Config); err != nil {
			return fmt.Errorf("seed dashboard %s/%s: %w", s.Entity, s.Branch, err)
		}
	}
	return nil
}

// ApplyMissing stores only the seeds whose (entity, branch) has no config
// yet and returns how many it wrote.
func ApplyMissing(ctx context.Context, store ConfigStore, seeds []Seed) (int, error) {
	n := 0
	for _, s := range seeds {
		_, err := store.GetConfig(ctx, s.Entity, s.Branch)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrConfigNotFound) {
			return n, fmt.Errorf("seed dashboard %s/%s: %w", s.Entity, s.Branch, err)
		}
		if _, err := store.PutConfig(ctx, s.Entity, s.Branch, s.Config); err != nil {
			return n, fmt.Errorf("seed dashboard %s/%s: %w", s.Entity, s.Branch, err)
		}
		n++
	}
	return n, nil
}
