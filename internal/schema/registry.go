package schema

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Registry stores per-entity, per-branch module schemas.
type Registry interface {
	GetSchema(ctx context.Context, entity, module, branch string) (*Module, error)
	// GetAllSchemas returns every module of the entity; a non-empty branch
	// restricts the result to that branch.
	GetAllSchemas(ctx context.Context, entity, branch string) ([]Module, error)
	UpsertSchema(ctx context.Context, entity, module string, columns []ColumnDefinition, branch string) (*Module, error)
	DeleteModule(ctx context.Context, entity, module, branch string) error
}

type moduleKey struct {
	entity, branch, module string
}

// MemoryRegistry is an in-process Registry.
type MemoryRegistry struct {
	mu      sync.RWMutex
	modules map[moduleKey]*Module
	now     func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		modules: make(map[moduleKey]*Module),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GetSchema looks the module up in the given branch. With an empty branch it
// falls back to the single module of that name across all branches, if unique.
func (r *MemoryRegistry) GetSchema(_ context.Context, entity, module, branch string) (*Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.modules[moduleKey{entity, branch, module}]; ok {
		return clone(m), nil
	}
	if branch != "" {
		return nil, ErrModuleNotFound
	}
	var found *Module
	for k, m := range r.modules {
		if k.entity != entity || !strings.EqualFold(k.module, module) {
			continue
		}
		if found != nil {
			return nil, ErrModuleNotFound
		}
		found = m
	}
	if found == nil {
		return nil, ErrModuleNotFound
	}
	return clone(found), nil
}

func (r *MemoryRegistry) GetAllSchemas(_ context.Context, entity, branch string) ([]Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Module, 0)
	for k, m := range r.modules {
		if k.entity != entity || (branch != "" && k.branch != branch) {
			continue
		}
		out = append(out, *clone(m))
	}
	SortModules(out)
	return out, nil
}

func (r *MemoryRegistry) UpsertSchema(_ context.Context, entity, module string, columns []ColumnDefinition, branch string) (*Module, error) {
	cols, err := PrepareColumns(columns)
	if err != nil {
		return nil, err
	}
	m := &Module{
		Entity:     entity,
		Branch:     branch,
		ModuleName: module,
		Columns:    cols,
		UpdatedAt:  r.now(),
	}

	r.mu.Lock()
	r.modules[moduleKey{entity, branch, module}] = m
	r.mu.Unlock()
	return clone(m), nil
}

func (r *MemoryRegistry) DeleteModule(_ context.Context, entity, module, branch string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := moduleKey{entity, branch, module}
	if _, ok := r.modules[k]; !ok {
		return ErrModuleNotFound
	}
	delete(r.modules, k)
	return nil
}

// SortModules orders modules by branch, then name.
func SortModules(ms []Module) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Branch != ms[j].Branch {
			return ms[i].Branch < ms[j].Branch
		}
		return ms[i].ModuleName < ms[j].ModuleName
	})
}

func clone(m *Module) *Module {
	cp := *m
	cp.Columns = append([]ColumnDefinition(nil), m.Columns...)
	return &cp
}
