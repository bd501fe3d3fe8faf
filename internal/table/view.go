package table

import (
	"context"
	"errors"
	"sort"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// View is the persisted layout of a grid, emitted through OnViewConfigChange
// and stored by name.
type View struct {
	VisibleColumns []string          `json:"visible_columns"`
	ColumnOrder    []string          `json:"column_order"`
	Filters        map[string]string `json:"filters"`
	SortBy         string            `json:"sort_by,omitempty"`
	SortDirection  Direction         `json:"sort_direction,omitempty"`
}

func (v View) Validate() error {
	return validation.ValidateStruct(&v,
		validation.Field(&v.SortDirection,
			validation.When(v.SortBy != "", validation.Required),
			validation.In(Asc, Desc)),
	)
}

var ErrViewNotFound = errors.New("table: view not found")

// ViewStore persists named views per (entity, module).
type ViewStore interface {
	GetView(ctx context.Context, entity, module, name string) (View, error)
	PutView(ctx context.Context, entity, module, name string, v View) error
	ListViews(ctx context.Context, entity, module string) ([]string, error)
}

type viewKey struct {
	entity, module, name string
}

type MemoryViewStore struct {
	mu    sync.RWMutex
	views map[viewKey]View
}

func NewMemoryViewStore() *MemoryViewStore {
	return &MemoryViewStore{views: make(map[viewKey]View)}
}

func (s *MemoryViewStore) GetView(_ context.Context, entity, module, name string) (View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[viewKey{entity, module, name}]
	if !ok {
		return View{}, ErrViewNotFound
	}
	return v.clone(), nil
}

func (s *MemoryViewStore) PutView(_ context.Context, entity, module, name string, v View) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.views[viewKey{entity, module, name}] = v.clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryViewStore) ListViews(_ context.Context, entity, module string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.views {
		if k.entity == entity && k.module == module {
			out = append(out, k.name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (v View) clone() View {
	out := View{
		VisibleColumns: append([]string(nil), v.VisibleColumns...),
		ColumnOrder:    append([]string(nil), v.ColumnOrder...),
		SortBy:         v.SortBy,
		SortDirection:  v.SortDirection,
	}
	if v.Filters != nil {
		out.Filters = make(map[string]string, len(v.Filters))
		for k, f := range v.Filters {
			out.Filters[k] = f
		}
	}
	return out
}
