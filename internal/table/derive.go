// Package table is the headless grid behind a module view: it derives
// formula, calculated and lookup values over a fetched snapshot and owns
// the per-session editing, sorting, filtering, paging and selection state.
package table

import (
	"context"
	"fmt"

	"tabula/internal/aggregate"
	"tabula/internal/expr"
	"tabula/internal/record"
	"tabula/internal/relation"
	"tabula/internal/schema"
	"tabula/internal/value"
)

// Snapshot is everything a derivation reads: the module, its rows and the
// rows of every module its columns point at.
type Snapshot struct {
	Module  schema.Module
	Rows    []record.Record
	Targets map[string][]record.Record
}

// Target returns the rows of the named module; a module may target itself.
func (s *Snapshot) Target(name string) []record.Record {
	if name == s.Module.ModuleName {
		return s.Rows
	}
	return s.Targets[name]
}

// LoadSnapshot fetches the module schema, its rows and every target module.
func LoadSnapshot(ctx context.Context, reg schema.Registry, rec record.Reader, entity, module, branch string) (Snapshot, error) {
	m, err := reg.GetSchema(ctx, entity, module, branch)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load schema %s/%s: %w", entity, module, err)
	}
	rows, err := rec.GetRecords(ctx, entity, m.ModuleName)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load records %s/%s: %w", entity, module, err)
	}
	s := Snapshot{Module: *m, Rows: rows, Targets: make(map[string][]record.Record)}
	for _, t := range m.Targets() {
		trows, err := rec.GetRecords(ctx, entity, t)
		if err != nil {
			return Snapshot{}, fmt.Errorf("load target %s: %w", t, err)
		}
		s.Targets[t] = trows
	}
	return s, nil
}

// Row is a record with every column value resolved: stored values as-is,
// aggregates and calculated values as float64 (nil when the group is
// absent), lookups as their display label.
type Row struct {
	ID     string
	Record record.Record
	Values map[string]any
}

// Display renders a column value as shown in the grid.
func (r Row) Display(key string) string {
	return value.String(r.Values[key])
}

type deriver struct {
	module  schema.Module
	aggs    map[string]aggregate.Result
	lookups map[string]relation.Index
	progs   map[string]*expr.Program
}

func newDeriver(s *Snapshot) *deriver {
	d := &deriver{
		module:  s.Module,
		aggs:    make(map[string]aggregate.Result),
		lookups: make(map[string]relation.Index),
		progs:   make(map[string]*expr.Program),
	}
	for _, c := range s.Module.Columns {
		switch {
		case c.Type.IsAggregate() && c.Formula != nil:
			d.aggs[c.Key] = aggregate.Aggregate(s.Target(c.Formula.TargetModule), aggregate.FromFormula(*c.Formula, nil))
		case c.Type == schema.TypeCalculated && c.Formula != nil:
			// A program that fails to compile stays nil and yields 0.
			p, _ := expr.Compile(c.Formula.Expression)
			d.progs[c.Key] = p
		case c.Type == schema.TypeLookup && c.Relationship != nil:
			d.lookups[c.Key] = relation.NewIndex(s.Target(c.Relationship.TargetModule), *c.Relationship)
		}
	}
	return d
}

func (d *deriver) row(r record.Record) Row {
	out := Row{ID: r.ID, Record: r, Values: make(map[string]any, len(d.module.Columns))}

	for _, c := range d.module.Columns {
		switch {
		case c.Type.IsAggregate():
			var v any
			if c.Formula != nil {
				if f, ok := d.aggs[c.Key].Value(value.String(r.Get(c.Formula.SourceKey()))); ok {
					v = f
				}
			}
			out.Values[c.Key] = v
		case c.Type == schema.TypeLookup:
			fk := r.Get(c.SourceKey())
			if idx, ok := d.lookups[c.Key]; ok && !value.IsEmpty(fk) {
				out.Values[c.Key] = idx.Display(fk)
			} else {
				out.Values[c.Key] = fk
			}
		case c.Type == schema.TypeCalculated:
		default:
			out.Values[c.Key] = r.Get(c.Key)
		}
	}

	vars := make(map[string]float64, len(r.Data)+2*len(d.module.Columns))
	for k, v := range r.Data {
		if f, ok := value.ToFloat(v); ok {
			vars[k] = f
		}
	}
	for _, c := range d.module.Columns {
		if c.Type == schema.TypeCalculated {
			continue
		}
		if f, ok := value.ToFloat(out.Values[c.Key]); ok {
			vars[c.Key] = f
			vars[c.Label] = f
		}
	}
	// Declaration order: a calculated column sees the ones declared before it.
	for _, c := range d.module.Columns {
		if c.Type != schema.TypeCalculated {
			continue
		}
		f := 0.0
		if p := d.progs[c.Key]; p != nil {
			if v, err := p.Eval(vars); err == nil {
				f = v
			}
		}
		out.Values[c.Key] = f
		vars[c.Key] = f
		vars[c.Label] = f
	}
	return out
}

// Derive resolves every row of the snapshot.
func Derive(s Snapshot) []Row {
	d := newDeriver(&s)
	out := make([]Row, 0, len(s.Rows))
	for _, r := range s.Rows {
		out = append(out, d.row(r))
	}
	return out
}
