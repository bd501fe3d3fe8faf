package schema

import (
	"fmt"
	"strings"

	"tabula/internal/expr"
)

type Issue struct {
	Entity  string `json:"entity"`
	Module  string `json:"module"`
	Column  string `json:"column"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Lint checks cross-module references that column validation cannot see:
// targets that do not exist, unknown columns, formulas that do not parse.
func Lint(modules []Module) []Issue {
	byName := make(map[string]*Module, len(modules))
	for i := range modules {
		m := &modules[i]
		byName[m.Entity+"\x00"+m.ModuleName] = m
	}
	target := func(entity, name string) *Module { return byName[entity+"\x00"+name] }

	var issues []Issue
	for i := range modules {
		m := &modules[i]
		add := func(col, code, format string, args ...any) {
			issues = append(issues, Issue{
				Entity:  m.Entity,
				Module:  m.ModuleName,
				Column:  col,
				Code:    code,
				Message: fmt.Sprintf(format, args...),
			})
		}

		for _, c := range m.Columns {
			switch {
			case c.Type.IsAggregate() && c.Formula != nil:
				f := c.Formula
				t := target(m.Entity, f.TargetModule)
				if t == nil {
					add(c.Key, "target_unknown", "target module %q does not exist", f.TargetModule)
					continue
				}
				for _, ref := range []string{f.ValueColumn, f.GroupByColumn, f.DateColumn} {
					if ref == "" {
						continue
					}
					if _, ok := t.Column(ref); !ok {
						add(c.Key, "target_column_unknown", "column %q not found in %q", ref, t.ModuleName)
					}
				}
				if f.Condition != nil {
					if _, ok := t.Column(f.Condition.Column); !ok {
						add(c.Key, "condition_column_unknown", "condition column %q not found in %q", f.Condition.Column, t.ModuleName)
					}
				}
				if _, ok := m.Column(f.SourceKey()); !ok {
					add(c.Key, "source_key_unknown", "group key column %q not found in %q", f.SourceKey(), m.ModuleName)
				}

			case c.Type == TypeCalculated && c.Formula != nil:
				prog, err := expr.Compile(c.Formula.Expression)
				if err != nil {
					add(c.Key, "expression_invalid", "%v", err)
					continue
				}
				for _, v := range prog.Vars() {
					if !hasKeyOrLabel(m, v) {
						add(c.Key, "expression_variable_unknown", "[%s] matches no column of %q and reads 0", v, m.ModuleName)
					}
				}

			case c.Type == TypeLookup && c.Relationship != nil:
				r := c.Relationship
				t := target(m.Entity, r.TargetModule)
				if t == nil {
					add(c.Key, "target_unknown", "target module %q does not exist", r.TargetModule)
					continue
				}
				if _, ok := t.Column(r.TargetKeyColumn); !ok {
					add(c.Key, "target_column_unknown", "key column %q not found in %q", r.TargetKeyColumn, t.ModuleName)
				}
				if r.TargetDisplayColumn != "" {
					if _, ok := t.Column(r.TargetDisplayColumn); !ok {
						add(c.Key, "target_column_unknown", "display column %q not found in %q", r.TargetDisplayColumn, t.ModuleName)
					}
				}
				if src := c.SourceKey(); src != c.Key {
					if _, ok := m.Column(src); !ok {
						add(c.Key, "source_key_unknown", "source column %q not found in %q", src, m.ModuleName)
					}
				}
			}
		}
	}
	return issues
}

func hasKeyOrLabel(m *Module, name string) bool {
	for _, c := range m.Columns {
		if c.Key == name || strings.EqualFold(c.Label, name) || strings.EqualFold(c.Key, name) {
			return true
		}
	}
	return false
}
