package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"tabula/internal/aggregate"
	"tabula/internal/expr"
	"tabula/internal/record"
	"tabula/internal/schema"
	"tabula/internal/table"
	"tabula/internal/value"
)

// Data holds fetched rows by module name.
type Data map[string][]record.Record

// Fetch reads the rows of every named module.
func Fetch(ctx context.Context, r record.Reader, entity string, modules []string) (Data, error) {
	d := make(Data, len(modules))
	for _, m := range modules {
		if _, ok := d[m]; ok {
			continue
		}
		rows, err := r.GetRecords(ctx, entity, m)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", m, err)
		}
		d[m] = rows
	}
	return d, nil
}

// Options narrows a computation. Range applies to standard metrics that
// declare a date column.
type Options struct {
	Range *aggregate.DateRange
}

type Column struct {
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Type  MetricType `json:"type"`
}

// ReportRow is one primary-module record. Values holds a value per metric
// id; a metric with no value at the row's key is absent.
type ReportRow struct {
	Key    string             `json:"key"`
	Label  string             `json:"label"`
	Values map[string]float64 `json:"values"`
}

type Report struct {
	Columns []Column           `json:"columns"`
	Rows    []ReportRow        `json:"rows"`
	Totals  map[string]float64 `json:"totals"`
	// Keys is the union of group keys seen by standard metrics, sorted.
	Keys []string `json:"keys"`
}

// Compute evaluates cfg over data in two phases: standard metrics through
// the aggregation engine, then calculated metrics in declaration order, so
// a calculated metric referencing a later one reads 0.
func Compute(data Data, cfg Config, opts Options) Report {
	rep := Report{Totals: make(map[string]float64)}
	byKey := make(map[string]map[string]float64) // metric id -> key -> value
	keySet := make(map[string]struct{})

	for _, m := range cfg.Metrics {
		rep.Columns = append(rep.Columns, Column{ID: m.ID, Label: m.Label, Type: m.Type})
		if m.Type != MetricStandard {
			continue
		}
		q := aggregate.Query{
			TargetModule: m.TargetModule,
			GroupBy:      m.GroupByColumn,
			ValueColumn:  m.ValueColumn,
			Operation:    m.Operation,
			DateColumn:   m.DateColumn,
			Condition:    m.Condition,
		}
		if m.DateColumn != "" {
			q.Range = opts.Range
		}
		res := aggregate.Aggregate(data[m.TargetModule], q)
		byKey[m.ID] = res.Groups
		rep.Totals[m.ID] = res.Total
		for k := range res.Groups {
			keySet[k] = struct{}{}
		}
	}

	rep.Keys = make([]string, 0, len(keySet))
	for k := range keySet {
		rep.Keys = append(rep.Keys, k)
	}
	sort.Strings(rep.Keys)

	totalVars := make(map[string]float64)
	for _, m := range cfg.Metrics {
		if m.Type == MetricStandard {
			totalVars[m.Label] = rep.Totals[m.ID]
		}
	}
	for _, m := range cfg.Metrics {
		if m.Type != MetricCalculated {
			continue
		}
		p, err := expr.Compile(m.Formula)
		if err != nil {
			rep.Totals[m.ID] = 0
			totalVars[m.Label] = 0
			byKey[m.ID] = map[string]float64{}
			continue
		}
		t := eval(p, totalVars)
		rep.Totals[m.ID] = t
		totalVars[m.Label] = t

		vals := make(map[string]float64, len(rep.Keys))
		for _, k := range rep.Keys {
			vars := make(map[string]float64, len(cfg.Metrics))
			for _, o := range cfg.Metrics {
				if v, ok := byKey[o.ID][k]; ok {
					vars[o.Label] = v
				}
			}
			vals[k] = eval(p, vars)
		}
		byKey[m.ID] = vals
	}

	disp := cfg.PrimaryDisplayColumn
	if disp == "" {
		disp = cfg.PrimaryKeyColumn
	}
	for _, r := range data[cfg.PrimaryModule] {
		key := value.String(r.Get(cfg.PrimaryKeyColumn))
		if strings.TrimSpace(key) == "" {
			continue
		}
		row := ReportRow{Key: key, Label: value.String(r.Get(disp)), Values: make(map[string]float64)}
		if row.Label == "" {
			row.Label = key
		}
		for _, m := range cfg.Metrics {
			if v, ok := byKey[m.ID][key]; ok {
				row.Values[m.ID] = v
			} else if m.Type == MetricStandard {
				row.Values[m.ID] = 0
			}
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep
}

func eval(p *expr.Program, vars map[string]float64) float64 {
	v, err := p.Eval(vars)
	if err != nil {
		return 0
	}
	return v
}

// ColumnSummary aggregates one numeric column of one module.
type ColumnSummary struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Sum     float64 `json:"sum"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type ModuleSummary struct {
	Module  string          `json:"module"`
	Rows    int             `json:"rows"`
	Columns []ColumnSummary `json:"columns"`
}

// CombinedTotal merges numeric columns that share a label across modules.
type CombinedTotal struct {
	Label   string   `json:"label"`
	Modules []string `json:"modules"`
	Sum     float64  `json:"sum"`
	Average float64  `json:"average"`
	Count   int      `json:"count"`
}

type AutoReport struct {
	Modules  []ModuleSummary `json:"modules"`
	Combined []CombinedTotal `json:"combined"`
}

// Summarize sums and averages every numeric column of every module,
// derived columns included, and merges same-labelled columns (ignoring case)
// found in at least two modules.
func Summarize(data Data, modules []schema.Module) AutoReport {
	var rep AutoReport
	type merge struct {
		label   string
		modules []string
		sum     float64
		count   int
	}
	merged := make(map[string]*merge)
	var order []string

	for _, m := range modules {
		rows := table.Derive(table.Snapshot{Module: m, Rows: data[m.ModuleName], Targets: data})
		ms := ModuleSummary{Module: m.ModuleName, Rows: len(rows)}
		for _, col := range m.Columns {
			if !col.Type.IsNumeric() {
				continue
			}
			cs := ColumnSummary{Key: col.Key, Label: col.Label}
			for _, r := range rows {
				if f, ok := value.ToFloat(r.Values[col.Key]); ok {
					cs.Sum += f
					cs.Count++
				}
			}
			if cs.Count > 0 {
				cs.Average = cs.Sum / float64(cs.Count)
			}
			ms.Columns = append(ms.Columns, cs)

			l := strings.ToLower(strings.TrimSpace(col.Label))
			mg, ok := merged[l]
			if !ok {
				mg = &merge{label: col.Label}
				merged[l] = mg
				order = append(order, l)
			}
			if len(mg.modules) == 0 || mg.modules[len(mg.modules)-1] != m.ModuleName {
				mg.modules = append(mg.modules, m.ModuleName)
			}
			mg.sum += cs.Sum
			mg.count += cs.Count
		}
		rep.Modules = append(rep.Modules, ms)
	}

	for _, l := range order {
		mg := merged[l]
		if len(mg.modules) < 2 {
			continue
		}
		ct := CombinedTotal{Label: mg.label, Modules: mg.modules, Sum: mg.sum, Count: mg.count}
		if ct.Count > 0 {
			ct.Average = ct.Sum / float64(ct.Count)
		}
		rep.Combined = append(rep.Combined, ct)
	}
	return rep
}
