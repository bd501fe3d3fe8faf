// Package aggregate implements the grouped reductions behind formula and
// reference columns and standard dashboard metrics.
//
// Pipeline per query: drop rows without a group key -> date range -> condition
// -> per-row contribution -> reduce per group and across all rows.
package aggregate

import (
	"context"
	"fmt"
	"math"
	"time"

	"tabula/internal/record"
	"tabula/internal/schema"
	"tabula/internal/value"
)

// DateRange is inclusive on both ends at day granularity. A zero bound is
// open; a range whose From is after To matches nothing.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r DateRange) Contains(t time.Time) bool {
	d := day(t)
	if !r.From.IsZero() && d.Before(day(r.From)) {
		return false
	}
	return r.To.IsZero() || !d.After(day(r.To))
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Query describes one aggregation over a target module.
type Query struct {
	TargetModule string
	GroupBy      string
	ValueColumn  string
	Operation    schema.Operation
	DateColumn   string
	Range        *DateRange
	Condition    *schema.Condition
}

// FromFormula builds the query behind an aggregate column.
func FromFormula(f schema.FormulaMetadata, r *DateRange) Query {
	return Query{
		TargetModule: f.TargetModule,
		GroupBy:      f.GroupByColumn,
		ValueColumn:  f.ValueColumn,
		Operation:    f.Operation,
		DateColumn:   f.DateColumn,
		Range:        r,
		Condition:    f.Condition,
	}
}

// Result maps each group key to its reduced value. Total applies the same
// reduction across every surviving row as one group, so the AVERAGE total is
// the overall mean rather than the mean of group means.
type Result struct {
	Groups map[string]float64 `json:"groups"`
	Counts map[string]int     `json:"counts"`
	Total  float64            `json:"total"`
	N      int                `json:"n"`
}

// Value returns the group's value; absent groups report false.
func (r Result) Value(key string) (float64, bool) {
	v, ok := r.Groups[key]
	return v, ok
}

type acc struct {
	sum, min, max float64
	n             int
}

func (a *acc) add(v float64) {
	if a.n == 0 || v < a.min {
		a.min = v
	}
	if a.n == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.n++
}

func (a *acc) reduce(op schema.Operation) float64 {
	if a.n == 0 {
		return 0
	}
	switch op {
	case schema.OpCount:
		return float64(a.n)
	case schema.OpAverage:
		return a.sum / float64(a.n)
	case schema.OpMin:
		return a.min
	case schema.OpMax:
		return a.max
	default:
		return a.sum
	}
}

// Aggregate runs q over rows already fetched from q.TargetModule.
func Aggregate(rows []record.Record, q Query) Result {
	op, ok := schema.ParseOperation(string(q.Operation))
	if !ok {
		op = schema.OpSum
	}

	groups := make(map[string]*acc)
	order := make([]string, 0)
	var total acc

	for _, r := range rows {
		gv := r.Get(q.GroupBy)
		if value.IsEmpty(gv) {
			continue
		}
		if q.DateColumn != "" && q.Range != nil {
			d, ok := value.ToDate(r.Get(q.DateColumn))
			if !ok || !q.Range.Contains(d) {
				continue
			}
		}
		if q.Condition != nil && !Match(*q.Condition, r.Get(q.Condition.Column)) {
			continue
		}

		contrib := 1.0
		if op != schema.OpCount {
			f, ok := value.ToFloat(r.Get(q.ValueColumn))
			if !ok {
				continue
			}
			contrib = f
		}

		key := value.String(gv)
		a, seen := groups[key]
		if !seen {
			a = &acc{}
			groups[key] = a
			order = append(order, key)
		}
		a.add(contrib)
		total.add(contrib)
	}

	res := Result{
		Groups: make(map[string]float64, len(groups)),
		Counts: make(map[string]int, len(groups)),
		Total:  clean(total.reduce(op)),
		N:      total.n,
	}
	for _, k := range order {
		res.Groups[k] = clean(groups[k].reduce(op))
		res.Counts[k] = groups[k].n
	}
	return res
}

func clean(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Engine fetches target rows and aggregates them.
type Engine struct {
	Records record.Reader
}

func NewEngine(r record.Reader) *Engine {
	return &Engine{Records: r}
}

func (e *Engine) Run(ctx context.Context, entity string, q Query) (Result, error) {
	rows, err := e.Records.GetRecords(ctx, entity, q.TargetModule)
	if err != nil {
		return Result{}, fmt.Errorf("aggregate %s: %w", q.TargetModule, err)
	}
	return Aggregate(rows, q), nil
}
