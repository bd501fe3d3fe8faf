package aggregate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabula/internal/aggregate"
	"tabula/internal/record"
	"tabula/internal/schema"
)

func rows(data ...map[string]any) []record.Record {
	out := make([]record.Record, 0, len(data))
	for _, d := range data {
		out = append(out, record.Record{ModuleName: "invoices", Data: d})
	}
	return out
}

func invoices() []record.Record {
	return rows(
		map[string]any{"amount": 100.0, "vendor": "A", "date": "2024-01-05"},
		map[string]any{"amount": 200.0, "vendor": "B", "date": "2024-01-10"},
		map[string]any{"amount": 50.0, "vendor": "A", "date": "2024-02-01"},
	)
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAggregateSumByVendor(t *testing.T) {
	q := aggregate.Query{TargetModule: "invoices", GroupBy: "vendor", ValueColumn: "amount", Operation: schema.OpSum, DateColumn: "date"}

	res := aggregate.Aggregate(invoices(), q)
	assert.Equal(t, map[string]float64{"A": 150, "B": 200}, res.Groups)
	assert.Equal(t, 350.0, res.Total)

	q.Range = &aggregate.DateRange{From: date("2024-01-01"), To: date("2024-01-31")}
	res = aggregate.Aggregate(invoices(), q)
	assert.Equal(t, map[string]float64{"A": 100, "B": 200}, res.Groups)
	assert.Equal(t, 300.0, res.Total)
}

func TestAggregateOperations(t *testing.T) {
	data := rows(
		map[string]any{"k": "x", "v": 4.0},
		map[string]any{"k": "x", "v": "n/a"},
		map[string]any{"k": "x", "v": "2"},
		map[string]any{"k": "y", "v": 10.0},
		map[string]any{"k": "", "v": 99.0},
		map[string]any{"v": 99.0},
	)

	testCases := []struct {
		name   string
		op     schema.Operation
		groups map[string]float64
		total  float64
	}{
		{name: "sum skips non numeric", op: schema.OpSum, groups: map[string]float64{"x": 6, "y": 10}, total: 16},
		{name: "count counts every row", op: schema.OpCount, groups: map[string]float64{"x": 3, "y": 1}, total: 4},
		{name: "average over all rows", op: schema.OpAverage, groups: map[string]float64{"x": 3, "y": 10}, total: 16.0 / 3},
		{name: "min", op: schema.OpMin, groups: map[string]float64{"x": 2, "y": 10}, total: 2},
		{name: "max", op: schema.OpMax, groups: map[string]float64{"x": 4, "y": 10}, total: 10},
		{name: "lowercase alias", op: "avg", groups: map[string]float64{"x": 3, "y": 10}, total: 16.0 / 3},
		{name: "unknown falls back to sum", op: "MEDIAN", groups: map[string]float64{"x": 6, "y": 10}, total: 16},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := aggregate.Aggregate(data, aggregate.Query{GroupBy: "k", ValueColumn: "v", Operation: tc.op})
			assert.Equal(t, tc.groups, res.Groups)
			assert.InDelta(t, tc.total, res.Total, 1e-9)
		})
	}
}

func TestAggregateDateRangeEdges(t *testing.T) {
	q := aggregate.Query{GroupBy: "vendor", ValueColumn: "amount", Operation: schema.OpSum, DateColumn: "date"}

	q.Range = &aggregate.DateRange{From: date("2024-02-01"), To: date("2024-01-01")}
	res := aggregate.Aggregate(invoices(), q)
	assert.Empty(t, res.Groups)
	assert.Zero(t, res.Total)

	q.Range = &aggregate.DateRange{From: date("2024-01-10"), To: date("2024-02-01")}
	res = aggregate.Aggregate(invoices(), q)
	assert.Equal(t, map[string]float64{"A": 50, "B": 200}, res.Groups, "bounds are inclusive")

	bad := rows(map[string]any{"vendor": "A", "amount": 1.0, "date": "soon"})
	res = aggregate.Aggregate(bad, q)
	assert.Empty(t, res.Groups)

	open := aggregate.DateRange{From: date("2024-01-10")}
	assert.True(t, open.Contains(date("2030-01-01")), "zero To is open")
	assert.False(t, open.Contains(date("2024-01-09")))
	assert.True(t, aggregate.DateRange{To: date("2024-01-10")}.Contains(date("1990-05-05")), "zero From is open")
}

func TestAggregateCondition(t *testing.T) {
	data := rows(
		map[string]any{"vendor": "A", "amount": 100.0, "status": "Paid"},
		map[string]any{"vendor": "A", "amount": 40.0, "status": "open"},
		map[string]any{"vendor": "B", "amount": 70.0},
	)

	testCases := []struct {
		name  string
		cond  schema.Condition
		total float64
	}{
		{name: "equals ignores case", cond: schema.Condition{Column: "status", Operator: schema.CondEquals, Value: "paid"}, total: 100},
		{name: "not equals", cond: schema.Condition{Column: "status", Operator: schema.CondNotEquals, Value: "paid"}, total: 110},
		{name: "greater than", cond: schema.Condition{Column: "amount", Operator: schema.CondGreaterThan, Value: "50"}, total: 170},
		{name: "less than", cond: schema.Condition{Column: "amount", Operator: schema.CondLessThan, Value: "50"}, total: 40},
		{name: "unparsable threshold matches nothing", cond: schema.Condition{Column: "amount", Operator: schema.CondGreaterThan, Value: "lots"}, total: 0},
		{name: "contains", cond: schema.Condition{Column: "status", Operator: schema.CondContains, Value: "PE"}, total: 40},
		{name: "is empty", cond: schema.Condition{Column: "status", Operator: schema.CondIsEmpty}, total: 70},
		{name: "not empty", cond: schema.Condition{Column: "status", Operator: schema.CondNotEmpty}, total: 140},
		{name: "numeric equals", cond: schema.Condition{Column: "amount", Operator: schema.CondEquals, Value: "100.00"}, total: 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cond := tc.cond
			res := aggregate.Aggregate(data, aggregate.Query{GroupBy: "vendor", ValueColumn: "amount", Operation: schema.OpSum, Condition: &cond})
			assert.InDelta(t, tc.total, res.Total, 1e-9)
		})
	}
}

func TestEngineRun(t *testing.T) {
	ctx := context.Background()
	store := record.NewMemoryStore(nil)
	_, err := store.AddRecordsBulk(ctx, "acme", "invoices", []map[string]any{
		{"amount": 100.0, "vendor": "A"},
		{"amount": 25.0, "vendor": "A"},
	})
	require.NoError(t, err)

	f := schema.FormulaMetadata{TargetModule: "invoices", ValueColumn: "amount", GroupByColumn: "vendor", Operation: schema.OpSum}
	res, err := aggregate.NewEngine(store).Run(ctx, "acme", aggregate.FromFormula(f, nil))
	require.NoError(t, err)

	v, ok := res.Value("A")
	assert.True(t, ok)
	assert.Equal(t, 125.0, v)
	assert.Equal(t, 2, res.Counts["A"])

	_, ok = res.Value("Z")
	assert.False(t, ok)
}
