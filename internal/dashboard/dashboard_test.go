package dashboard_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabula/internal/aggregate"
	"tabula/internal/dashboard"
	"tabula/internal/record"
	"tabula/internal/schema"
)

func rec(module string, data map[string]any) record.Record {
	return record.Record{Entity: "acme", ModuleName: module, Data: data}
}

func branchData() dashboard.Data {
	return dashboard.Data{
		"branches": {
			rec("branches", map[string]any{"code": "K1", "name": "North"}),
			rec("branches", map[string]any{"code": "K2", "name": "South"}),
			rec("branches", map[string]any{"code": "K3"}),
		},
		"income": {
			rec("income", map[string]any{"branch": "K1", "amount": 400.0, "date": "2024-01-05"}),
			rec("income", map[string]any{"branch": "K1", "amount": 20.0, "date": "2024-02-05"}),
			rec("income", map[string]any{"branch": "K2", "amount": 80.0, "date": "2024-01-20"}),
		},
		"expense": {
			rec("expense", map[string]any{"branch": "K1", "amount": 120.0}),
		},
	}
}

func branchConfig() dashboard.Config {
	return dashboard.Config{
		PrimaryModule:        "branches",
		PrimaryKeyColumn:     "code",
		PrimaryDisplayColumn: "name",
		Metrics: []dashboard.Metric{
			{ID: "inc", Label: "Income", Type: dashboard.MetricStandard, TargetModule: "income", ValueColumn: "amount", GroupByColumn: "branch", Operation: schema.OpSum, DateColumn: "date"},
			{ID: "exp", Label: "Expense", Type: dashboard.MetricStandard, TargetModule: "expense", ValueColumn: "amount", GroupByColumn: "branch", Operation: schema.OpSum},
			{ID: "net", Label: "Net", Type: dashboard.MetricCalculated, Formula: "[Income]-[Expense]"},
			{ID: "fwd", Label: "Fwd", Type: dashboard.MetricCalculated, Formula: "[Later]*2"},
			{ID: "later", Label: "Later", Type: dashboard.MetricCalculated, Formula: "[Net]+1"},
		},
	}
}

func TestComputeCalculatedMetrics(t *testing.T) {
	rep := dashboard.Compute(branchData(), branchConfig(), dashboard.Options{})

	assert.Equal(t, map[string]float64{"inc": 500, "exp": 120, "net": 380, "fwd": 0, "later": 381}, rep.Totals)
	assert.Equal(t, []string{"K1", "K2"}, rep.Keys)
	require.Len(t, rep.Columns, 5)
	assert.Equal(t, "Net", rep.Columns[2].Label)

	require.Len(t, rep.Rows, 3)
	assert.Equal(t, dashboard.ReportRow{Key: "K1", Label: "North", Values: map[string]float64{
		"inc": 420, "exp": 120, "net": 300, "fwd": 0, "later": 301,
	}}, rep.Rows[0])
	assert.Equal(t, 80.0, rep.Rows[1].Values["net"], "a key present only in Income")
	assert.Equal(t, 0.0, rep.Rows[1].Values["exp"])

	k3 := rep.Rows[2]
	assert.Equal(t, "K3", k3.Label, "label falls back to the key")
	assert.Equal(t, map[string]float64{"inc": 0, "exp": 0}, k3.Values, "calculated values only exist for keys seen by standard metrics")
}

func TestComputeDateRange(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	rep := dashboard.Compute(branchData(), branchConfig(), dashboard.Options{Range: &aggregate.DateRange{From: from, To: to}})

	assert.Equal(t, 480.0, rep.Totals["inc"])
	assert.Equal(t, 120.0, rep.Totals["exp"], "metrics without a date column ignore the range")
	assert.Equal(t, 360.0, rep.Totals["net"])
}

func TestComputeBadFormula(t *testing.T) {
	cfg := branchConfig()
	cfg.Metrics[2].Formula = "[Income] +* 2"
	rep := dashboard.Compute(branchData(), cfg, dashboard.Options{})
	assert.Zero(t, rep.Totals["net"])
	assert.Equal(t, 1.0, rep.Totals["later"])
}

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*dashboard.Config)
		ok     bool
	}{
		{name: "valid", mutate: func(*dashboard.Config) {}, ok: true},
		{name: "missing primary module", mutate: func(c *dashboard.Config) { c.PrimaryModule = "" }},
		{name: "standard without target", mutate: func(c *dashboard.Config) { c.Metrics[0].TargetModule = "" }},
		{name: "unknown operation", mutate: func(c *dashboard.Config) { c.Metrics[0].Operation = "MEDIAN" }},
		{name: "calculated without formula", mutate: func(c *dashboard.Config) { c.Metrics[2].Formula = "" }},
		{name: "formula does not compile", mutate: func(c *dashboard.Config) { c.Metrics[2].Formula = "[Income" }},
		{name: "duplicate label", mutate: func(c *dashboard.Config) { c.Metrics[1].Label = "income" }},
		{name: "bad type", mutate: func(c *dashboard.Config) { c.Metrics[1].Type = "ratio" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := branchConfig()
			tc.mutate(&cfg)
			_, err := dashboard.Normalize(cfg)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNormalizeAssignsIDs(t *testing.T) {
	cfg := branchConfig()
	cfg.Metrics[0].ID = ""
	cfg.Metrics[1].Operation = "avg"

	out, err := dashboard.Normalize(cfg)
	require.NoError(t, err)
	assert.Len(t, out.Metrics[0].ID, 36)
	assert.Equal(t, schema.OpAverage, out.Metrics[1].Operation)
	assert.Empty(t, cfg.Metrics[0].ID, "input is not mutated")
	assert.Equal(t, []string{"branches", "income", "expense"}, out.Modules())
}

func TestMemoryConfigStore(t *testing.T) {
	ctx := context.Background()
	s := dashboard.NewMemoryConfigStore()

	_, err := s.GetConfig(ctx, "acme", "north")
	assert.ErrorIs(t, err, dashboard.ErrConfigNotFound)

	bad := branchConfig()
	bad.PrimaryKeyColumn = ""
	_, err = s.PutConfig(ctx, "acme", "north", bad)
	assert.Error(t, err)

	_, err = s.PutConfig(ctx, "acme", "north", branchConfig())
	require.NoError(t, err)
	got, err := s.GetConfig(ctx, "acme", "north")
	require.NoError(t, err)
	assert.Equal(t, "branches", got.PrimaryModule)

	_, err = s.GetConfig(ctx, "acme", "south")
	assert.ErrorIs(t, err, dashboard.ErrConfigNotFound, "configs are per branch")

	require.NoError(t, s.DeleteConfig(ctx, "acme", "north"))
	assert.ErrorIs(t, s.DeleteConfig(ctx, "acme", "north"), dashboard.ErrConfigNotFound)
}

func TestSummarize(t *testing.T) {
	modules := []schema.Module{
		{Entity: "acme", ModuleName: "income", Columns: []schema.ColumnDefinition{
			{Key: "branch", Label: "Branch", Type: schema.TypeText},
			{Key: "amount", Label: "Amount", Type: schema.TypeNumber},
			{Key: "double", Label: "Double", Type: schema.TypeCalculated, Formula: &schema.FormulaMetadata{Expression: "[amount]*2"}},
		}},
		{Entity: "acme", ModuleName: "expense", Columns: []schema.ColumnDefinition{
			{Key: "value", Label: "AMOUNT", Type: schema.TypeCurrency},
		}},
		{Entity: "acme", ModuleName: "branches", Columns: []schema.ColumnDefinition{
			{Key: "code", Label: "Code", Type: schema.TypeText},
		}},
	}
	data := branchData()
	data["expense"] = []record.Record{rec("expense", map[string]any{"value": 120.0}), rec("expense", map[string]any{"value": "n/a"})}

	rep := dashboard.Summarize(data, modules)
	require.Len(t, rep.Modules, 3)

	income := rep.Modules[0]
	assert.Equal(t, 3, income.Rows)
	assert.Equal(t, []dashboard.ColumnSummary{
		{Key: "amount", Label: "Amount", Sum: 500, Average: 500.0 / 3, Count: 3},
		{Key: "double", Label: "Double", Sum: 1000, Average: 1000.0 / 3, Count: 3},
	}, income.Columns)
	assert.Equal(t, []dashboard.ColumnSummary{{Key: "value", Label: "AMOUNT", Sum: 120, Average: 120, Count: 1}}, rep.Modules[1].Columns)
	assert.Empty(t, rep.Modules[2].Columns)

	require.Len(t, rep.Combined, 1)
	assert.Equal(t, dashboard.CombinedTotal{
		Label: "Amount", Modules: []string{"income", "expense"}, Sum: 620, Average: 155, Count: 4,
	}, rep.Combined[0])
}

func TestLoadConfigs(t *testing.T) {
	dir := t.TempDir()
	body := `entity: acme
branch: north
primary_module: branches
primary_key_column: code
metrics:
  - label: Income
    type: standard
    target_module: income
    value_column: amount
    group_by_column: branch
    operation: sum
  - label: Half
    type: calculated
    formula: "[Income]/2"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "north.yaml"), []byte(body), 0o644))

	seeds, err := dashboard.LoadConfigs(dir)
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, "north", seeds[0].Branch)
	assert.Len(t, seeds[0].Metrics, 2)

	store := dashboard.NewMemoryConfigStore()
	require.NoError(t, dashboard.Apply(context.Background(), store, seeds))
	got, err := store.GetConfig(context.Background(), "acme", "north")
	require.NoError(t, err)
	assert.Equal(t, schema.OpSum, got.Metrics[0].Operation)
	assert.NotEmpty(t, got.Metrics[1].ID)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "copy.yml"), []byte(body), 0o644))
	_, err = dashboard.LoadConfigs(dir)
	assert.ErrorContains(t, err, "duplicate dashboard")

	seeds, err = dashboard.LoadConfigs(filepath.Join(dir, "missing"))
	assert.NoError(t, err)
	assert.Empty(t, seeds)
}

func TestApplyMissingKeepsStoredConfigs(t *testing.T) {
	ctx := context.Background()
	store := dashboard.NewMemoryConfigStore()
	edited, err := store.PutConfig(ctx, "acme", "", dashboard.Config{
		PrimaryModule: "branches", PrimaryKeyColumn: "code",
		Metrics: []dashboard.Metric{{Label: "Edited", Type: dashboard.MetricCalculated, Formula: "1"}},
	})
	require.NoError(t, err)

	seeds := []dashboard.Seed{
		{Entity: "acme", Config: dashboard.Config{
			PrimaryModule: "branches", PrimaryKeyColumn: "code",
			Metrics: []dashboard.Metric{{Label: "Seeded", Type: dashboard.MetricCalculated, Formula: "2"}},
		}},
		{Entity: "acme", Branch: "north", Config: dashboard.Config{
			PrimaryModule: "branches", PrimaryKeyColumn: "code",
			Metrics: []dashboard.Metric{{Label: "Seeded", Type: dashboard.MetricCalculated, Formula: "2"}},
		}},
	}
	n, err := dashboard.ApplyMissing(ctx, store, seeds)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetConfig(ctx, "acme", "")
	require.NoError(t, err)
	assert.Equal(t, edited, got)

	north, err := store.GetConfig(ctx, "acme", "north")
	require.NoError(t, err)
	id := north.Metrics[0].ID
	_, err = dashboard.ApplyMissing(ctx, store, seeds)
	require.NoError(t, err)
	north, err = store.GetConfig(ctx, "acme", "north")
	require.NoError(t, err)
	assert.Equal(t, id, north.Metrics[0].ID, "metric ids stay stable across boots")
}

func TestControllerModes(t *testing.T) {
	ctx := context.Background()
	reg := schema.NewMemoryRegistry()
	store := record.NewMemoryStore(nil)
	configs := dashboard.NewMemoryConfigStore()

	_, err := reg.UpsertSchema(ctx, "acme", "income", []schema.ColumnDefinition{
		{Key: "branch", Label: "Branch", Type: schema.TypeText},
		{Key: "amount", Label: "Amount", Type: schema.TypeNumber},
	}, "north")
	require.NoError(t, err)
	_, err = reg.UpsertSchema(ctx, "acme", "branches", []schema.ColumnDefinition{
		{Key: "code", Label: "Code", Type: schema.TypeText},
	}, "north")
	require.NoError(t, err)
	_, err = store.AddRecordsBulk(ctx, "acme", "income", []map[string]any{
		{"branch": "K1", "amount": 10.0},
		{"branch": "K1", "amount": 5.0},
	})
	require.NoError(t, err)
	_, err = store.AddRecord(ctx, "acme", "branches", map[string]any{"code": "K1"})
	require.NoError(t, err)

	c := dashboard.NewController(reg, store, configs, zerolog.Nop())

	mode, err := dashboard.Resolve(ctx, configs, reg, "acme", "north")
	require.NoError(t, err)
	require.IsType(t, dashboard.Unconfigured{}, mode)
	assert.Len(t, mode.(dashboard.Unconfigured).Modules, 2)

	v, err := c.Build(ctx, "acme", "north", dashboard.Options{})
	require.NoError(t, err)
	assert.Equal(t, "auto", v.Mode)
	require.NotNil(t, v.Auto)
	assert.Nil(t, v.Report)

	_, err = configs.PutConfig(ctx, "acme", "north", dashboard.Config{
		PrimaryModule:    "branches",
		PrimaryKeyColumn: "code",
		Metrics: []dashboard.Metric{
			{Label: "Income", Type: dashboard.MetricStandard, TargetModule: "income", ValueColumn: "amount", GroupByColumn: "branch", Operation: "SUM"},
		},
	})
	require.NoError(t, err)

	v, err = c.Build(ctx, "acme", "north", dashboard.Options{})
	require.NoError(t, err)
	assert.Equal(t, "configured", v.Mode)
	require.NotNil(t, v.Report)
	assert.Nil(t, v.Auto)
	require.Len(t, v.Report.Rows, 1)
	assert.Equal(t, 15.0, v.Report.Rows[0].Values[v.Config.Metrics[0].ID])
}
