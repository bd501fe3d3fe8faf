package expr_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabula/internal/expr"
)

func TestEvaluate(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		vars map[string]float64
		want float64
	}{
		{name: "precedence", src: "[A]+[B]*2", vars: map[string]float64{"A": 3, "B": 4}, want: 11},
		{name: "parens", src: "([A]+[B])*2", vars: map[string]float64{"A": 3, "B": 4}, want: 14},
		{name: "missing var reads zero", src: "[A]+[Missing]", vars: map[string]float64{"A": 3}, want: 3},
		{name: "case insensitive var", src: "[income]-[EXPENSE]", vars: map[string]float64{"Income": 500, "Expense": 120}, want: 380},
		{name: "unary minus", src: "-[A]*-2", vars: map[string]float64{"A": 5}, want: 10},
		{name: "decimals", src: "0.5*4 / 2", want: 1},
		{name: "spaced names", src: "[Gross Sales] - [Returns]", vars: map[string]float64{"Gross Sales": 10, "Returns": 4}, want: 6},
		{name: "left associative", src: "10-4-3", want: 3},
		{name: "division by zero", src: "[A]/[B]", vars: map[string]float64{"A": 1}, want: 0},
		{name: "letters rejected", src: "[A]+abc", vars: map[string]float64{"A": 1}, want: 0},
		{name: "code rejected", src: "process.exit(1)", want: 0},
		{name: "exponent rejected", src: "1e5", want: 0},
		{name: "percent rejected", src: "10%3", want: 0},
		{name: "dangling operator", src: "1+", want: 0},
		{name: "unbalanced", src: "(1+2", want: 0},
		{name: "empty", src: "", want: 0},
		{name: "unterminated placeholder", src: "[A+1", want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.InDelta(t, tc.want, expr.Evaluate(tc.src, tc.vars), 1e-9)
			})
		})
	}
}

func TestEvaluateCaseCollision(t *testing.T) {
	vars := map[string]float64{"total": 1, "Total": 2, "TOTAL": 3, "other": 9}

	assert.Equal(t, 1.0, expr.Evaluate("[total]", vars), "exact name first")
	for i := 0; i < 50; i++ {
		require.Equal(t, 3.0, expr.Evaluate("[ToTaL]", vars), "smallest folded match wins on every run")
	}
}

func TestCompile(t *testing.T) {
	prog, err := expr.Compile("[Income] - [Expense] + [Income]")
	require.NoError(t, err)
	assert.Equal(t, []string{"Income", "Expense"}, prog.Vars())

	v, err := prog.Eval(map[string]float64{"Income": 2, "Expense": 1})
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = expr.Compile("2 ** 3")
	require.Error(t, err)
	assert.ErrorIs(t, err, expr.ErrSyntax)

	prog, err = expr.Compile("1/0")
	require.NoError(t, err)
	_, err = prog.Eval(nil)
	assert.ErrorIs(t, err, expr.ErrDivisionByZero)
}

func TestCompileDeepNesting(t *testing.T) {
	src := strings.Repeat("(", 1000) + "1" + strings.Repeat(")", 1000)
	_, err := expr.Compile(src)
	assert.ErrorIs(t, err, expr.ErrSyntax)
	assert.Equal(t, 0.0, expr.Evaluate(src, nil))
}
