package aggregate

import (
	"strings"

	"tabula/internal/schema"
	"tabula/internal/value"
)

// Match reports whether a row value satisfies c. Numeric comparisons whose
// operands do not parse are "not matching".
func Match(c schema.Condition, got any) bool {
	switch c.Operator {
	case schema.CondIsEmpty:
		return value.IsEmpty(got)
	case schema.CondNotEmpty:
		return !value.IsEmpty(got)
	case schema.CondEquals:
		return equals(got, c.Value)
	case schema.CondNotEquals:
		return !equals(got, c.Value)
	case schema.CondGreaterThan, schema.CondLessThan:
		g, ok1 := value.ToFloat(got)
		w, ok2 := value.ToFloat(c.Value)
		if !ok1 || !ok2 {
			return false
		}
		if c.Operator == schema.CondGreaterThan {
			return g > w
		}
		return g < w
	case schema.CondContains:
		return strings.Contains(strings.ToLower(value.String(got)), strings.ToLower(c.Value))
	}
	return false
}

func equals(got any, want string) bool {
	if g, ok := value.ToFloat(got); ok {
		if w, ok := value.ToFloat(want); ok {
			return g == w
		}
	}
	return strings.EqualFold(strings.TrimSpace(value.String(got)), strings.TrimSpace(want))
}
