package table

import (
	"sort"
	"strings"

	"tabula/internal/schema"
	"tabula/internal/value"
)

// sortRows orders rows by one column, stably. Numeric columns compare as
// numbers, dates chronologically, everything else case-insensitively.
// Empty values sort last in both directions.
func sortRows(rows []Row, col schema.ColumnDefinition, dir Direction) {
	less := compareFunc(col)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Values[col.Key], rows[j].Values[col.Key]
		ea, eb := value.IsEmpty(a), value.IsEmpty(b)
		if ea || eb {
			return !ea && eb
		}
		if dir == Desc {
			return less(b, a)
		}
		return less(a, b)
	})
}

func compareFunc(col schema.ColumnDefinition) func(a, b any) bool {
	text := func(a, b any) bool {
		return strings.ToLower(value.String(a)) < strings.ToLower(value.String(b))
	}
	switch {
	case col.Type.IsNumeric():
		return func(a, b any) bool {
			fa, oka := value.ToFloat(a)
			fb, okb := value.ToFloat(b)
			if oka && okb {
				return fa < fb
			}
			if oka != okb {
				return oka
			}
			return text(a, b)
		}
	case col.Type == schema.TypeDate:
		return func(a, b any) bool {
			da, oka := value.ToDate(a)
			db, okb := value.ToDate(b)
			if oka && okb {
				return da.Before(db)
			}
			if oka != okb {
				return oka
			}
			return text(a, b)
		}
	}
	return text
}
