package table

import (
	"strings"

	"tabula/internal/schema"
	"tabula/internal/value"
)

// Format returns the style of the first rule matching the displayed value,
// or nil.
func Format(rules []schema.FormatRule, displayed any) *schema.Style {
	for i := range rules {
		if ruleMatches(rules[i], displayed) {
			s := rules[i].Style
			return &s
		}
	}
	return nil
}

func ruleMatches(r schema.FormatRule, displayed any) bool {
	if r.Condition == schema.FormatContains {
		return strings.Contains(strings.ToLower(value.String(displayed)), strings.ToLower(r.Value))
	}
	got, ok1 := value.ToFloat(displayed)
	want, ok2 := value.ToFloat(r.Value)
	numeric := ok1 && ok2
	switch r.Condition {
	case schema.FormatEQ:
		if numeric {
			return got == want
		}
		return strings.EqualFold(strings.TrimSpace(value.String(displayed)), strings.TrimSpace(r.Value))
	case schema.FormatGT:
		return numeric && got > want
	case schema.FormatLT:
		return numeric && got < want
	case schema.FormatGTE:
		return numeric && got >= want
	case schema.FormatLTE:
		return numeric && got <= want
	}
	return false
}

// CellStyle applies the column's rules to a row's displayed value.
func (c *Controller) CellStyle(r Row, key string) *schema.Style {
	col, ok := c.column(key)
	if !ok || len(col.ConditionalFormatting) == 0 {
		return nil
	}
	return Format(col.ConditionalFormatting, r.Values[key])
}
