package schema

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

// KeyFromLabel derives a payload key from a column label: "Total Amount" -> "total_amount".
func KeyFromLabel(label string) string {
	k := strings.ReplaceAll(slug.Make(label), "-", "_")
	if k == "" {
		return "column"
	}
	return k
}

// AssignKeys gives every column without a key one derived from its label.
// Keys are assigned once: a column that already has a key keeps it even when
// its label changes, so relabeling never orphans stored data.
func AssignKeys(columns []ColumnDefinition) []ColumnDefinition {
	out := make([]ColumnDefinition, len(columns))
	copy(out, columns)

	used := make(map[string]struct{}, len(out))
	for _, c := range out {
		if c.Key != "" {
			used[c.Key] = struct{}{}
		}
	}
	for i := range out {
		if out[i].Key != "" {
			continue
		}
		base := KeyFromLabel(out[i].Label)
		key := base
		for n := 2; ; n++ {
			if _, taken := used[key]; !taken {
				break
			}
			key = fmt.Sprintf("%s_%d", base, n)
		}
		used[key] = struct{}{}
		out[i].Key = key
	}
	return out
}

// Relabel changes the label of the column with the given key, keeping the key.
func Relabel(columns []ColumnDefinition, key, label string) ([]ColumnDefinition, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("relabel %s: label cannot be blank", key)
	}
	out := make([]ColumnDefinition, len(columns))
	copy(out, columns)
	for i := range out {
		if out[i].Key == key {
			out[i].Label = label
			return out, nil
		}
	}
	return nil, fmt.Errorf("relabel %s: %w", key, ErrColumnNotFound)
}
