// Package relation resolves lookup columns against their target module.
// Labels are recomputed on every read and never written back, so renaming a
// target row is reflected immediately without touching source rows.
package relation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"tabula/internal/record"
	"tabula/internal/schema"
	"tabula/internal/value"
)

// Option is one selectable foreign key with its display label.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func displayColumn(rel schema.RelationshipMetadata) string {
	if rel.TargetDisplayColumn != "" {
		return rel.TargetDisplayColumn
	}
	return rel.TargetKeyColumn
}

// Options lists one option per target row with a non-empty key, in row
// order. Duplicate keys keep their first row.
func Options(rows []record.Record, rel schema.RelationshipMetadata) []Option {
	disp := displayColumn(rel)
	seen := make(map[string]struct{}, len(rows))
	out := make([]Option, 0, len(rows))
	for _, r := range rows {
		k := value.String(r.Get(rel.TargetKeyColumn))
		if strings.TrimSpace(k) == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		label := value.String(r.Get(disp))
		if label == "" {
			label = k
		}
		out = append(out, Option{Value: k, Label: label})
	}
	return out
}

// SortOptions orders options by label, case-insensitively.
func SortOptions(opts []Option) {
	sort.SliceStable(opts, func(i, j int) bool {
		return strings.ToLower(opts[i].Label) < strings.ToLower(opts[j].Label)
	})
}

// Resolve returns the display label of the first target row whose key equals
// source; a blank label shows the key. ok is false for an empty source or
// when no row matches.
func Resolve(rows []record.Record, rel schema.RelationshipMetadata, source any) (string, bool) {
	want := value.String(source)
	if strings.TrimSpace(want) == "" {
		return "", false
	}
	disp := displayColumn(rel)
	for _, r := range rows {
		if value.String(r.Get(rel.TargetKeyColumn)) != want {
			continue
		}
		if label := value.String(r.Get(disp)); label != "" {
			return label, true
		}
		return want, true
	}
	return "", false
}

// Index is a key -> label map built once from a snapshot of target rows.
type Index map[string]string

func NewIndex(rows []record.Record, rel schema.RelationshipMetadata) Index {
	idx := make(Index, len(rows))
	for _, o := range Options(rows, rel) {
		idx[o.Value] = o.Label
	}
	return idx
}

// Lookup behaves like Resolve.
func (idx Index) Lookup(source any) (string, bool) {
	l, ok := idx[value.String(source)]
	return l, ok
}

// Display is the label for source, or the raw source value on a miss.
func (idx Index) Display(source any) string {
	if l, ok := idx.Lookup(source); ok {
		return l
	}
	return value.String(source)
}

// Resolver fetches target rows on demand.
type Resolver struct {
	Records record.Reader
}

func NewResolver(r record.Reader) *Resolver {
	return &Resolver{Records: r}
}

func (r *Resolver) fetch(ctx context.Context, entity string, rel schema.RelationshipMetadata) ([]record.Record, error) {
	rows, err := r.Records.GetRecords(ctx, entity, rel.TargetModule)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rel.TargetModule, err)
	}
	return rows, nil
}

func (r *Resolver) ResolveOptions(ctx context.Context, entity string, rel schema.RelationshipMetadata) ([]Option, error) {
	rows, err := r.fetch(ctx, entity, rel)
	if err != nil {
		return nil, err
	}
	return Options(rows, rel), nil
}

func (r *Resolver) ResolveValue(ctx context.Context, entity string, rel schema.RelationshipMetadata, source any) (string, bool, error) {
	rows, err := r.fetch(ctx, entity, rel)
	if err != nil {
		return "", false, err
	}
	label, ok := Resolve(rows, rel, source)
	return label, ok, nil
}
