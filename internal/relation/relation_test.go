package relation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabula/internal/record"
	"tabula/internal/relation"
	"tabula/internal/schema"
)

var vendorRel = schema.RelationshipMetadata{
	TargetModule:        "vendors",
	TargetKeyColumn:     "code",
	TargetDisplayColumn: "name",
}

func vendors() []record.Record {
	return []record.Record{
		{ID: "1", Data: map[string]any{"code": "V1", "name": "Acme"}},
		{ID: "2", Data: map[string]any{"code": "V2", "name": "Globex"}},
		{ID: "3", Data: map[string]any{"code": "", "name": "No key"}},
		{ID: "4", Data: map[string]any{"code": "V1", "name": "Duplicate"}},
		{ID: "5", Data: map[string]any{"code": 7.0}},
	}
}

func TestOptions(t *testing.T) {
	opts := relation.Options(vendors(), vendorRel)
	assert.Equal(t, []relation.Option{
		{Value: "V1", Label: "Acme"},
		{Value: "V2", Label: "Globex"},
		{Value: "7", Label: "7"},
	}, opts)

	relation.SortOptions(opts)
	assert.Equal(t, "7", opts[0].Value)
	assert.Equal(t, "Acme", opts[1].Label)
}

func TestResolve(t *testing.T) {
	testCases := []struct {
		name   string
		rel    schema.RelationshipMetadata
		source any
		label  string
		ok     bool
	}{
		{name: "match", rel: vendorRel, source: "V2", label: "Globex", ok: true},
		{name: "first match wins", rel: vendorRel, source: "V1", label: "Acme", ok: true},
		{name: "numeric key", rel: vendorRel, source: 7.0, label: "7", ok: true},
		{name: "miss", rel: vendorRel, source: "V9", ok: false},
		{name: "empty source", rel: vendorRel, source: "", ok: false},
		{name: "display falls back to key", rel: schema.RelationshipMetadata{TargetModule: "vendors", TargetKeyColumn: "code"}, source: "V2", label: "V2", ok: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			label, ok := relation.Resolve(vendors(), tc.rel, tc.source)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.label, label)
		})
	}
}

func TestIndexDisplay(t *testing.T) {
	idx := relation.NewIndex(vendors(), vendorRel)
	assert.Equal(t, "Acme", idx.Display("V1"))
	assert.Equal(t, "V9", idx.Display("V9"), "miss shows raw foreign key")
	assert.Equal(t, "", idx.Display(nil))
}

func TestResolverFollowsTargetRenames(t *testing.T) {
	ctx := context.Background()
	store := record.NewMemoryStore(nil)

	vendor, err := store.AddRecord(ctx, "acme", "vendors", map[string]any{"code": "V1", "name": "Acme"})
	require.NoError(t, err)
	_, err = store.AddRecord(ctx, "acme", "invoices", map[string]any{"vendor": "V1", "amount": 10.0})
	require.NoError(t, err)

	r := relation.NewResolver(store)

	label, ok, err := r.ResolveValue(ctx, "acme", vendorRel, "V1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Acme", label)

	before, _ := store.GetRecords(ctx, "acme", "invoices")
	require.NoError(t, store.UpdateRecordField(ctx, vendor.ID, "name", "Acme Corp"))

	label, _, err = r.ResolveValue(ctx, "acme", vendorRel, "V1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", label)

	after, _ := store.GetRecords(ctx, "acme", "invoices")
	assert.Equal(t, before, after, "source rows are untouched")

	opts, err := r.ResolveOptions(ctx, "acme", vendorRel)
	require.NoError(t, err)
	assert.Equal(t, []relation.Option{{Value: "V1", Label: "Acme Corp"}}, opts)
}
