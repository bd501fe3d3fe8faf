package record_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabula/internal/record"
)

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := record.NewMemoryStore(nil)

	a, err := s.AddRecord(ctx, "acme", "invoices", map[string]any{"amount": 100.0, "vendor": "A"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)

	n, err := s.AddRecordsBulk(ctx, "acme", "invoices", []map[string]any{
		{"amount": 200.0, "vendor": "B"},
		{"amount": 50.0, "vendor": "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.AddRecord(ctx, "other", "invoices", map[string]any{"amount": 1.0})
	require.NoError(t, err)

	rows, err := s.GetRecords(ctx, "acme", "invoices")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, a.ID, rows[0].ID, "insertion order")
	assert.Equal(t, "B", rows[1].Get("vendor"))

	require.NoError(t, s.UpdateRecordField(ctx, a.ID, "amount", 150.0))
	require.NoError(t, s.UpdateRecordField(ctx, a.ID, "vendor", nil))
	rows, _ = s.GetRecords(ctx, "acme", "invoices")
	assert.Equal(t, 150.0, rows[0].Get("amount"))
	_, has := rows[0].Data["vendor"]
	assert.False(t, has)

	rows[0].Data["amount"] = -1.0
	again, _ := s.GetRecords(ctx, "acme", "invoices")
	assert.Equal(t, 150.0, again[0].Get("amount"), "callers get copies")

	require.NoError(t, s.DeleteRecord(ctx, a.ID))
	rows, _ = s.GetRecords(ctx, "acme", "invoices")
	assert.Len(t, rows, 2)

	err = s.DeleteRecord(ctx, a.ID)
	require.Error(t, err)
	assert.True(t, record.IsStoreError(err))
	assert.ErrorIs(t, err, record.ErrNotFound)

	err = s.UpdateRecordField(ctx, "missing", "amount", 1.0)
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestMemoryStorePublishesEvents(t *testing.T) {
	ctx := context.Background()
	hub := record.NewHub(8)
	events, cancel := hub.Subscribe()
	defer cancel()

	s := record.NewMemoryStore(hub)
	rec, err := s.AddRecord(ctx, "acme", "invoices", map[string]any{"amount": 1.0})
	require.NoError(t, err)
	require.NoError(t, s.UpdateRecordField(ctx, rec.ID, "amount", 2.0))
	require.NoError(t, s.DeleteRecord(ctx, rec.ID))

	var got []record.EventType
	for i := 0; i < 3; i++ {
		select {
		case ev := <-events:
			got = append(got, ev.Type)
			assert.Equal(t, "invoices", ev.Record.ModuleName)
			assert.Equal(t, rec.ID, ev.Record.ID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.Equal(t, []record.EventType{record.EventInsert, record.EventUpdate, record.EventDelete}, got)
}

func TestHubDropsWhenFull(t *testing.T) {
	hub := record.NewHub(1)
	events, cancel := hub.Subscribe()

	hub.Publish(record.Event{Type: record.EventInsert})
	hub.Publish(record.Event{Type: record.EventUpdate})

	assert.Equal(t, record.EventInsert, (<-events).Type)
	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)
}

func TestStoreError(t *testing.T) {
	err := record.NewStoreError("update", "01H", errors.New("boom"))
	assert.Equal(t, "record: update 01H: boom", err.Error())

	wrapped := fmt.Errorf("save: %w", err)
	assert.True(t, record.IsStoreError(wrapped))
	assert.False(t, record.IsStoreError(errors.New("other")))
	assert.False(t, record.IsStoreError(nil))
}
