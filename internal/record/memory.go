package record

import (
	"context"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type moduleKey struct {
	entity, module string
}

// MemoryStore is an in-process Accessor. Every successful mutation is
// published to the attached Hub.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[moduleKey]map[string]*Record
	owner   map[string]moduleKey // id -> module
	entropy io.Reader
	hub     *Hub
	now     func() time.Time
}

// NewMemoryStore creates an empty store publishing to hub (may be nil).
func NewMemoryStore(hub *Hub) *MemoryStore {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &MemoryStore{
		data:    make(map[moduleKey]map[string]*Record),
		owner:   make(map[string]moduleKey),
		entropy: ulid.Monotonic(src, 0),
		hub:     hub,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

// GetRecords returns the module's rows in insertion order.
func (s *MemoryStore) GetRecords(_ context.Context, entity, module string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.data[moduleKey{entity, module}]
	out := make([]Record, 0, len(byID))
	for _, r := range byID {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) AddRecord(_ context.Context, entity, module string, data map[string]any) (Record, error) {
	s.mu.Lock()
	rec := s.insertLocked(entity, module, data)
	s.mu.Unlock()

	s.hub.Publish(Event{Type: EventInsert, Record: rec.Clone()})
	return rec.Clone(), nil
}

func (s *MemoryStore) AddRecordsBulk(_ context.Context, entity, module string, data []map[string]any) (int, error) {
	s.mu.Lock()
	inserted := make([]Record, 0, len(data))
	for _, d := range data {
		inserted = append(inserted, s.insertLocked(entity, module, d).Clone())
	}
	s.mu.Unlock()

	for _, rec := range inserted {
		s.hub.Publish(Event{Type: EventInsert, Record: rec})
	}
	return len(inserted), nil
}

func (s *MemoryStore) insertLocked(entity, module string, data map[string]any) *Record {
	k := moduleKey{entity, module}
	if s.data[k] == nil {
		s.data[k] = make(map[string]*Record)
	}
	now := s.now()
	payload := make(map[string]any, len(data))
	for key, v := range data {
		payload[key] = v
	}
	rec := &Record{
		ID:         s.newID(),
		Entity:     entity,
		ModuleName: module,
		Data:       payload,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.data[k][rec.ID] = rec
	s.owner[rec.ID] = k
	return rec
}

func (s *MemoryStore) UpdateRecordField(_ context.Context, id, field string, v any) error {
	s.mu.Lock()
	k, ok := s.owner[id]
	if !ok {
		s.mu.Unlock()
		return NewStoreError("update", id, ErrNotFound)
	}
	rec := s.data[k][id]
	if v == nil {
		delete(rec.Data, field)
	} else {
		rec.Data[field] = v
	}
	rec.UpdatedAt = s.now()
	snapshot := rec.Clone()
	s.mu.Unlock()

	s.hub.Publish(Event{Type: EventUpdate, Record: snapshot})
	return nil
}

func (s *MemoryStore) DeleteRecord(_ context.Context, id string) error {
	s.mu.Lock()
	k, ok := s.owner[id]
	if !ok {
		s.mu.Unlock()
		return NewStoreError("delete", id, ErrNotFound)
	}
	delete(s.data[k], id)
	delete(s.owner, id)
	s.mu.Unlock()

	s.hub.Publish(Event{Type: EventDelete, Record: Record{ID: id, Entity: k.entity, ModuleName: k.module}})
	return nil
}
