// Package pg is the Postgres backend: it implements the record accessor,
// schema registry, dashboard config store and view store over four jsonb
// tables.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"tabula/internal/dashboard"
	"tabula/internal/record"
	"tabula/internal/schema"
	"tabula/internal/table"
)

var (
	_ record.Accessor       = (*Store)(nil)
	_ schema.Registry       = (*Store)(nil)
	_ dashboard.ConfigStore = (*Store)(nil)
	_ table.ViewStore       = (*Store)(nil)
)

// Store implements record.Accessor, schema.Registry, dashboard.ConfigStore
// and table.ViewStore. Successful record mutations are published to hub.
type Store struct {
	db  *sql.DB
	hub *record.Hub

	idMu    sync.Mutex
	entropy io.Reader
}

func NewStore(db *sql.DB, hub *record.Hub) *Store {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Store{db: db, hub: hub, entropy: ulid.Monotonic(src, 0)}
}

func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the store's tables.
func (s *Store) Migrate(ctx context.Context, log zerolog.Logger) error {
	return ApplyDDL(ctx, s.db, DDL(), log)
}

func (s *Store) newID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Now(), s.entropy).String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (record.Record, error) {
	var (
		r   record.Record
		raw []byte
	)
	if err := sc.Scan(&r.ID, &r.Entity, &r.ModuleName, &raw, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return record.Record{}, err
	}
	r.Data = map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &r.Data); err != nil {
			return record.Record{}, fmt.Errorf("decode record %s: %w", r.ID, err)
		}
	}
	r.CreatedAt, r.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	return r, nil
}

const recordCols = `id, entity, module_name, data, created_at, updated_at`

func (s *Store) GetRecords(ctx context.Context, entity, module string) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+recordCols+` from tabula_records where entity = $1 and module_name = $2 order by id`,
		entity, module)
	if err != nil {
		return nil, fmt.Errorf("get records %s/%s: %w", entity, module, err)
	}
	defer rows.Close()

	out := make([]record.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func encodeData(data map[string]any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	return json.Marshal(data)
}

func (s *Store) AddRecord(ctx context.Context, entity, module string, data map[string]any) (record.Record, error) {
	raw, err := encodeData(data)
	if err != nil {
		return record.Record{}, record.NewStoreError("insert", "", err)
	}
	r, err := scanRecord(s.db.QueryRowContext(ctx,
		`insert into tabula_records (id, entity, module_name, data) values ($1, $2, $3, $4::jsonb)
		 returning `+recordCols,
		s.newID(), entity, module, string(raw)))
	if err != nil {
		return record.Record{}, record.NewStoreError("insert", "", err)
	}
	s.hub.Publish(record.Event{Type: record.EventInsert, Record: r.Clone()})
	return r, nil
}

// AddRecordsBulk inserts every row in one transaction.
func (s *Store) AddRecordsBulk(ctx context.Context, entity, module string, data []map[string]any) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, record.NewStoreError("bulk insert", "", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`insert into tabula_records (id, entity, module_name, data) values ($1, $2, $3, $4::jsonb)
		 returning `+recordCols)
	if err != nil {
		return 0, record.NewStoreError("bulk insert", "", err)
	}
	defer stmt.Close()

	inserted := make([]record.Record, 0, len(data))
	for _, d := range data {
		raw, err := encodeData(d)
		if err != nil {
			return 0, record.NewStoreError("bulk insert", "", err)
		}
		r, err := scanRecord(stmt.QueryRowContext(ctx, s.newID(), entity, module, string(raw)))
		if err != nil {
			return 0, record.NewStoreError("bulk insert", "", err)
		}
		inserted = append(inserted, r)
	}
	if err := tx.Commit(); err != nil {
		return 0, record.NewStoreError("bulk insert", "", err)
	}
	for _, r := range inserted {
		s.hub.Publish(record.Event{Type: record.EventInsert, Record: r})
	}
	return len(inserted), nil
}

// UpdateRecordField sets one payload key; a nil value removes it.
func (s *Store) UpdateRecordField(ctx context.Context, id, field string, v any) error {
	var row *sql.Row
	if v == nil {
		row = s.db.QueryRowContext(ctx,
			`update tabula_records set data = data - $2::text, updated_at = now() where id = $1 returning `+recordCols,
			id, field)
	} else {
		raw, err := json.Marshal(v)
		if err != nil {
			return record.NewStoreError("update", id, err)
		}
		row = s.db.QueryRowContext(ctx,
			`update tabula_records set data = jsonb_set(data, array[$2::text], $3::jsonb, true), updated_at = now()
			 where id = $1 returning `+recordCols,
			id, field, string(raw))
	}
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.NewStoreError("update", id, record.ErrNotFound)
	}
	if err != nil {
		return record.NewStoreError("update", id, err)
	}
	s.hub.Publish(record.Event{Type: record.EventUpdate, Record: r})
	return nil
}

func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	var entity, module string
	err := s.db.QueryRowContext(ctx,
		`delete from tabula_records where id = $1 returning entity, module_name`, id).Scan(&entity, &module)
	if errors.Is(err, sql.ErrNoRows) {
		return record.NewStoreError("delete", id, record.ErrNotFound)
	}
	if err != nil {
		return record.NewStoreError("delete", id, err)
	}
	s.hub.Publish(record.Event{Type: record.EventDelete, Record: record.Record{ID: id, Entity: entity, ModuleName: module}})
	return nil
}
