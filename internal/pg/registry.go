package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"tabula/internal/schema"
)

const moduleCols = `entity, branch, module_name, columns, updated_at`

func scanModule(sc scanner) (schema.Module, error) {
	var (
		m   schema.Module
		raw []byte
	)
	if err := sc.Scan(&m.Entity, &m.Branch, &m.ModuleName, &raw, &m.UpdatedAt); err != nil {
		return schema.Module{}, err
	}
	if err := json.Unmarshal(raw, &m.Columns); err != nil {
		return schema.Module{}, fmt.Errorf("decode module %s: %w", m.ModuleName, err)
	}
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}

// GetSchema mirrors schema.MemoryRegistry: an empty branch falls back to the
// only module of that name across branches.
func (s *Store) GetSchema(ctx context.Context, entity, module, branch string) (*schema.Module, error) {
	m, err := scanModule(s.db.QueryRowContext(ctx,
		`select `+moduleCols+` from tabula_modules where entity = $1 and branch = $2 and module_name = $3`,
		entity, branch, module))
	if err == nil {
		return &m, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get schema %s/%s: %w", entity, module, err)
	}
	if branch != "" {
		return nil, schema.ErrModuleNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`select `+moduleCols+` from tabula_modules where entity = $1 and lower(module_name) = lower($2) limit 2`,
		entity, module)
	if err != nil {
		return nil, fmt.Errorf("get schema %s/%s: %w", entity, module, err)
	}
	defer rows.Close()
	var found []schema.Module
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(found) != 1 {
		return nil, schema.ErrModuleNotFound
	}
	return &found[0], nil
}

func (s *Store) GetAllSchemas(ctx context.Context, entity, branch string) ([]schema.Module, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+moduleCols+` from tabula_modules where entity = $1 and ($2 = '' or branch = $2)
		 order by branch, module_name`,
		entity, branch)
	if err != nil {
		return nil, fmt.Errorf("list schemas %s: %w", entity, err)
	}
	defer rows.Close()
	out := make([]schema.Module, 0)
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) UpsertSchema(ctx context.Context, entity, module string, columns []schema.ColumnDefinition, branch string) (*schema.Module, error) {
	cols, err := schema.PrepareColumns(columns)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(cols)
	if err != nil {
		return nil, err
	}
	m, err := scanModule(s.db.QueryRowContext(ctx,
		`insert into tabula_modules (entity, branch, module_name, columns) values ($1, $2, $3, $4::jsonb)
		 on conflict (entity, branch, module_name)
		 do update set columns = excluded.columns, updated_at = now()
		 returning `+moduleCols,
		entity, branch, module, string(raw)))
	if err != nil {
		return nil, fmt.Errorf("upsert schema %s/%s: %w", entity, module, err)
	}
	return &m, nil
}

// DeleteModule removes the schema only; record payloads are left alone.
func (s *Store) DeleteModule(ctx context.Context, entity, module, branch string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from tabula_modules where entity = $1 and branch = $2 and module_name = $3`,
		entity, branch, module)
	if err != nil {
		return fmt.Errorf("delete module %s/%s: %w", entity, module, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schema.ErrModuleNotFound
	}
	return nil
}
