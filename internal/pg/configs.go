package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"tabula/internal/dashboard"
	"tabula/internal/table"
)

func (s *Store) GetConfig(ctx context.Context, entity, branch string) (dashboard.Config, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`select config from tabula_dashboards where entity = $1 and branch = $2`, entity, branch).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return dashboard.Config{}, dashboard.ErrConfigNotFound
	}
	if err != nil {
		return dashboard.Config{}, fmt.Errorf("get dashboard %s/%s: %w", entity, branch, err)
	}
	var cfg dashboard.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return dashboard.Config{}, fmt.Errorf("decode dashboard %s/%s: %w", entity, branch, err)
	}
	return cfg, nil
}

func (s *Store) PutConfig(ctx context.Context, entity, branch string, cfg dashboard.Config) (dashboard.Config, error) {
	cfg, err := dashboard.Normalize(cfg)
	if err != nil {
		return dashboard.Config{}, err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return dashboard.Config{}, err
	}
	if _, err := s.db.ExecContext(ctx,
		`insert into tabula_dashboards (entity, branch, config) values ($1, $2, $3::jsonb)
		 on conflict (entity, branch) do update set config = excluded.config, updated_at = now()`,
		entity, branch, string(raw)); err != nil {
		return dashboard.Config{}, fmt.Errorf("put dashboard %s/%s: %w", entity, branch, err)
	}
	return cfg, nil
}

func (s *Store) DeleteConfig(ctx context.Context, entity, branch string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from tabula_dashboards where entity = $1 and branch = $2`, entity, branch)
	if err != nil {
		return fmt.Errorf("delete dashboard %s/%s: %w", entity, branch, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dashboard.ErrConfigNotFound
	}
	return nil
}

func (s *Store) GetView(ctx context.Context, entity, module, name string) (table.View, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`select view from tabula_views where entity = $1 and module_name = $2 and name = $3`,
		entity, module, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return table.View{}, table.ErrViewNotFound
	}
	if err != nil {
		return table.View{}, fmt.Errorf("get view %s: %w", name, err)
	}
	var v table.View
	if err := json.Unmarshal(raw, &v); err != nil {
		return table.View{}, fmt.Errorf("decode view %s: %w", name, err)
	}
	return v, nil
}

func (s *Store) PutView(ctx context.Context, entity, module, name string, v table.View) error {
	if err := v.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`insert into tabula_views (entity, module_name, name, view) values ($1, $2, $3, $4::jsonb)
		 on conflict (entity, module_name, name) do update set view = excluded.view, updated_at = now()`,
		entity, module, name, string(raw)); err != nil {
		return fmt.Errorf("put view %s: %w", name, err)
	}
	return nil
}

func (s *Store) ListViews(ctx context.Context, entity, module string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select name from tabula_views where entity = $1 and module_name = $2 order by name`, entity, module)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
