package pg

// DDL returns the statements creating every table the store uses, keyed in
// execution order. Payloads, column lists, views and dashboard configs are
// jsonb so schema changes never need a migration.
func DDL() map[string]string {
	return map[string]string{
		"010_modules": `
create table if not exists tabula_modules (
  entity      text not null,
  branch      text not null default '',
  module_name text not null,
  columns     jsonb not null default '[]',
  updated_at  timestamptz not null default now(),
  primary key (entity, branch, module_name)
)`,
		"020_records": `
create table if not exists tabula_records (
  id          text primary key,
  entity      text not null,
  module_name text not null,
  data        jsonb not null default '{}',
  created_at  timestamptz not null default now(),
  updated_at  timestamptz not null default now()
)`,
		"021_records_module_idx": `
create index if not exists tabula_records_module_idx on tabula_records (entity, module_name, id)`,
		"030_dashboards": `
create table if not exists tabula_dashboards (
  entity     text not null,
  branch     text not null default '',
  config     jsonb not null,
  updated_at timestamptz not null default now(),
  primary key (entity, branch)
)`,
		"040_views": `
create table if not exists tabula_views (
  entity      text not null,
  module_name text not null,
  name        text not null,
  view        jsonb not null,
  updated_at  timestamptz not null default now(),
  primary key (entity, module_name, name)
)`,
	}
}
