package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tabula.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
seed_dir: /srv/seed
db_url: postgres://file
log_level: debug
`), 0o600))

	testCases := []struct {
		name string
		args []string
		env  map[string]string
		want Config
	}{
		{
			name: "defaults when the file is missing",
			args: []string{"--config", filepath.Join(dir, "none.yaml")},
			want: def(),
		},
		{
			name: "file over defaults",
			args: []string{"--config", path},
			want: Config{Port: "9000", SeedDir: "/srv/seed", DashboardsDir: "dashboards", DBURL: "postgres://file", LogLevel: "debug"},
		},
		{
			name: "env over file",
			args: []string{"--config", path},
			env:  map[string]string{"TABULA_PORT": "9100", "TABULA_AUTO_MIGRATE": "yes", "TABULA_DB_URL": " "},
			want: Config{Port: "9100", SeedDir: "/srv/seed", DashboardsDir: "dashboards", DBURL: "postgres://file", AutoMigrate: true, LogLevel: "debug"},
		},
		{
			name: "flags over env",
			args: []string{"--config", path, "--port", "9200", "--db", "", "--auto-migrate=false", "--log-level", "warn"},
			env:  map[string]string{"TABULA_PORT": "9100", "TABULA_AUTO_MIGRATE": "true"},
			want: Config{Port: "9200", SeedDir: "/srv/seed", DashboardsDir: "dashboards", LogLevel: "warn"},
		},
		{
			name: "config path from env",
			env:  map[string]string{"TABULA_CONFIG": path},
			want: Config{Port: "9000", SeedDir: "/srv/seed", DashboardsDir: "dashboards", DBURL: "postgres://file", LogLevel: "debug"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := load(tc.args, env(tc.env))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{name: "port", args: []string{"--port", "http"}},
		{name: "port range", env: map[string]string{"TABULA_PORT": "70000"}},
		{name: "log level", args: []string{"--log-level", "loud"}},
		{name: "unknown flag", args: []string{"--nope"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(append([]string{"--config", filepath.Join(t.TempDir(), "x.yaml")}, tc.args...), env(tc.env))
			assert.Error(t, err)
		})
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, Config{LogLevel: "warn"}.Level())
	assert.True(t, Config{DBURL: " "}.Memory())
	assert.False(t, Config{DBURL: "postgres://x"}.Memory())
}
