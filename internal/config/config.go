// Package config loads server settings from a YAML file, TABULA_* environment
// variables and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const envPrefix = "TABULA_"

type Config struct {
	Port          string `yaml:"port"`
	SeedDir       string `yaml:"seed_dir"`
	DashboardsDir string `yaml:"dashboards_dir"`
	DBURL         string `yaml:"db_url"`
	AutoMigrate   bool   `yaml:"auto_migrate"`
	LogLevel      string `yaml:"log_level"`
}

func def() Config {
	return Config{
		Port:          "8080",
		SeedDir:       "seed",
		DashboardsDir: "dashboards",
		LogLevel:      "info",
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, validation.By(checkPort)),
		validation.Field(&c.LogLevel, validation.Required, validation.By(checkLevel)),
	)
}

func checkPort(v interface{}) error {
	s, _ := v.(string)
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("invalid port %q", s)
	}
	return nil
}

func checkLevel(v interface{}) error {
	s, _ := v.(string)
	_, err := zerolog.ParseLevel(s)
	return err
}

// Level is the parsed log level; Validate guarantees it parses.
func (c Config) Level() zerolog.Level {
	l, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

// Memory reports whether the in-process stores should be used.
func (c Config) Memory() bool { return strings.TrimSpace(c.DBURL) == "" }

func loadYAML(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func getenv(lookup lookupFunc, k, fallback string) string {
	if v, ok := lookup(envPrefix + k); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getenvBool(lookup lookupFunc, k string, fallback bool) bool {
	if v, ok := lookup(envPrefix + k); ok {
		if b, ok := parseBool(v); ok {
			return b
		}
	}
	return fallback
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	}
	return false, false
}

// Load builds the configuration for the given command-line arguments
// (without the program name). A missing config file is not an error.
func Load(args []string) (Config, error) {
	return load(args, os.LookupEnv)
}

func load(args []string, lookup lookupFunc) (Config, error) {
	fset := flag.NewFlagSet("tabula", flag.ContinueOnError)
	path := fset.String("config", getenv(lookup, "CONFIG", "tabula.yaml"), "path to YAML config file")
	port := fset.String("port", "", "HTTP port")
	seed := fset.String("seed-dir", "", "directory with module schema YAML")
	dash := fset.String("dashboards-dir", "", "directory with dashboard config YAML")
	db := fset.String("db", "", "Postgres URL (empty = in-memory)")
	auto := fset.Bool("auto-migrate", false, "create tables on startup")
	level := fset.String("log-level", "", "log level (debug, info, warn, error)")
	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := def()
	if err := loadYAML(*path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config file: %w", err)
	}

	cfg.Port = getenv(lookup, "PORT", cfg.Port)
	cfg.SeedDir = getenv(lookup, "SEED_DIR", cfg.SeedDir)
	cfg.DashboardsDir = getenv(lookup, "DASHBOARDS_DIR", cfg.DashboardsDir)
	cfg.DBURL = getenv(lookup, "DB_URL", cfg.DBURL)
	cfg.AutoMigrate = getenvBool(lookup, "AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.LogLevel = getenv(lookup, "LOG_LEVEL", cfg.LogLevel)

	if fset.Changed("port") {
		cfg.Port = strings.TrimSpace(*port)
	}
	if fset.Changed("seed-dir") {
		cfg.SeedDir = strings.TrimSpace(*seed)
	}
	if fset.Changed("dashboards-dir") {
		cfg.DashboardsDir = strings.TrimSpace(*dash)
	}
	if fset.Changed("db") {
		cfg.DBURL = strings.TrimSpace(*db)
	}
	if fset.Changed("auto-migrate") {
		cfg.AutoMigrate = *auto
	}
	if fset.Changed("log-level") {
		cfg.LogLevel = strings.TrimSpace(*level)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}
