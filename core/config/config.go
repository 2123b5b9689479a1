// Package config loads harness settings from YAML files and ADJGRAPH_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adalundhe/adjgraph/core/graphstore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ADJGRAPH_"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Generator GeneratorConfig `yaml:"generator"`
	Walk      WalkConfig      `yaml:"walk"`
	Grow      GrowConfig      `yaml:"grow"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type StoreConfig struct {
	Path         string        `yaml:"path"`
	Driver       string        `yaml:"driver"`
	Dim          int           `yaml:"dim"`
	Degree       int           `yaml:"degree"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
}

type GeneratorConfig struct {
	Count     int     `yaml:"count"`
	Radius    float32 `yaml:"radius"`
	BatchSize int     `yaml:"batch_size"`
	// Seed drives every random draw of a run. Zero picks a fresh seed.
	Seed uint64 `yaml:"seed"`
}

type WalkConfig struct {
	Samples     int    `yaml:"samples"`
	Hops        uint32 `yaml:"hops"`
	Parallelism int    `yaml:"parallelism"`
}

type GrowConfig struct {
	Count int `yaml:"count"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Format is "text", "json" or "auto" (text on a terminal).
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	// Addr serves /metrics when non-empty.
	Addr string `yaml:"addr"`
}

func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:         "adjgraph.db",
			Driver:       graphstore.DriverCGO,
			Dim:          128,
			Degree:       32,
			MaxOpenConns: graphstore.DefaultMaxOpenConns,
			BusyTimeout:  graphstore.DefaultBusyTimeout,
		},
		Generator: GeneratorConfig{
			Count:     10000,
			Radius:    100,
			BatchSize: 1000,
		},
		Walk: WalkConfig{
			Samples:     100,
			Hops:        10,
			Parallelism: 4,
		},
		Grow: GrowConfig{
			Count: 100,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Shape returns the configured vector dimension and degree.
func (c *Config) Shape() graphstore.Shape {
	return graphstore.Shape{Dim: c.Store.Dim, Degree: c.Store.Degree}
}

// DBConfig returns the connection settings for the configured store.
func (c *Config) DBConfig() graphstore.DBConfig {
	db := graphstore.DefaultDBConfig(c.Store.Path)
	db.Driver = c.Store.Driver
	if c.Store.MaxOpenConns > 0 {
		db.MaxOpenConns = c.Store.MaxOpenConns
		db.MaxIdleConns = min(db.MaxIdleConns, db.MaxOpenConns)
	}
	db.BusyTimeout = c.Store.BusyTimeout
	return db
}

// Load builds a config from defaults, then each existing file in paths in
// order, then the environment. Missing files are skipped.
func Load(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		if err := loadYAMLFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if err := applyEnvironment(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAMLFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// applyEnvironment overlays ADJGRAPH_* variables. Malformed values are
// reported rather than ignored.
func applyEnvironment(cfg *Config) error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	setString("DB", &cfg.Store.Path)
	setString("DRIVER", &cfg.Store.Driver)
	setInt("DIM", &cfg.Store.Dim)
	setInt("DEGREE", &cfg.Store.Degree)
	setInt("COUNT", &cfg.Generator.Count)
	setInt("BATCH_SIZE", &cfg.Generator.BatchSize)
	setInt("SAMPLES", &cfg.Walk.Samples)
	setInt("PARALLELISM", &cfg.Walk.Parallelism)
	setInt("GROW_COUNT", &cfg.Grow.Count)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FORMAT", &cfg.Log.Format)
	setString("METRICS_ADDR", &cfg.Metrics.Addr)

	if v := os.Getenv(EnvPrefix + "SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSEED: %w", EnvPrefix, err))
		} else {
			cfg.Generator.Seed = n
		}
	}
	if v := os.Getenv(EnvPrefix + "HOPS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sHOPS: %w", EnvPrefix, err))
		} else {
			cfg.Walk.Hops = uint32(n)
		}
	}
	if v := os.Getenv(EnvPrefix + "RADIUS"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRADIUS: %w", EnvPrefix, err))
		} else {
			cfg.Generator.Radius = float32(f)
		}
	}
	if v := os.Getenv(EnvPrefix + "BUSY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sBUSY_TIMEOUT: %w", EnvPrefix, err))
		} else {
			cfg.Store.BusyTimeout = d
		}
	}

	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	var problems []string

	if err := c.Shape().Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if err := c.DBConfig().Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if !(c.Generator.Radius > 0 && c.Generator.Radius < 127) {
		problems = append(problems, fmt.Sprintf("generator.radius must be in (0, 127), got %v", c.Generator.Radius))
	}
	if c.Generator.Count < 0 {
		problems = append(problems, "generator.count must not be negative")
	}
	if c.Generator.BatchSize <= 0 {
		problems = append(problems, "generator.batch_size must be positive")
	}
	if c.Walk.Samples < 0 {
		problems = append(problems, "walk.samples must not be negative")
	}
	if c.Walk.Parallelism <= 0 {
		problems = append(problems, "walk.parallelism must be positive")
	}
	if c.Grow.Count < 0 {
		problems = append(problems, "grow.count must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "auto", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format must be auto, text or json, got %q", c.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
