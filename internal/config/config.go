// Package config loads the YAML configuration for backtest runs.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"equity-backtest-lab/internal/strategy"
)

// Validation errors.
var (
	ErrNoSymbols          = errors.New("config: at least one symbol is required")
	ErrNonPositiveCash    = errors.New("config: initial_cash must be positive")
	ErrNegativeCommission = errors.New("config: commission_per_share must not be negative")
	ErrNegativeSlippage   = errors.New("config: slippage_bps must not be negative")
	ErrUnknownBackend     = errors.New("config: storage backend must be memory or database")
	ErrMissingDSN         = errors.New("config: database backend requires postgres_dsn and clickhouse_dsn")
)

// Storage backend names. The database backend keeps run records and fill
// logs in Postgres and bars and equity curves in ClickHouse.
const (
	BackendMemory   = "memory"
	BackendDatabase = "database"
)

// Config is the top-level configuration for a backtest run.
type Config struct {
	Engine   Engine          `yaml:"engine"`
	Data     Data            `yaml:"data"`
	Strategy strategy.Config `yaml:"strategy"`
	Storage  Storage         `yaml:"storage"`
	Server   Server          `yaml:"server"`
}

// Engine holds the cost model and starting capital.
type Engine struct {
	InitialCash        float64 `yaml:"initial_cash"`
	CommissionPerShare float64 `yaml:"commission_per_share"`
	SlippageBps        float64 `yaml:"slippage_bps"`
}

// Data selects the bars to replay.
type Data struct {
	Symbols []string `yaml:"symbols"`
	CSVDir  string   `yaml:"csv_dir"` // one <symbol>.csv per symbol; empty means load from storage
	StartMs int64    `yaml:"start_ms"`
	EndMs   int64    `yaml:"end_ms"` // 0 means no upper bound
}

// Storage selects where bars are read from and results are written to.
type Storage struct {
	Backend       string `yaml:"backend"` // memory or database
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// Server holds the event stream listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Default returns a config with the standard cost model and memory storage.
func Default() *Config {
	return &Config{
		Engine: Engine{
			InitialCash:        100_000,
			CommissionPerShare: 0.005,
			SlippageBps:        0,
		},
		Storage: Storage{Backend: BackendMemory},
		Server:  Server{Host: "127.0.0.1", Port: 8080},
	}
}

// Load reads the YAML configuration file at the given path, parses it on
// top of the defaults, applies environment variable overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set. DSNs carry
// credentials and should not live in checked-in config files.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
}

// Validate checks the cost model and storage selection.
func (c *Config) Validate() error {
	if len(c.Data.Symbols) == 0 {
		return ErrNoSymbols
	}
	if c.Engine.InitialCash <= 0 {
		return ErrNonPositiveCash
	}
	if c.Engine.CommissionPerShare < 0 {
		return ErrNegativeCommission
	}
	if c.Engine.SlippageBps < 0 {
		return ErrNegativeSlippage
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendDatabase:
		if c.Storage.PostgresDSN == "" || c.Storage.ClickhouseDSN == "" {
			return ErrMissingDSN
		}
	default:
		return ErrUnknownBackend
	}
	return nil
}
