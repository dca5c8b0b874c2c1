// Package config loads the backtest configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"tradesim/internal/logger"
	"tradesim/internal/model"
	"tradesim/internal/portfolio"
	"tradesim/internal/runner"
	"tradesim/internal/strategy"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Data sources an asset can be loaded from.
const (
	SourceSQLite  = "sqlite"
	SourceParquet = "parquet"
)

// Config holds the whole application configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	Workers  int    `yaml:"workers"`

	SQLitePath string        `yaml:"sqlite_path"` // bar history, default source
	Assets     []AssetConfig `yaml:"assets"`      // empty runs every symbol in SQLite

	Strategy strategy.BacktestConfig `yaml:"strategy"`

	Journal JournalConfig `yaml:"journal"`
	Redis   RedisConfig   `yaml:"redis"`
	Metrics MetricsConfig `yaml:"metrics"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// AssetConfig selects one asset and the periods to run it over.
type AssetConfig struct {
	Symbol      string              `yaml:"symbol"`
	Source      string              `yaml:"source"` // "sqlite" (default) or "parquet"
	Path        string              `yaml:"path"`   // parquet file
	Periods     []runner.Period     `yaml:"periods"`
	TimePeriods []runner.TimePeriod `yaml:"time_periods"`

	// Timeframe, when set, resamples the loaded bars to a coarser timeframe
	// ("15m", "1h") before running. Periods then index the resampled bars.
	Timeframe time.Duration `yaml:"timeframe"`

	// Instrument overrides for parquet sources; zero means unset.
	MinTick    float64 `yaml:"min_tick"`
	LotSize    float64 `yaml:"lot_size"`
	PointValue float64 `yaml:"point_value"`
}

// Instrument builds the instrument metadata of the asset.
func (a AssetConfig) Instrument() model.Instrument {
	inst := model.NewInstrument(a.Symbol)
	if a.MinTick > 0 {
		inst.MinTick = a.MinTick
	}
	if a.LotSize > 0 {
		inst.LotSize = a.LotSize
	}
	if a.PointValue > 0 {
		inst.PointValue = a.PointValue
	}
	return inst
}

// Work converts the asset into runner work.
func (a AssetConfig) Work() runner.Work {
	return runner.Work{Asset: a.Symbol, Periods: a.Periods, TimePeriods: a.TimePeriods}
}

// JournalConfig enables the SQLite trade journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RedisConfig enables report publishing to Redis.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// MetricsConfig controls the /metrics, /healthz and /ws/progress server.
// An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// NotifyConfig sends a batch completion alert to a webhook when URL is set.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// Default returns a runnable configuration: the SMA crossover over every
// symbol in data/bars.db.
func Default() *Config {
	return &Config{
		LogLevel:   "info",
		Workers:    runtime.NumCPU(),
		SQLitePath: "data/bars.db",
		Strategy: strategy.BacktestConfig{
			Strategy: strategy.SMACrossName,
			Params:   strategy.DefaultParams(),
			Book: portfolio.Options{
				Capital:      100000,
				ExchangeRate: 1,
				Risk:         portfolio.DefaultRiskLimits(),
			},
		},
		Journal: JournalConfig{Path: "data/journal.db"},
		Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "tradesim"},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

// Load reads path over Default, applies environment overrides and
// validates. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.SQLitePath = getEnv("TRADESIM_SQLITE_PATH", c.SQLitePath)
	c.Redis.Addr = getEnv("TRADESIM_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("TRADESIM_REDIS_PASSWORD", c.Redis.Password)
	c.Metrics.Addr = getEnv("TRADESIM_METRICS_ADDR", c.Metrics.Addr)
	c.LogLevel = getEnv("TRADESIM_LOG_LEVEL", c.LogLevel)
	c.Notify.WebhookURL = getEnv("TRADESIM_WEBHOOK_URL", c.Notify.WebhookURL)
	workers, err := getEnvInt("TRADESIM_WORKERS", c.Workers)
	if err != nil {
		return err
	}
	c.Workers = workers
	return nil
}

// Validate checks the configuration. Every error wraps ErrInvalid.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalid, c.Workers)
	}
	if capital := c.Strategy.Book.Capital; math.IsNaN(capital) || capital <= 0 {
		return fmt.Errorf("%w: capital must be > 0, got %v", ErrInvalid, capital)
	}
	if _, err := strategy.NewBacktest(c.Strategy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	seen := make(map[string]bool, len(c.Assets))
	for i, a := range c.Assets {
		if a.Symbol == "" {
			return fmt.Errorf("%w: asset %d has no symbol", ErrInvalid, i)
		}
		if seen[a.Symbol] {
			return fmt.Errorf("%w: duplicate asset %q", ErrInvalid, a.Symbol)
		}
		seen[a.Symbol] = true
		switch a.Source {
		case "", SourceSQLite:
			if c.SQLitePath == "" {
				return fmt.Errorf("%w: asset %q reads sqlite but sqlite_path is empty", ErrInvalid, a.Symbol)
			}
		case SourceParquet:
			if a.Path == "" {
				return fmt.Errorf("%w: parquet asset %q needs a path", ErrInvalid, a.Symbol)
			}
		default:
			return fmt.Errorf("%w: asset %q: unknown source %q", ErrInvalid, a.Symbol, a.Source)
		}
		if a.Timeframe < 0 || a.Timeframe%time.Second != 0 {
			return fmt.Errorf("%w: asset %q: timeframe %s must be a whole number of seconds", ErrInvalid, a.Symbol, a.Timeframe)
		}
		for _, p := range a.Periods {
			if p.From > p.To || p.From < 0 {
				return fmt.Errorf("%w: asset %q: bad period %s", ErrInvalid, a.Symbol, p)
			}
		}
	}
	if len(c.Assets) == 0 && c.SQLitePath == "" {
		return fmt.Errorf("%w: no assets and no sqlite_path", ErrInvalid)
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("%w: journal enabled without a path", ErrInvalid)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis enabled without an addr", ErrInvalid)
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, v)
	}
	return n, nil
}
