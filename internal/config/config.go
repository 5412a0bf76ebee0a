package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Simulation SimulationConfig
	Bots       BotsConfig
	FX         FXConfig `mapstructure:"fx"`
	Venues     map[string]VenueConfig
	Ledger     LedgerConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Logging    LoggingConfig
}

// SimulationConfig controls the shared virtual clock.
type SimulationConfig struct {
	Seed        int64 `mapstructure:"seed"`
	TickMS      int   `mapstructure:"tick_ms"`
	BootOnStart bool  `mapstructure:"boot_on_start"`
}

// Tick is the real-time driver interval.
func (s SimulationConfig) Tick() time.Duration {
	return time.Duration(s.TickMS) * time.Millisecond
}

// BotsConfig selects which strategy bots run and what they may trade.
type BotsConfig struct {
	Enabled     []string `mapstructure:"enabled"`
	Instruments []string `mapstructure:"instruments"`
	Venues      []string `mapstructure:"venues"`
	CapitalUSD  float64  `mapstructure:"capital_usd"`
}

// FXConfig selects which FX agents run and which pairs and venues they use.
type FXConfig struct {
	Enabled []string `mapstructure:"enabled"`
	Pairs   []string `mapstructure:"pairs"`
	Venues  []string `mapstructure:"venues"`
}

// VenueConfig defines settings for a specific venue.
type VenueConfig struct {
	TakerFeePercent float64 `mapstructure:"taker_fee_percent"`
}

// LedgerConfig seeds the pool ledger.
type LedgerConfig struct {
	Pools       map[string]float64 `mapstructure:"pools"`
	HistorySize int                `mapstructure:"history_size"`
}

// ServerConfig defines the console server settings.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	CORSOrigin string `mapstructure:"cors_origin"`
}

// DatabaseConfig defines the journal database connection settings.
type DatabaseConfig struct {
	Enabled    bool
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	BufferSize int `mapstructure:"buffer_size"`
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Password, d.Host, d.Port, d.DBName)
}

// LoggingConfig defines the structured logger settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("botfeed")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config: %w", err)
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unmarshal config: %w", err)
	}
	err = config.Validate()
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.tick_ms", 50)
	v.SetDefault("simulation.boot_on_start", true)

	v.SetDefault("bots.capital_usd", 25000.0)

	v.SetDefault("venues", map[string]any{
		"binance":     map[string]any{"taker_fee_percent": 0.1},
		"bybit":       map[string]any{"taker_fee_percent": 0.055},
		"okx":         map[string]any{"taker_fee_percent": 0.08},
		"hyperliquid": map[string]any{"taker_fee_percent": 0.035},
		"stablefx":    map[string]any{"taker_fee_percent": 0.01},
		"curve":       map[string]any{"taker_fee_percent": 0.04},
		"uniswap":     map[string]any{"taker_fee_percent": 0.05},
		"kraken":      map[string]any{"taker_fee_percent": 0.26},
		"bitso":       map[string]any{"taker_fee_percent": 0.065},
	})

	v.SetDefault("ledger.pools", map[string]any{
		"clearing":   250000.0,
		"liquidity":  5000000.0,
		"settlement": 1000000.0,
		"treasury":   2500000.0,
	})
	v.SetDefault("ledger.history_size", 200)

	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.cors_origin", "*")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "botfeed")
	v.SetDefault("database.password", "botfeed")
	v.SetDefault("database.dbname", "botfeed")
	v.SetDefault("database.buffer_size", 1024)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks configuration validity.
func (c Config) Validate() error {
	if c.Simulation.TickMS <= 0 {
		return fmt.Errorf("simulation tick must be positive")
	}
	if c.Bots.CapitalUSD <= 0 {
		return fmt.Errorf("bot capital must be positive")
	}
	for name, venue := range c.Venues {
		if venue.TakerFeePercent < 0 || venue.TakerFeePercent >= 100 {
			return fmt.Errorf("invalid taker fee for venue %s: %v", name, venue.TakerFeePercent)
		}
	}
	for pool, balance := range c.Ledger.Pools {
		if balance < 0 {
			return fmt.Errorf("negative opening balance for pool %s", pool)
		}
	}
	if c.Database.Enabled && c.Database.BufferSize <= 0 {
		return fmt.Errorf("journal buffer size must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

// NewLogger builds the structured logger described by the logging section.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
