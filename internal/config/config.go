// Package config loads process configuration from a YAML file, a .env file
// and TOKENSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TOKENSYNC_RPC_ENDPOINTS.
const EnvPrefix = "TOKENSYNC"

// RPCConfig configures the endpoint pool.
type RPCConfig struct {
	Endpoints       []string      `mapstructure:"endpoints"`
	WSEndpoint      string        `mapstructure:"ws_endpoint"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second per endpoint, 0 disables
	Burst           int           `mapstructure:"burst"`
	TerminalCodes   []int         `mapstructure:"terminal_codes"`
	ProbeInterval   time.Duration `mapstructure:"probe_interval"`
	ReprobeInterval time.Duration `mapstructure:"reprobe_interval"` // 0 disables re-probing earlier endpoints
}

// SyncConfig configures backfill, tailing and analysis.
type SyncConfig struct {
	Mints             []string      `mapstructure:"mints"`
	PageSize          int           `mapstructure:"page_size"`
	MaxPages          int           `mapstructure:"max_pages"`
	PageDelay         time.Duration `mapstructure:"page_delay"`
	InitialRecipients int           `mapstructure:"initial_recipients"`
	GapThreshold      time.Duration `mapstructure:"gap_threshold"`
	TailPageSize      int           `mapstructure:"tail_page_size"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	SwapPrograms      []string      `mapstructure:"swap_programs"`
	MaxDepth          int           `mapstructure:"max_depth"`
	HolderThreshold   int           `mapstructure:"holder_threshold"`
	ClusterRefresh    time.Duration `mapstructure:"cluster_refresh"` // 0 disables the refresh job
	RerunDelay        time.Duration `mapstructure:"rerun_delay"`     // wait before rerunning a transiently failed pass, 0 disables
}

// StorageConfig selects and configures the stores.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"` // memory | postgres
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"` // optional analytics mirror
	RedisAddr     string `mapstructure:"redis_addr"`     // optional cursor store
	RedisDB       int    `mapstructure:"redis_db"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text | json
	File       string `mapstructure:"file"`   // optional rotated log file
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// HTTPConfig configures the status API and the metrics listener.
type HTTPConfig struct {
	APIAddr     string `mapstructure:"api_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Config is the full process configuration.
type Config struct {
	RPC     RPCConfig     `mapstructure:"rpc"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc.endpoints", []string{"https://api.mainnet-beta.solana.com"})
	v.SetDefault("rpc.ws_endpoint", "")
	v.SetDefault("rpc.timeout", 10*time.Second)
	v.SetDefault("rpc.rate_limit", 0.0)
	v.SetDefault("rpc.burst", 1)
	v.SetDefault("rpc.terminal_codes", []int{})
	v.SetDefault("rpc.probe_interval", 5*time.Second)
	v.SetDefault("rpc.reprobe_interval", time.Duration(0))

	v.SetDefault("sync.mints", []string{})
	v.SetDefault("sync.page_size", 100)
	v.SetDefault("sync.max_pages", 100)
	v.SetDefault("sync.page_delay", 10*time.Second)
	v.SetDefault("sync.initial_recipients", 20)
	v.SetDefault("sync.gap_threshold", time.Hour)
	v.SetDefault("sync.tail_page_size", 1000)
	v.SetDefault("sync.poll_interval", 10*time.Second)
	v.SetDefault("sync.swap_programs", []string{})
	v.SetDefault("sync.max_depth", 5)
	v.SetDefault("sync.holder_threshold", 200)
	v.SetDefault("sync.cluster_refresh", time.Duration(0))
	v.SetDefault("sync.rerun_delay", 30*time.Second)

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.redis_addr", "")
	v.SetDefault("storage.redis_db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("http.api_addr", ":8080")
	v.SetDefault("http.metrics_addr", ":9090")
}

// Load reads configuration. A .env file in the working directory is loaded
// into the environment first; path may be empty to skip the YAML file.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.RPC.Endpoints = splitList(cfg.RPC.Endpoints)
	cfg.Sync.Mints = splitList(cfg.Sync.Mints)
	cfg.Sync.SwapPrograms = splitList(cfg.Sync.SwapPrograms)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList flattens comma-separated entries and drops blanks.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if len(c.RPC.Endpoints) == 0 {
		return errors.New("config: rpc.endpoints is empty")
	}
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: storage.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown storage.backend %q", c.Storage.Backend)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	return nil
}
