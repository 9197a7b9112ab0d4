package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		RefreshIntervalSec int      `toml:"refresh_interval_sec"`
		FreshnessSec       int      `toml:"freshness_sec"`
		Quote              string   `toml:"quote"`
		FallbackQuote      string   `toml:"fallback_quote"`
		DefaultSymbols     []string `toml:"default_symbols"`
		SnapshotEveryMin   int      `toml:"snapshot_every_min"`
		LogLevel           string   `toml:"log_level"`
	} `toml:"app"`

	Retry struct {
		MaxAttempts  int     `toml:"max_attempts"`
		BaseDelaySec float64 `toml:"base_delay_sec"`
		Factor       float64 `toml:"factor"`
		MaxDelaySec  float64 `toml:"max_delay_sec"`
	} `toml:"retry"`

	Exchange struct {
		Binance struct {
			RestURL           string `toml:"rest_url"`
			WsURL             string `toml:"ws_url"`
			HTTPTimeoutSec    int    `toml:"http_timeout_sec"`
			ReconnectDelaySec int    `toml:"reconnect_delay_sec"`
			FetchRetries      int    `toml:"fetch_retries"`
		} `toml:"binance"`
	} `toml:"exchange"`

	Storage struct {
		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`

		Redis struct {
			Enabled    bool   `toml:"enabled"`
			Addr       string `toml:"addr"`
			Password   string `toml:"password"`
			DB         int    `toml:"db"`
			Prefix     string `toml:"prefix"`
			TTLSeconds int    `toml:"ttl_seconds"`
			// Publisher routes session messages through redis instead of stdout.
			Publisher bool `toml:"publisher"`
		} `toml:"redis"`
	} `toml:"storage"`

	HTTP struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"http"`
}

// Load reads path, then .env and the environment override it.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	return finish(&cfg)
}

// Parse decodes a TOML document, applying the same overrides as Load.
func Parse(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, err
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := firstEnv("PRICEBOT_SQLITE_PATH", "DATABASE_NAME"); v != "" {
		cfg.Storage.SQLite.Path = v
		cfg.Storage.SQLite.Enabled = true
	}
	if v := firstEnv("PRICEBOT_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
		cfg.Storage.Postgres.Enabled = true
	}
	if v := firstEnv("PRICEBOT_REDIS_ADDR"); v != "" {
		cfg.Storage.Redis.Addr = v
		cfg.Storage.Redis.Enabled = true
	}
	if v := firstEnv("PRICEBOT_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
		cfg.HTTP.Enabled = true
	}
	if v := firstEnv("PRICEBOT_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func applyDefaults(cfg *Config) {
	if cfg.App.RefreshIntervalSec <= 0 {
		cfg.App.RefreshIntervalSec = 10
	}
	if cfg.App.FreshnessSec <= 0 {
		cfg.App.FreshnessSec = 60
	}
	if strings.TrimSpace(cfg.App.Quote) == "" {
		cfg.App.Quote = "USDC"
	}
	if strings.TrimSpace(cfg.App.FallbackQuote) == "" {
		cfg.App.FallbackQuote = "USDT"
	}
	if cfg.App.DefaultSymbols == nil {
		cfg.App.DefaultSymbols = []string{"SOL", "ETH", "BTC"}
	}
	if cfg.App.SnapshotEveryMin <= 0 {
		cfg.App.SnapshotEveryMin = 5
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.Retry.BaseDelaySec <= 0 {
		cfg.Retry.BaseDelaySec = 5
	}
	if cfg.Retry.Factor <= 0 {
		cfg.Retry.Factor = 2
	}

	b := &cfg.Exchange.Binance
	if b.RestURL == "" {
		b.RestURL = "https://api.binance.com"
	}
	if b.WsURL == "" {
		b.WsURL = "wss://stream.binance.com:9443/ws"
	}
	if b.HTTPTimeoutSec <= 0 {
		b.HTTPTimeoutSec = 10
	}
	if b.ReconnectDelaySec <= 0 {
		b.ReconnectDelaySec = 5
	}
	if b.FetchRetries <= 0 {
		b.FetchRetries = 2
	}

	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/pricebot.db"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "pricebot"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
}

func validate(cfg *Config) error {
	cfg.App.Quote = strings.ToUpper(strings.TrimSpace(cfg.App.Quote))
	cfg.App.FallbackQuote = strings.ToUpper(strings.TrimSpace(cfg.App.FallbackQuote))
	cfg.App.DefaultSymbols = normalizeSymbols(cfg.App.DefaultSymbols)

	if cfg.App.Quote == cfg.App.FallbackQuote {
		return errors.New("app.fallback_quote must differ from app.quote")
	}
	if cfg.Retry.Factor < 1 {
		return fmt.Errorf("retry.factor %.2f must be >= 1", cfg.Retry.Factor)
	}
	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return errors.New("storage.postgres.dsn empty but enabled")
	}
	if cfg.Storage.Redis.Enabled && strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
		return errors.New("storage.redis.addr empty but enabled")
	}
	if cfg.Storage.Redis.Publisher && !cfg.Storage.Redis.Enabled {
		return errors.New("storage.redis.publisher requires storage.redis.enabled")
	}
	return nil
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.App.RefreshIntervalSec) * time.Second
}

func (c *Config) Freshness() time.Duration {
	return time.Duration(c.App.FreshnessSec) * time.Second
}

func (c *Config) SnapshotEvery() time.Duration {
	return time.Duration(c.App.SnapshotEveryMin) * time.Minute
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Exchange.Binance.HTTPTimeoutSec) * time.Second
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Exchange.Binance.ReconnectDelaySec) * time.Second
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func (c *Config) RetryBaseDelay() time.Duration { return seconds(c.Retry.BaseDelaySec) }

func (c *Config) RetryMaxDelay() time.Duration { return seconds(c.Retry.MaxDelaySec) }
