package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		HTTPAddr    string `yaml:"http_addr"`
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Store struct {
		Backend       string `yaml:"backend"` // redis | memory
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
		SQLitePath    string `yaml:"sqlite_path"` // "off" disables the run journal
	} `yaml:"store"`

	Analysis struct {
		EMAFast         int           `yaml:"ema_fast"`
		EMASlow         int           `yaml:"ema_slow"`
		RSIPeriod       int           `yaml:"rsi_period"`
		DefaultLookback int           `yaml:"default_lookback"`
		Forecaster      string        `yaml:"forecaster"` // weighted | process
		ForecastCommand string        `yaml:"forecast_command"`
		ForecastTimeout time.Duration `yaml:"forecast_timeout"`
		PersistTimeout  time.Duration `yaml:"persist_timeout"`
	} `yaml:"analysis"`

	Provider struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
		RPS     float64       `yaml:"rps"`
	} `yaml:"provider"`

	Broadcast struct {
		WatchTickers    []string      `yaml:"watch_tickers"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
		TopMoversLimit  int           `yaml:"top_movers_limit"`
		Relay           string        `yaml:"relay"` // local | redis
		RelayChannel    string        `yaml:"relay_channel"`
	} `yaml:"broadcast"`

	Alerts struct {
		WebhookURL       string `yaml:"webhook_url"`
		TelegramBotToken string `yaml:"telegram_bot_token"`
		TelegramChatID   string `yaml:"telegram_chat_id"`
	} `yaml:"alerts"`
}

// Load reads config from a YAML file (missing is fine), then .env, then
// environment variable overrides, then fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, relying on actual environment variables")
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.HTTPAddr, "HTTP_ADDR")
	setString(&c.Server.MetricsAddr, "METRICS_ADDR")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	setString(&c.Store.Backend, "STORE_BACKEND")
	setString(&c.Store.RedisAddr, "REDIS_ADDR")
	setString(&c.Store.RedisPassword, "REDIS_PASSWORD")
	setString(&c.Store.SQLitePath, "SQLITE_PATH")

	setString(&c.Analysis.Forecaster, "FORECASTER")
	setString(&c.Analysis.ForecastCommand, "FORECAST_COMMAND")

	setString(&c.Provider.BaseURL, "PROVIDER_BASE_URL")

	setString(&c.Broadcast.Relay, "RELAY")
	setString(&c.Broadcast.RelayChannel, "RELAY_CHANNEL")
	setString(&c.Alerts.WebhookURL, "ALERT_WEBHOOK_URL")
	setString(&c.Alerts.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Alerts.TelegramChatID, "TELEGRAM_CHAT_ID")

	if v := os.Getenv("WATCH_TICKERS"); v != "" {
		c.Broadcast.WatchTickers = ParseTickers(v)
	}

	ints := []struct {
		dst *int
		key string
	}{
		{&c.Store.RedisDB, "REDIS_DB"},
		{&c.Analysis.EMAFast, "EMA_FAST"},
		{&c.Analysis.EMASlow, "EMA_SLOW"},
		{&c.Analysis.RSIPeriod, "RSI_PERIOD"},
		{&c.Analysis.DefaultLookback, "DEFAULT_LOOKBACK"},
		{&c.Broadcast.TopMoversLimit, "TOP_MOVERS_LIMIT"},
	}
	for _, e := range ints {
		if err := setInt(e.dst, e.key); err != nil {
			return err
		}
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&c.Analysis.ForecastTimeout, "FORECAST_TIMEOUT"},
		{&c.Analysis.PersistTimeout, "PERSIST_TIMEOUT"},
		{&c.Provider.Timeout, "PROVIDER_TIMEOUT"},
		{&c.Broadcast.RefreshInterval, "REFRESH_INTERVAL"},
	}
	for _, e := range durations {
		if err := setDuration(e.dst, e.key); err != nil {
			return err
		}
	}

	if v := os.Getenv("PROVIDER_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PROVIDER_RPS: %w", err)
		}
		c.Provider.RPS = rps
	}
	return nil
}

func (c *Config) applyDefaults() {
	defString(&c.Server.HTTPAddr, ":8080")
	defString(&c.Server.MetricsAddr, ":9090")
	defString(&c.Log.Level, "info")
	defString(&c.Log.Format, "json")

	defString(&c.Store.Backend, "redis")
	defString(&c.Store.RedisAddr, "localhost:6379")
	defString(&c.Store.SQLitePath, "data/stockpulse.db")

	defInt(&c.Analysis.EMAFast, 20)
	defInt(&c.Analysis.EMASlow, 50)
	defInt(&c.Analysis.RSIPeriod, 14)
	defInt(&c.Analysis.DefaultLookback, 30)
	defString(&c.Analysis.Forecaster, "weighted")
	defDuration(&c.Analysis.ForecastTimeout, 60*time.Second)
	defDuration(&c.Analysis.PersistTimeout, 5*time.Second)

	defString(&c.Provider.BaseURL, "https://query1.finance.yahoo.com")
	defDuration(&c.Provider.Timeout, 15*time.Second)
	if c.Provider.RPS == 0 {
		c.Provider.RPS = 5
	}

	// Default watch set: the four large caps the dashboard tracks
	if len(c.Broadcast.WatchTickers) == 0 {
		c.Broadcast.WatchTickers = []string{"AAPL", "MSFT", "GOOGL", "AMZN"}
	}
	c.Broadcast.WatchTickers = ParseTickers(strings.Join(c.Broadcast.WatchTickers, ","))
	defDuration(&c.Broadcast.RefreshInterval, 10*time.Second)
	defInt(&c.Broadcast.TopMoversLimit, 4)
	defString(&c.Broadcast.Relay, "local")
	defString(&c.Broadcast.RelayChannel, "pub:stock_update")
}

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate() error {
	a := c.Analysis
	if a.EMAFast < 1 || a.EMASlow < 1 || a.RSIPeriod < 1 {
		return fmt.Errorf("analysis periods must be >= 1")
	}
	if a.EMAFast > a.EMASlow {
		return fmt.Errorf("analysis.ema_fast (%d) must not exceed analysis.ema_slow (%d)", a.EMAFast, a.EMASlow)
	}
	switch a.Forecaster {
	case "weighted":
	case "process":
		if strings.TrimSpace(a.ForecastCommand) == "" {
			return fmt.Errorf("analysis.forecast_command is required when forecaster=process")
		}
	default:
		return fmt.Errorf("analysis.forecaster must be weighted or process, got %q", a.Forecaster)
	}
	switch c.Store.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("store.backend must be redis or memory, got %q", c.Store.Backend)
	}
	switch c.Broadcast.Relay {
	case "local":
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("broadcast.relay=redis needs store.redis_addr")
		}
	default:
		return fmt.Errorf("broadcast.relay must be local or redis, got %q", c.Broadcast.Relay)
	}
	if c.Broadcast.RefreshInterval <= 0 {
		return fmt.Errorf("broadcast.refresh_interval must be positive")
	}
	if len(c.Broadcast.WatchTickers) == 0 {
		return fmt.Errorf("broadcast.watch_tickers must not be empty")
	}
	if c.Broadcast.TopMoversLimit < 1 {
		return fmt.Errorf("broadcast.top_movers_limit must be >= 1")
	}
	if c.Provider.RPS <= 0 {
		return fmt.Errorf("provider.rps must be positive")
	}
	if (c.Alerts.TelegramBotToken == "") != (c.Alerts.TelegramChatID == "") {
		return fmt.Errorf("alerts.telegram_bot_token and alerts.telegram_chat_id must be set together")
	}
	return nil
}

// JournalEnabled reports whether analysis runs are journaled to SQLite.
func (c *Config) JournalEnabled() bool {
	return c.Store.SQLitePath != "off"
}

// TelegramEnabled reports whether top-mover alerts go to Telegram.
func (c *Config) TelegramEnabled() bool {
	return c.Alerts.TelegramBotToken != "" && c.Alerts.TelegramChatID != ""
}

// RefreshSpec is the cron schedule for the periodic refresh.
func (c *Config) RefreshSpec() string {
	return "@every " + c.Broadcast.RefreshInterval.String()
}

// ParseTickers splits a comma-separated list into upper-case tickers,
// skipping blanks.
func ParseTickers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func defString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func defInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func defDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}
