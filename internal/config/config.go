package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Server      ServerConfig      `mapstructure:"server"`
	MetricsAPI  MetricsAPIConfig  `mapstructure:"metrics_api"`
	Poller      PollerConfig      `mapstructure:"poller"`
	Broadcaster BroadcasterConfig `mapstructure:"broadcaster"`
	Feed        FeedConfig        `mapstructure:"feed"`
	Celebration CelebrationConfig `mapstructure:"celebration"`
	SLA         SLAConfig         `mapstructure:"sla"`
	Alerting    AlertingConfig    `mapstructure:"alerting"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig governs the ingest/operator HTTP listener.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MetricsAPIConfig captures dashboard API connectivity.
type MetricsAPIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	APIToken       string        `mapstructure:"api_token"`
}

// PollerConfig governs refresh cadence.
type PollerConfig struct {
	CounterInterval time.Duration `mapstructure:"counter_interval"`
	SummaryInterval time.Duration `mapstructure:"summary_interval"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// BroadcasterConfig bounds subscriber buffers.
type BroadcasterConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// FeedConfig bounds the live feed.
type FeedConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// CelebrationConfig tunes the notification queue.
type CelebrationConfig struct {
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// SLAConfig tunes the alert engine.
type SLAConfig struct {
	ScanInterval    time.Duration              `mapstructure:"scan_interval"`
	ForceScanWindow time.Duration              `mapstructure:"force_scan_window"`
	Thresholds      map[string]ThresholdConfig `mapstructure:"thresholds"`
}

// ThresholdConfig holds the per-category SLA bounds.
type ThresholdConfig struct {
	Warning  time.Duration `mapstructure:"warning"`
	Critical time.Duration `mapstructure:"critical"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the collaborating
// history store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JURUCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "jurucore")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.service", "jurucore")

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("metrics_api.request_timeout", "10s")
	v.SetDefault("metrics_api.user_agent", "jurucore/1.0")

	v.SetDefault("poller.counter_interval", "1s")
	v.SetDefault("poller.summary_interval", "30s")
	v.SetDefault("poller.fetch_timeout", "10s")
	v.SetDefault("poller.query_timeout", "2s")

	v.SetDefault("broadcaster.buffer_size", 64)

	v.SetDefault("feed.capacity", 15)

	v.SetDefault("celebration.capacity", 10)
	v.SetDefault("celebration.ttl", "8s")

	v.SetDefault("sla.scan_interval", "1m")
	v.SetDefault("sla.force_scan_window", "10s")
	v.SetDefault("sla.thresholds", map[string]any{
		"sync-freshness": map[string]any{"warning": "10m", "critical": "30m"},
	})

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Poller.CounterInterval <= 0 {
		return fmt.Errorf("poller.counter_interval must be greater than zero")
	}
	if c.Poller.SummaryInterval <= 0 {
		return fmt.Errorf("poller.summary_interval must be greater than zero")
	}
	if c.Feed.Capacity <= 0 {
		return fmt.Errorf("feed.capacity must be greater than zero")
	}
	if c.Celebration.Capacity <= 0 {
		return fmt.Errorf("celebration.capacity must be greater than zero")
	}
	if c.Celebration.TTL <= 0 {
		return fmt.Errorf("celebration.ttl must be greater than zero")
	}
	if c.SLA.ScanInterval <= 0 {
		return fmt.Errorf("sla.scan_interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
