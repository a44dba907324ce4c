// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultUserAgent identifies the auditor to crawled sites.
const DefaultUserAgent = "Mozilla/5.0 (compatible; AISEOTurbo/1.0; +https://aiseoturbo.com)"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Report    ReportConfig    `mapstructure:"report"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	DB        DBConfig        `mapstructure:"db"`
	Storage   StorageConfig   `mapstructure:"storage"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// RequestTimeoutSeconds bounds a whole API request, audits included.
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs a single audit crawl.
type CrawlerConfig struct {
	UserAgent     string `mapstructure:"user_agent"`
	MaxPages      int    `mapstructure:"max_pages"`
	RespectRobots bool   `mapstructure:"respect_robots"`
}

// HTTPConfig configures outbound HTTP.
type HTTPConfig struct {
	TimeoutSeconds      int `mapstructure:"timeout_seconds"`
	ProbeTimeoutSeconds int `mapstructure:"probe_timeout_seconds"`
}

// ReportConfig caps the sample lists in a report.
type ReportConfig struct {
	MaxDuplicates  int `mapstructure:"max_duplicates"`
	MaxRedirects   int `mapstructure:"max_redirects"`
	MaxBrokenLinks int `mapstructure:"max_broken_links"`
	// MemoryCapacity bounds the in-memory report store.
	MemoryCapacity int `mapstructure:"memory_capacity"`
}

// RateLimitConfig limits audits per client.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Backend is "memory" or "redis".
	Backend       string `mapstructure:"backend"`
	Requests      int    `mapstructure:"requests"`
	WindowSeconds int    `mapstructure:"window_seconds"`
}

// RedisConfig points at the shared rate-limit store.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// DBConfig controls the Postgres report store. An empty DSN keeps reports in
// memory.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	EnsureSchema    bool          `mapstructure:"ensure_schema"`
}

// StorageConfig selects where report JSON is archived.
type StorageConfig struct {
	// Backend is "none", "memory", "local", or "gcs".
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
	// LocalDir is the archive root for the local backend.
	LocalDir string `mapstructure:"local_dir"`
	Prefix   string `mapstructure:"prefix"`
}

// PubSubConfig holds the completion notification topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig tunes the progress hub and its sinks.
type ProgressConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	LogEnabled        bool `mapstructure:"log_enabled"`
	PrometheusEnabled bool `mapstructure:"prometheus_enabled"`
	BufferSize        int  `mapstructure:"buffer_size"`
	MaxBatchEvents    int  `mapstructure:"max_batch_events"`
	MaxBatchWaitMs    int  `mapstructure:"max_batch_wait_ms"`
	SinkTimeoutMs     int  `mapstructure:"sink_timeout_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	// LogSpans writes finished spans to the debug log.
	LogSpans bool `mapstructure:"log_spans"`
}

// Load builds a Config from an optional file and the environment. Env vars
// use the AUDITOR_ prefix (AUDITOR_CRAWLER_MAX_PAGES); PORT also sets
// server.port.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUDITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "AUDITOR_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 150)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("crawler.user_agent", DefaultUserAgent)
	v.SetDefault("crawler.max_pages", 10)
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.probe_timeout_seconds", 10)
	v.SetDefault("report.max_duplicates", 3)
	v.SetDefault("report.max_redirects", 5)
	v.SetDefault("report.max_broken_links", 5)
	v.SetDefault("report.memory_capacity", 500)
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.requests", 3)
	v.SetDefault("ratelimit.window_seconds", 3600)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "auditor:ratelimit:")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "audit_reports")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("db.ensure_schema", true)
	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.local_dir", "")
	v.SetDefault("storage.prefix", "audits")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_enabled", true)
	v.SetDefault("progress.prometheus_enabled", true)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 256)
	v.SetDefault("progress.max_batch_wait_ms", 500)
	v.SetDefault("progress.sink_timeout_ms", 5000)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.service_name", "lite-site-auditor")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.log_spans", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.ProbeTimeoutSeconds <= 0 {
		return fmt.Errorf("http.probe_timeout_seconds must be > 0")
	}
	if c.Report.MaxDuplicates < 0 || c.Report.MaxRedirects < 0 || c.Report.MaxBrokenLinks < 0 {
		return fmt.Errorf("report sample sizes must be >= 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case "memory":
		case "redis":
			if c.Redis.Addr == "" {
				return fmt.Errorf("redis.addr must be set when ratelimit.backend is redis")
			}
		default:
			return fmt.Errorf("ratelimit.backend must be memory or redis, got %q", c.RateLimit.Backend)
		}
		if c.RateLimit.Requests <= 0 || c.RateLimit.WindowSeconds <= 0 {
			return fmt.Errorf("ratelimit.requests and ratelimit.window_seconds must be > 0")
		}
	}
	switch c.Storage.Backend {
	case "", "none", "memory":
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set when storage.backend is gcs")
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set when storage.backend is local")
		}
	default:
		return fmt.Errorf("storage.backend must be none, memory, local, or gcs, got %q", c.Storage.Backend)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}
	return nil
}

// FetchTimeout is the per-page fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// ProbeTimeout is the budget for one robots.txt or sitemap.xml probe.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.HTTP.ProbeTimeoutSeconds) * time.Second
}

// RequestTimeout is the whole-request budget applied by the API server.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// RateLimitWindow is the limiter's accounting window.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}
