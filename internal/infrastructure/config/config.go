package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the catalog service configuration. Keys are read from
// config.toml and may be overridden with CATALOG_ prefixed environment
// variables, e.g. CATALOG_DATABASE_PASSWORD for database.password.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Crawler     CrawlerConfig     `mapstructure:"crawler"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Search      SearchConfig      `mapstructure:"search"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout, stderr or a file path
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
	MigrationsPath  string `mapstructure:"migrations_path"`
}

// DSN returns a postgres URL with user and password escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig points at the shared redis. An empty Host selects the
// in-memory stores.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + strconv.Itoa(r.Port)
}

type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
	MaxPageSize      int           `mapstructure:"max_page_size"`
	RateLimitRPS     float64       `mapstructure:"rate_limit_rps"` // per client IP, 0 disables
	RateLimitBurst   int           `mapstructure:"rate_limit_burst"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
}

type QueueConfig struct {
	PollInterval           time.Duration `mapstructure:"poll_interval"`
	JobTimeout             time.Duration `mapstructure:"job_timeout"`
	OrchestratorWorkers    int           `mapstructure:"orchestrator_workers"`
	PaginatorWorkers       int           `mapstructure:"paginator_workers"`
	UpsertWorkers          int           `mapstructure:"upsert_workers"`
	RefreshWorkers         int           `mapstructure:"refresh_workers"`
	StaleLockTimeout       time.Duration `mapstructure:"stale_lock_timeout"`
	JanitorInterval        time.Duration `mapstructure:"janitor_interval"`
	CompletedRetention     time.Duration `mapstructure:"completed_retention"`
	DedupeTTL              time.Duration `mapstructure:"dedupe_ttl"`
	IdempotencyKeyPrefix   string        `mapstructure:"idempotency_key_prefix"`
	IdempotencyCleanupTick time.Duration `mapstructure:"idempotency_cleanup_tick"`
}

type CrawlerConfig struct {
	PageLimit             int           `mapstructure:"page_limit"`
	ContinuationDelay     time.Duration `mapstructure:"continuation_delay"`
	CategoryAttempts      int           `mapstructure:"category_attempts"`
	CategoryBackoff       time.Duration `mapstructure:"category_backoff"`
	UpsertAttempts        int           `mapstructure:"upsert_attempts"`
	UpsertBackoff         time.Duration `mapstructure:"upsert_backoff"`
	ScheduleEnabled       bool          `mapstructure:"schedule_enabled"`
	ScheduleHour          int           `mapstructure:"schedule_hour"`
	ScheduleMinute        int           `mapstructure:"schedule_minute"`
	RefreshEnabled        bool          `mapstructure:"refresh_enabled"`
	RefreshInterval       time.Duration `mapstructure:"refresh_interval"`
	RefreshStaleAfter     time.Duration `mapstructure:"refresh_stale_after"`
	RefreshBatchSize      int           `mapstructure:"refresh_batch_size"`
	SourceMatchingEnabled bool          `mapstructure:"source_matching_enabled"`
}

// MarketplaceEndpointConfig holds credentials and limits of one upstream marketplace
type MarketplaceEndpointConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	AppKey            string  `mapstructure:"app_key"`
	AppSecret         string  `mapstructure:"app_secret"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type MarketplaceConfig struct {
	Domestic      MarketplaceEndpointConfig `mapstructure:"domestic"`
	International MarketplaceEndpointConfig `mapstructure:"international"`
}

type SearchConfig struct {
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
}

type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"` // OTLP gRPC
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"` // defaults to app.name
	Insecure          bool          `mapstructure:"insecure"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	PrometheusEnabled bool          `mapstructure:"prometheus_enabled"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// defaults lists every key. Environment overrides only reach keys viper
// knows about, so keys without a useful default are still listed.
var defaults = map[string]any{
	"app.name": "catalog-service",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "catalog",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,
	"database.migrations_path":    "file://migrations",

	"redis.host":     "",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":       15 * time.Second,
	"http.write_timeout":      30 * time.Second,
	"http.idle_timeout":       60 * time.Second,
	"http.shutdown_timeout":   30 * time.Second,
	"http.request_timeout":    20 * time.Second,
	"http.max_header_bytes":   1 << 20,
	"http.max_body_bytes":     1 << 20,
	"http.max_page_size":      100,
	"http.rate_limit_rps":     0.0,
	"http.rate_limit_burst":   0,
	"http.cors_allow_origins": []string{},
	"http.trusted_proxies":    []string{},

	"queue.poll_interval":            500 * time.Millisecond,
	"queue.job_timeout":              2 * time.Minute,
	"queue.orchestrator_workers":     1,
	"queue.paginator_workers":        5,
	"queue.upsert_workers":           10,
	"queue.refresh_workers":          2,
	"queue.stale_lock_timeout":       10 * time.Minute,
	"queue.janitor_interval":         time.Minute,
	"queue.completed_retention":      72 * time.Hour,
	"queue.dedupe_ttl":               24 * time.Hour,
	"queue.idempotency_key_prefix":   "catalog:dedupe:",
	"queue.idempotency_cleanup_tick": time.Hour,

	"crawler.page_limit":              25,
	"crawler.continuation_delay":      time.Second,
	"crawler.category_attempts":       3,
	"crawler.category_backoff":        2 * time.Second,
	"crawler.upsert_attempts":         3,
	"crawler.upsert_backoff":          time.Second,
	"crawler.schedule_enabled":        false,
	"crawler.schedule_hour":           3,
	"crawler.schedule_minute":         0,
	"crawler.refresh_enabled":         false,
	"crawler.refresh_interval":        time.Hour,
	"crawler.refresh_stale_after":     7 * 24 * time.Hour,
	"crawler.refresh_batch_size":      100,
	"crawler.source_matching_enabled": false,

	"search.cache_ttl":        10 * time.Minute,
	"search.provider_timeout": 20 * time.Second,

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "",
	"telemetry.insecure":                false,
	"telemetry.metrics_interval":        15 * time.Second,
	"telemetry.prometheus_enabled":      false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
}

var marketplaceBaseURLs = map[string]string{
	"domestic":      "https://api-gw.onebound.cn/1688",
	"international": "https://otapi.net/service-json",
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for name, baseURL := range marketplaceBaseURLs {
		prefix := "marketplace." + name + "."
		v.SetDefault(prefix+"base_url", baseURL)
		v.SetDefault(prefix+"app_key", "")
		v.SetDefault(prefix+"app_secret", "")
		v.SetDefault(prefix+"timeout_seconds", 30)
		v.SetDefault(prefix+"requests_per_second", 5.0)
		v.SetDefault(prefix+"burst", 5)
	}
}

// Load reads config.toml from ., ./config or /etc/catalog when present,
// then applies CATALOG_ environment overrides on top of the defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/catalog")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.derive()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// derive fills settings whose default depends on another setting
func (c *Config) derive() {
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.App.Name
	}
	if c.HTTP.RateLimitRPS > 0 && c.HTTP.RateLimitBurst == 0 {
		c.HTTP.RateLimitBurst = max(int(c.HTTP.RateLimitRPS)*2, 1)
	}
}

func (c *Config) validate() error {
	db := c.Database
	switch {
	case db.MaxOpenConns <= 0:
		return errors.New("database.max_open_conns must be positive")
	case db.MaxIdleConns < 0:
		return errors.New("database.max_idle_conns cannot be negative")
	case db.MaxIdleConns > db.MaxOpenConns:
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			db.MaxIdleConns, db.MaxOpenConns)
	}

	q := c.Queue
	if min(q.OrchestratorWorkers, q.PaginatorWorkers, q.UpsertWorkers, q.RefreshWorkers) < 0 {
		return errors.New("queue worker counts cannot be negative")
	}

	cr := c.Crawler
	if err := inRange("crawler.page_limit", cr.PageLimit, 1, 200); err != nil {
		return err
	}
	if err := inRange("crawler.schedule_hour", cr.ScheduleHour, 0, 23); err != nil {
		return err
	}
	if err := inRange("crawler.schedule_minute", cr.ScheduleMinute, 0, 59); err != nil {
		return err
	}

	if c.HTTP.RateLimitRPS < 0 {
		return errors.New("http.rate_limit_rps cannot be negative")
	}
	if r := c.Telemetry.SamplingRatio; r < 0 || r > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %g", r)
	}

	if c.App.Env == "production" {
		switch {
		case db.Password == "":
			return errors.New("database.password is required in production")
		case db.SSLMode == "disable":
			return errors.New("database.sslmode cannot be 'disable' in production")
		case slices.Contains(c.HTTP.CORSAllowOrigins, "*"):
			return errors.New("http.cors_allow_origins cannot contain '*' in production")
		}
	}
	return nil
}

func inRange(key string, n, lo, hi int) error {
	if n < lo || n > hi {
		return fmt.Errorf("%s must be between %d and %d, got %d", key, lo, hi, n)
	}
	return nil
}

// RedisEnabled reports whether a redis server is configured
func (c *Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}
