package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // numbering.year_timezone must resolve in slim images

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Numbering NumberingConfig
	Cascade   CascadeConfig
	Cache     CacheConfig
	Sweep     SweepConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name            string
	Env             string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NumberingConfig holds the keyed-lock settings used by document numbering and association ranking
type NumberingConfig struct {
	LockBackend  string        // local or redis
	LockTimeout  time.Duration // bounded wait before LOCK_TIMEOUT
	LockTTL      time.Duration // redis lock expiry, guards against crashed holders
	RetryOnce    bool          // one immediate retry after a timeout
	YearTimezone string        // timezone used to derive the default discriminator
}

// CascadeConfig holds the tariff-change recompute policy
type CascadeConfig struct {
	SyncThreshold int           // affected associations recomputed inline at or below this count
	BatchSize     int           // associations per batch transaction
	Workers       int           // concurrent batches
	QueueSize     int           // pending background cascade jobs
	JobTimeout    time.Duration // ceiling for one background cascade
}

// CacheConfig holds geographic statistics cache settings
type CacheConfig struct {
	Backend         string // memory, redis, tiered
	TTL             time.Duration
	CleanupInterval time.Duration
	KeyPrefix       string
	Channel         string // pub/sub channel for tiered invalidation
}

// SweepConfig holds the stale-price maintenance sweep settings
type SweepConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool   // Bridge zap entries to the OTLP logs pipeline
	ProfilingEnabled  bool   // Pyroscope continuous profiling
	ProfilerAddress   string // Pyroscope server, e.g. http://pyroscope:4040
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only, disable in prod for security)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with FONCIER_ prefix (e.g., FONCIER_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	return fromViper(v)
}

// fromViper builds, defaults and validates the configuration
func fromViper(v *viper.Viper) (*Config, error) {
	// Enable environment variable override
	v.SetEnvPrefix("FONCIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:            v.GetString("app.name"),
			Env:             v.GetString("app.env"),
			ShutdownTimeout: v.GetDuration("app.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Numbering: NumberingConfig{
			LockBackend:  v.GetString("numbering.lock_backend"),
			LockTimeout:  v.GetDuration("numbering.lock_timeout"),
			LockTTL:      v.GetDuration("numbering.lock_ttl"),
			RetryOnce:    !v.IsSet("numbering.retry_once") || v.GetBool("numbering.retry_once"),
			YearTimezone: v.GetString("numbering.year_timezone"),
		},
		Cascade: CascadeConfig{
			SyncThreshold: v.GetInt("cascade.sync_threshold"),
			BatchSize:     v.GetInt("cascade.batch_size"),
			Workers:       v.GetInt("cascade.workers"),
			QueueSize:     v.GetInt("cascade.queue_size"),
			JobTimeout:    v.GetDuration("cascade.job_timeout"),
		},
		Cache: CacheConfig{
			Backend:         v.GetString("cache.backend"),
			TTL:             v.GetDuration("cache.ttl"),
			CleanupInterval: v.GetDuration("cache.cleanup_interval"),
			KeyPrefix:       v.GetString("cache.key_prefix"),
			Channel:         v.GetString("cache.channel"),
		},
		Sweep: SweepConfig{
			Enabled:   !v.IsSet("sweep.enabled") || v.GetBool("sweep.enabled"),
			Interval:  v.GetDuration("sweep.interval"),
			BatchSize: v.GetInt("sweep.batch_size"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilerAddress:   v.GetString("telemetry.profiler_address"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "foncier-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.ShutdownTimeout == 0 {
		cfg.App.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "foncier"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	// Numbering defaults
	if cfg.Numbering.LockBackend == "" {
		cfg.Numbering.LockBackend = "local"
	}
	if cfg.Numbering.LockTimeout == 0 {
		cfg.Numbering.LockTimeout = 3 * time.Second
	}
	if cfg.Numbering.LockTTL == 0 {
		cfg.Numbering.LockTTL = 30 * time.Second
	}
	if cfg.Numbering.YearTimezone == "" {
		cfg.Numbering.YearTimezone = "Indian/Antananarivo"
	}
	// Cascade defaults
	if cfg.Cascade.SyncThreshold == 0 {
		cfg.Cascade.SyncThreshold = 200
	}
	if cfg.Cascade.BatchSize == 0 {
		cfg.Cascade.BatchSize = 100
	}
	if cfg.Cascade.Workers == 0 {
		cfg.Cascade.Workers = 4
	}
	if cfg.Cascade.QueueSize == 0 {
		cfg.Cascade.QueueSize = 64
	}
	if cfg.Cascade.JobTimeout == 0 {
		cfg.Cascade.JobTimeout = 10 * time.Minute
	}
	// Cache defaults
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 15 * time.Minute
	}
	if cfg.Cache.CleanupInterval == 0 {
		cfg.Cache.CleanupInterval = time.Minute
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "foncier:geo:district:"
	}
	if cfg.Cache.Channel == "" {
		cfg.Cache.Channel = "foncier:geo:invalidate"
	}
	// Sweep defaults
	if cfg.Sweep.Interval == 0 {
		cfg.Sweep.Interval = 5 * time.Minute
	}
	if cfg.Sweep.BatchSize == 0 {
		cfg.Sweep.BatchSize = 500
	}
	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "foncier-backend"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.ProfilerAddress == "" {
		cfg.Telemetry.ProfilerAddress = "http://localhost:4040"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	// Note: DBLogFullSQL defaults to false (disable in production)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Numbering.LockBackend {
	case "local", "redis":
	default:
		return fmt.Errorf("numbering.lock_backend must be 'local' or 'redis', got %q", c.Numbering.LockBackend)
	}
	if c.Numbering.LockTimeout < 0 {
		return fmt.Errorf("numbering.lock_timeout cannot be negative")
	}
	if c.Numbering.LockBackend == "redis" && c.Numbering.LockTTL <= c.Numbering.LockTimeout {
		return fmt.Errorf("numbering.lock_ttl (%s) must exceed numbering.lock_timeout (%s)",
			c.Numbering.LockTTL, c.Numbering.LockTimeout)
	}
	if _, err := time.LoadLocation(c.Numbering.YearTimezone); err != nil {
		return fmt.Errorf("numbering.year_timezone: %w", err)
	}

	if c.Cascade.SyncThreshold < 0 {
		return fmt.Errorf("cascade.sync_threshold cannot be negative")
	}
	if c.Cascade.BatchSize <= 0 || c.Cascade.Workers <= 0 || c.Cascade.QueueSize <= 0 {
		return fmt.Errorf("cascade.batch_size, cascade.workers and cascade.queue_size must be positive")
	}

	switch c.Cache.Backend {
	case "memory", "redis", "tiered":
	default:
		return fmt.Errorf("cache.backend must be 'memory', 'redis' or 'tiered', got %q", c.Cache.Backend)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		// Database tracing: full SQL logging is a security risk in production
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	// Validate telemetry configuration (all environments)
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// YearLocation returns the location used to derive the current-year discriminator
func (n *NumberingConfig) YearLocation() *time.Location {
	loc, err := time.LoadLocation(n.YearTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
