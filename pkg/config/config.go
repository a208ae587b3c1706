// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Database, Search, Redis, Kafka, Postgres, Analytics, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Search    SearchConfig    `yaml:"search"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	AllowOrigins    []string      `yaml:"allowOrigins"`
}

// Database sources.
const (
	SourceFile  = "file"
	SourceHTTP  = "http"
	SourceS3    = "s3"
	SourceMinio = "minio"
)

// DatabaseConfig says where the binary record database is fetched from.
// Path is a local file for the file source and the object key's file name
// hint otherwise; its suffix selects decompression.
type DatabaseConfig struct {
	Source       string        `yaml:"source"`
	Path         string        `yaml:"path"`
	URL          string        `yaml:"url"`
	Bucket       string        `yaml:"bucket"`
	Key          string        `yaml:"key"`
	Endpoint     string        `yaml:"endpoint"`
	Region       string        `yaml:"region"`
	AccessKey    string        `yaml:"accessKey"`
	SecretKey    string        `yaml:"secretKey"`
	UseSSL       bool          `yaml:"useSSL"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
	MaxRetries   int           `yaml:"maxRetries"`
}

// SearchConfig controls query result limits.
type SearchConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxResults   int `yaml:"maxResults"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents string `yaml:"searchEvents"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// AnalyticsConfig controls event batching and snapshot persistence.
type AnalyticsConfig struct {
	Port             int           `yaml:"port"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	Retention        time.Duration `yaml:"retention"`
	TopQueries       int           `yaml:"topQueries"`
}

// RateLimitConfig configures the per-process token bucket.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Source:       SourceFile,
			Path:         "data/api.db",
			Region:       "us-east-1",
			FetchTimeout: 30 * time.Second,
			MaxRetries:   3,
		},
		Search: SearchConfig{
			DefaultLimit: 50,
			MaxResults:   1000,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "apidocs-analytics",
			Topics: KafkaTopics{
				SearchEvents: "search-events",
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "apidocs",
			User:            "apidocs",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			Port:             8083,
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			SnapshotInterval: time.Minute,
			Retention:        7 * 24 * time.Hour,
			TopQueries:       20,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Source {
	case SourceFile:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for the file source"))
		}
	case SourceHTTP:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the http source"))
		}
	case SourceS3, SourceMinio:
		if c.Database.Bucket == "" || c.Database.Key == "" {
			errs = append(errs, fmt.Errorf("database.bucket and database.key are required for the %s source", c.Database.Source))
		}
		if c.Database.Source == SourceMinio && c.Database.Endpoint == "" {
			errs = append(errs, errors.New("database.endpoint is required for the minio source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.source %q", c.Database.Source))
	}
	if c.Search.DefaultLimit < 1 {
		errs = append(errs, errors.New("search.defaultLimit must be positive"))
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		errs = append(errs, errors.New("search.maxResults must be at least search.defaultLimit"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1) {
		errs = append(errs, errors.New("rateLimit.requestsPerSecond and rateLimit.burst must be positive"))
	}
	if c.Analytics.SnapshotInterval <= 0 {
		errs = append(errs, errors.New("analytics.snapshotInterval must be positive"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides reads ADS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	envInt("ADS_SERVER_PORT", &cfg.Server.Port)
	if v := os.Getenv("ADS_SERVER_ALLOW_ORIGINS"); v != "" {
		cfg.Server.AllowOrigins = strings.Split(v, ",")
	}

	envString("ADS_DATABASE_SOURCE", &cfg.Database.Source)
	envString("ADS_DATABASE_PATH", &cfg.Database.Path)
	envString("ADS_DATABASE_URL", &cfg.Database.URL)
	envString("ADS_DATABASE_BUCKET", &cfg.Database.Bucket)
	envString("ADS_DATABASE_KEY", &cfg.Database.Key)
	envString("ADS_DATABASE_ENDPOINT", &cfg.Database.Endpoint)
	envString("ADS_DATABASE_REGION", &cfg.Database.Region)
	envString("ADS_DATABASE_ACCESS_KEY", &cfg.Database.AccessKey)
	envString("ADS_DATABASE_SECRET_KEY", &cfg.Database.SecretKey)
	envBool("ADS_DATABASE_USE_SSL", &cfg.Database.UseSSL)

	envInt("ADS_SEARCH_DEFAULT_LIMIT", &cfg.Search.DefaultLimit)
	envInt("ADS_SEARCH_MAX_RESULTS", &cfg.Search.MaxResults)

	envBool("ADS_REDIS_ENABLED", &cfg.Redis.Enabled)
	envString("ADS_REDIS_ADDR", &cfg.Redis.Addr)
	envString("ADS_REDIS_PASSWORD", &cfg.Redis.Password)

	envBool("ADS_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("ADS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}

	envString("ADS_POSTGRES_HOST", &cfg.Postgres.Host)
	envInt("ADS_POSTGRES_PORT", &cfg.Postgres.Port)
	envString("ADS_POSTGRES_DATABASE", &cfg.Postgres.Database)
	envString("ADS_POSTGRES_USER", &cfg.Postgres.User)
	envString("ADS_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	envString("ADS_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)

	envBool("ADS_RATELIMIT_ENABLED", &cfg.RateLimit.Enabled)

	envString("ADS_LOGGING_LEVEL", &cfg.Logging.Level)
	envString("ADS_LOGGING_FORMAT", &cfg.Logging.Format)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
