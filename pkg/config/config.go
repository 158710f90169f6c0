// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Search, Collections, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/kikaihonyaku/cocosumo-sub004/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Postgres    PostgresConfig     `yaml:"postgres"`
	Kafka       KafkaConfig        `yaml:"kafka"`
	Redis       RedisConfig        `yaml:"redis"`
	Search      SearchConfig       `yaml:"search"`
	History     HistoryConfig      `yaml:"history"`
	Collections []CollectionConfig `yaml:"collections"`
	Logging     LoggingConfig      `yaml:"logging"`
	Metrics     MetricsConfig      `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimit       RateLimit     `yaml:"rateLimit"`
}

// RateLimit bounds API requests per client. Zero RequestsPerSecond
// disables limiting.
type RateLimit struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
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

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	CollectionChanged string `yaml:"collectionChanged"`
	SearchEvents      string `yaml:"searchEvents"`
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

// SearchConfig holds the ranking defaults applied when a request does not
// override them.
type SearchConfig struct {
	DefaultLimit   int     `yaml:"defaultLimit"`
	MaxResults     int     `yaml:"maxResults"`
	Threshold      float64 `yaml:"threshold"`
	Fuzzy          bool    `yaml:"fuzzy"`
	FuzzyThreshold float64 `yaml:"fuzzyThreshold"`
	BoostExact     float64 `yaml:"boostExact"`
	SuggestMinLen  int     `yaml:"suggestMinLength"`
	SuggestLimit   int     `yaml:"suggestLimit"`
}

// HistoryConfig sizes the per-session search history.
type HistoryConfig struct {
	MaxItems    int `yaml:"maxItems"`
	MaxSessions int `yaml:"maxSessions"`
}

// CollectionConfig describes one searchable record collection: where its
// records come from and which fields are indexed with what weight.
type CollectionConfig struct {
	Name            string             `yaml:"name"`
	Table           string             `yaml:"table"`
	File            string             `yaml:"file"`
	Fields          []string           `yaml:"fields"`
	Weights         map[string]float64 `yaml:"weights"`
	MinTokenLength  int                `yaml:"minTokenLength"`
	CaseSensitive   bool               `yaml:"caseSensitive"`
	RemoveStopWords bool               `yaml:"removeStopWords"`
	Normalize       bool               `yaml:"normalize"`
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

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
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
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would make searches misbehave.
func (c *Config) Validate() error {
	s := c.Search
	if s.DefaultLimit < 1 || s.MaxResults < 1 {
		return invalidf("search limits must be positive (defaultLimit=%d, maxResults=%d)", s.DefaultLimit, s.MaxResults)
	}
	if s.DefaultLimit > s.MaxResults {
		return invalidf("defaultLimit %d exceeds maxResults %d", s.DefaultLimit, s.MaxResults)
	}
	if s.FuzzyThreshold <= 0 || s.FuzzyThreshold > 1 {
		return invalidf("fuzzyThreshold must be in (0, 1], got %v", s.FuzzyThreshold)
	}
	if s.BoostExact <= 0 {
		return invalidf("boostExact must be positive, got %v", s.BoostExact)
	}
	if rl := c.Server.RateLimit; rl.RequestsPerSecond < 0 || rl.Burst < 0 {
		return invalidf("rate limit values must not be negative")
	}
	if c.History.MaxItems < 1 {
		return invalidf("history maxItems must be positive, got %d", c.History.MaxItems)
	}
	seen := make(map[string]struct{}, len(c.Collections))
	for _, col := range c.Collections {
		if col.Name == "" {
			return invalidf("collection name is required")
		}
		if _, dup := seen[col.Name]; dup {
			return invalidf("duplicate collection %q", col.Name)
		}
		seen[col.Name] = struct{}{}
		if col.Table != "" && col.File != "" {
			return invalidf("collection %q: table and file are mutually exclusive", col.Name)
		}
		if len(col.Fields) == 0 {
			return invalidf("collection %q has no fields", col.Name)
		}
		for field, w := range col.Weights {
			if w < 0 {
				return invalidf("collection %q: weight for %q is negative", col.Name, field)
			}
		}
	}
	return nil
}

func invalidf(format string, args ...any) error {
	return apperrors.Newf(apperrors.ErrInvalidConfig, 0, format, args...)
}

// Collection returns the named collection config.
func (c *Config) Collection(name string) (CollectionConfig, bool) {
	for _, col := range c.Collections {
		if col.Name == name {
			return col, true
		}
	}
	return CollectionConfig{}, false
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "cocosumo",
			User:            "cocosumo",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "listing-search",
			Topics: KafkaTopics{
				CollectionChanged: "collection-changed",
				SearchEvents:      "search-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit:   50,
			MaxResults:     200,
			Threshold:      0,
			FuzzyThreshold: 0.8,
			BoostExact:     2,
			SuggestMinLen:  2,
			SuggestLimit:   10,
		},
		History: HistoryConfig{
			MaxItems:    20,
			MaxSessions: 10000,
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

// applyEnvOverrides reads SEARCH_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SEARCH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SEARCH_POSTGRES_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = b
		}
	}
	if v := os.Getenv("SEARCH_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SEARCH_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SEARCH_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SEARCH_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SEARCH_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SEARCH_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("SEARCH_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SEARCH_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("SEARCH_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SEARCH_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SEARCH_FUZZY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Search.Fuzzy = b
		}
	}
	if v := os.Getenv("SEARCH_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SEARCH_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
