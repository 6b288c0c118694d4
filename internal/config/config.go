package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Block and genesis feed configuration
	Feed FeedConfig

	// Contract accounts and chain constants
	Chain ChainConfig

	// Pipeline tuning
	Pipeline PipelineConfig

	// Ops server configuration
	Ops OpsConfig

	// Logging configuration
	Log LogConfig
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"indexer"`
	Password        string        `envconfig:"DB_PASSWORD" default:"indexer"`
	Name            string        `envconfig:"DB_NAME" default:"vesting_indexer"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	RunMigrations   bool          `envconfig:"DB_RUN_MIGRATIONS" default:"true"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool          `envconfig:"REDIS_ENABLED" default:"true"`
	Host     string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int           `envconfig:"REDIS_PORT" default:"6379"`
	Password string        `envconfig:"REDIS_PASSWORD" default:""`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"REDIS_TTL" default:"10m"`
	// Namespaces keys when several indexers share one Redis
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"vesting-indexer:"`
}

// FeedConfig holds block feed and genesis snapshot settings
type FeedConfig struct {
	URL              string        `envconfig:"FEED_URL" default:"ws://localhost:8090/blocks"`
	HandshakeTimeout time.Duration `envconfig:"FEED_HANDSHAKE_TIMEOUT" default:"10s"`
	ReadTimeout      time.Duration `envconfig:"FEED_READ_TIMEOUT" default:"2m"`
	PingInterval     time.Duration `envconfig:"FEED_PING_INTERVAL" default:"30s"`
	BufferSize       int           `envconfig:"FEED_BUFFER_SIZE" default:"64"`

	// Genesis snapshot files, JSON lines, optionally zstd compressed (.zst)
	GenesisFiles []string `envconfig:"GENESIS_FILES" default:""`
}

// ChainConfig names the contracts whose actions are materialized
type ChainConfig struct {
	TokenContract   string `envconfig:"CHAIN_TOKEN_CONTRACT" default:"cyber.token"`
	VestingContract string `envconfig:"CHAIN_VESTING_CONTRACT" default:"gls.vesting"`
	ControlContract string `envconfig:"CHAIN_CONTROL_CONTRACT" default:"gls.ctrl"`
	SocialContract  string `envconfig:"CHAIN_SOCIAL_CONTRACT" default:"gls.social"`
	MsigContract    string `envconfig:"CHAIN_MSIG_CONTRACT" default:"cyber.msig"`
	CommunityID     string `envconfig:"CHAIN_COMMUNITY_ID" default:"gls"`
	TokenSymbol     string `envconfig:"CHAIN_TOKEN_SYMBOL" default:"GOLOS"`
	VestingSymbol   string `envconfig:"CHAIN_VESTING_SYMBOL" default:"GOLOS"`
}

// PipelineConfig holds ingestion tuning settings
type PipelineConfig struct {
	BulkBatchSize     int `envconfig:"PIPELINE_BULK_BATCH_SIZE" default:"1000"`
	BulkMaxInFlight   int `envconfig:"PIPELINE_BULK_MAX_IN_FLIGHT" default:"4"`
	WithdrawIntervals int `envconfig:"PIPELINE_WITHDRAW_INTERVALS" default:"13"`
	// Seconds between withdrawal payouts until the chain publishes its own params
	WithdrawIntervalSeconds int64 `envconfig:"PIPELINE_WITHDRAW_INTERVAL_SECONDS" default:"604800"`
}

// OpsConfig holds ops (health/metrics) server settings
type OpsConfig struct {
	Host            string        `envconfig:"OPS_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"OPS_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"OPS_READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"OPS_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"OPS_SHUTDOWN_TIMEOUT" default:"10s"`
	RateLimitRPS    int           `envconfig:"OPS_RATE_LIMIT_RPS" default:"20"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot
func (c *Config) Validate() error {
	if c.Pipeline.BulkBatchSize < 1 {
		return fmt.Errorf("PIPELINE_BULK_BATCH_SIZE must be at least 1")
	}
	if c.Pipeline.BulkMaxInFlight < 1 {
		return fmt.Errorf("PIPELINE_BULK_MAX_IN_FLIGHT must be at least 1")
	}
	if c.Pipeline.WithdrawIntervals < 1 {
		return fmt.Errorf("PIPELINE_WITHDRAW_INTERVALS must be at least 1")
	}
	if c.Pipeline.WithdrawIntervalSeconds < 1 {
		return fmt.Errorf("PIPELINE_WITHDRAW_INTERVAL_SECONDS must be at least 1")
	}
	if c.Feed.URL == "" {
		return fmt.Errorf("FEED_URL is required")
	}
	if c.Chain.TokenContract == "" || c.Chain.VestingContract == "" {
		return fmt.Errorf("token and vesting contracts are required")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
