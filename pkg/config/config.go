package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `env:", prefix=SERVER_"`
	CoinGecko CoinGeckoConfig `env:", prefix=COINGECKO_"`
	Chat      ChatConfig      `env:", prefix=CHAT_"`
	Storage   StorageConfig   `env:", prefix=STORAGE_"`
	Redis     RedisConfig     `env:", prefix=REDIS_"`
	MySQL     MySQLConfig     `env:", prefix=MYSQL_"`
	NATS      NATSConfig      `env:", prefix=NATS_"`
	InfluxDB  InfluxConfig    `env:", prefix=INFLUXDB_"`
	OpenAI    OpenAIConfig    `env:", prefix=OPENAI_"`
	Security  SecurityConfig  `env:", prefix=SECURITY_"`
	Logging   LoggingConfig   `env:", prefix=LOG_"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=8080"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=60s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
}

// CoinGeckoConfig holds market data client configuration
type CoinGeckoConfig struct {
	BaseURL       string        `env:"BASE_URL, default=https://api.coingecko.com/api/v3"`
	APIKey        string        `env:"API_KEY"`
	Timeout       time.Duration `env:"TIMEOUT, default=10s"`
	MaxConcurrent int           `env:"MAX_CONCURRENT, default=3"`
	CacheBackend  string        `env:"CACHE_BACKEND, default=memory"` // memory or redis
	TopTTL        time.Duration `env:"TOP_TTL, default=2m"`
	CoinTTL       time.Duration `env:"COIN_TTL, default=3m"`
	GlobalTTL     time.Duration `env:"GLOBAL_TTL, default=5m"`
	TrendingTTL   time.Duration `env:"TRENDING_TTL, default=5m"`
	SearchTTL     time.Duration `env:"SEARCH_TTL, default=5m"`
	ChartTTL      time.Duration `env:"CHART_TTL, default=5m"`
}

// ChatConfig holds conversation settings
type ChatConfig struct {
	Namespace     string        `env:"NAMESPACE, default=cryptobuddy"`
	SimulateDelay bool          `env:"SIMULATE_DELAY, default=true"`
	MinDelay      time.Duration `env:"MIN_DELAY, default=1s"`
	MaxDelay      time.Duration `env:"MAX_DELAY, default=5s"`
}

// StorageConfig selects the key-value backend for users and chat sessions
type StorageConfig struct {
	Backend    string `env:"BACKEND, default=sqlite"` // memory, sqlite, redis or mysql
	SQLitePath string `env:"SQLITE_PATH, default=./data/cryptobuddy.db"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS, default=2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	Host            string        `env:"HOST, default=localhost"`
	Port            int           `env:"PORT, default=3306"`
	Database        string        `env:"DATABASE, default=cryptobuddy"`
	User            string        `env:"USER, default=cryptobuddy"`
	Password        string        `env:"PASSWORD"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS, default=10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS, default=2"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME, default=5m"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	Enabled       bool          `env:"ENABLED, default=false"`
	URL           string        `env:"URL, default=nats://localhost:4222"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
}

// InfluxConfig holds InfluxDB configuration
type InfluxConfig struct {
	Enabled bool          `env:"ENABLED, default=false"`
	URL     string        `env:"URL, default=http://localhost:8086"`
	Token   string        `env:"TOKEN"`
	Org     string        `env:"ORG, default=cryptobuddy"`
	Bucket  string        `env:"BUCKET, default=market"`
	Timeout time.Duration `env:"TIMEOUT, default=10s"`

	// Background polling of the top coins so history accrues without chat traffic
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL, default=5m"`
	SnapshotLimit    int           `env:"SNAPSHOT_LIMIT, default=50"`
}

// OpenAIConfig holds the conversational completion settings
type OpenAIConfig struct {
	Enabled   bool          `env:"ENABLED, default=false"`
	APIKey    string        `env:"API_KEY"`
	BaseURL   string        `env:"BASE_URL"`
	Model     string        `env:"MODEL, default=gpt-3.5-turbo"`
	MaxTokens int           `env:"MAX_TOKENS, default=300"`
	Timeout   time.Duration `env:"TIMEOUT, default=15s"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	CORSEnabled bool     `env:"CORS_ENABLED, default=true"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`
	CORSMethods []string `env:"CORS_METHODS, default=GET,POST,DELETE,OPTIONS"`
	CORSHeaders []string `env:"CORS_HEADERS, default=Content-Type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `env:"LEVEL, default=info"`
	Format     string `env:"FORMAT, default=json"`
	Output     string `env:"OUTPUT, default=stdout"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB, default=100"`
	MaxBackups int    `env:"MAX_BACKUPS, default=3"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS, default=28"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	return LoadWithLookuper(envconfig.OsLookuper())
}

// LoadWithLookuper loads configuration from the given lookuper. Tests use
// envconfig.MapLookuper to avoid touching the process environment.
func LoadWithLookuper(l envconfig.Lookuper) (*Config, error) {
	var cfg Config

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.CoinGecko.BaseURL == "" {
		return fmt.Errorf("CoinGecko base URL is required")
	}

	if c.CoinGecko.MaxConcurrent < 1 {
		return fmt.Errorf("invalid max concurrent fetches: %d", c.CoinGecko.MaxConcurrent)
	}

	switch c.CoinGecko.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend: %s", c.CoinGecko.CacheBackend)
	}

	switch c.Storage.Backend {
	case "memory", "redis", "mysql":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage sqlite path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	if c.Chat.Namespace == "" {
		return fmt.Errorf("chat namespace is required")
	}

	if c.Chat.MinDelay > c.Chat.MaxDelay {
		return fmt.Errorf("chat min delay %s exceeds max delay %s", c.Chat.MinDelay, c.Chat.MaxDelay)
	}

	if c.OpenAI.Enabled && c.OpenAI.APIKey == "" {
		return fmt.Errorf("OpenAI API key is required when completion is enabled")
	}

	return nil
}

// GetMySQLDSN returns MySQL DSN string
func (c *Config) GetMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.Database,
	)
}

// GetRedisAddr returns Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetServerAddr returns server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
