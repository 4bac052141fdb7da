package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerConfig   ServerConfig   `json:"server"`
	UpstreamConfig UpstreamConfig `json:"upstream"`
	AuthConfig     AuthConfig     `json:"auth"`
	FeedConfig     FeedConfig     `json:"feed"`
	RedisConfig    RedisConfig    `json:"redis"`
	RefreshConfig  RefreshConfig  `json:"refresh"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins, comma separated
	ReadTimeout     int    `json:"read_timeout"`    // Seconds
	WriteTimeout    int    `json:"write_timeout"`   // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
	ProductionMode  bool   `json:"production_mode"`
}

// UpstreamConfig holds the external trading API configuration
type UpstreamConfig struct {
	BaseURL        string        `json:"base_url"`
	AuthBaseURL    string        `json:"auth_base_url"` // Auth service, defaults to BaseURL
	RequestTimeout time.Duration `json:"request_timeout"`
	RetryAttempts  int           `json:"retry_attempts"`
}

// AuthConfig holds gateway-side token validation configuration
type AuthConfig struct {
	Enabled   bool   `json:"enabled"`
	JWTSecret string `json:"jwt_secret"` // Shared secret with the auth service
}

// FeedConfig holds the real-time market data feed configuration
type FeedConfig struct {
	URL            string        `json:"url"`             // WebSocket endpoint
	ConnectTimeout time.Duration `json:"connect_timeout"` // Bound on a single connect attempt
	PingInterval   time.Duration `json:"ping_interval"`
}

// RedisConfig holds Redis configuration for snapshot caching
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// RefreshConfig holds dashboard polling intervals
type RefreshConfig struct {
	PortfolioInterval   time.Duration `json:"portfolio_interval"`
	LeaderboardInterval time.Duration `json:"leaderboard_interval"`
	LeaderboardLimit    int           `json:"leaderboard_limit"`
}

type LoggingConfig struct {
	Level      string `json:"level"`       // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output"`      // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"` // Output as JSON
}

func Load() (*Config, error) {
	// Local .env overrides are optional
	_ = godotenv.Load()

	// First try to load base config from file
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	// Apply environment variable overrides (these take precedence)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", 8080)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", "0.0.0.0")
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", "http://localhost:5173")
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", 30)
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", 30)
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10)
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("SERVER_PRODUCTION_MODE", "false") == "true"

	// Upstream trading API
	cfg.UpstreamConfig.BaseURL = getEnvOrDefault("UPSTREAM_BASE_URL", cfg.UpstreamConfig.BaseURL)
	if cfg.UpstreamConfig.BaseURL == "" {
		cfg.UpstreamConfig.BaseURL = "http://localhost:9000"
	}
	cfg.UpstreamConfig.AuthBaseURL = getEnvOrDefault("UPSTREAM_AUTH_BASE_URL", cfg.UpstreamConfig.AuthBaseURL)
	if cfg.UpstreamConfig.AuthBaseURL == "" {
		cfg.UpstreamConfig.AuthBaseURL = cfg.UpstreamConfig.BaseURL
	}
	cfg.UpstreamConfig.RequestTimeout = getEnvDurationOrDefault("UPSTREAM_REQUEST_TIMEOUT", 10*time.Second)
	cfg.UpstreamConfig.RetryAttempts = getEnvIntOrDefault("UPSTREAM_RETRY_ATTEMPTS", 3)

	// Auth config
	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", "true") == "true"
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)

	// Feed config
	cfg.FeedConfig.URL = getEnvOrDefault("FEED_URL", cfg.FeedConfig.URL)
	if cfg.FeedConfig.URL == "" {
		cfg.FeedConfig.URL = "ws://localhost:9001/stream"
	}
	cfg.FeedConfig.ConnectTimeout = getEnvDurationOrDefault("FEED_CONNECT_TIMEOUT", 10*time.Second)
	cfg.FeedConfig.PingInterval = getEnvDurationOrDefault("FEED_PING_INTERVAL", 30*time.Second)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", "localhost:6379")
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", 0)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", 10)

	// Refresh config
	cfg.RefreshConfig.PortfolioInterval = getEnvDurationOrDefault("REFRESH_PORTFOLIO_INTERVAL", 30*time.Second)
	cfg.RefreshConfig.LeaderboardInterval = getEnvDurationOrDefault("REFRESH_LEADERBOARD_INTERVAL", 60*time.Second)
	cfg.RefreshConfig.LeaderboardLimit = getEnvIntOrDefault("REFRESH_LEADERBOARD_LIMIT", 50)

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", "INFO")
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", "stdout")
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
