package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// WebSocket
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64

	// Agent directory
	DirectoryURL      string
	DirectoryToken    string
	DirectoryPageSize int
	DirectoryTimeout  time.Duration

	// Poller
	PollInterval  time.Duration
	PollCacheTTL  time.Duration
	AllowListFile string

	// Background status sync, disabled when zero
	MonitorInterval time.Duration

	// Persistence
	DatabaseURL string
	RedisURL    string

	// Control API of the development agent directory, empty when not used
	SimulatorURL string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DirectoryURL:   strings.TrimSuffix(getEnv("FRESHCHAT_API_URL", "http://localhost:8081/v2"), "/"),
		DirectoryToken: os.Getenv("FRESHCHAT_API_TOKEN"),
		AllowListFile:  getEnv("ALLOWLIST_FILE", "allowlist.yaml"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		SimulatorURL:   strings.TrimSuffix(os.Getenv("AGENTDIR_CONTROL_URL"), "/"),
	}

	var err error
	if config.WSReadTimeout, err = seconds("WS_READ_TIMEOUT", "60"); err != nil {
		return nil, err
	}
	if config.WSWriteTimeout, err = seconds("WS_WRITE_TIMEOUT", "10"); err != nil {
		return nil, err
	}
	if config.DirectoryTimeout, err = seconds("DIRECTORY_TIMEOUT", "15"); err != nil {
		return nil, err
	}
	if config.PollInterval, err = seconds("POLL_INTERVAL", "60"); err != nil {
		return nil, err
	}
	if config.PollCacheTTL, err = seconds("POLL_CACHE_TTL", "30"); err != nil {
		return nil, err
	}
	if config.MonitorInterval, err = seconds("MONITOR_INTERVAL", "0"); err != nil {
		return nil, err
	}

	pageSize, err := strconv.Atoi(getEnv("FRESHCHAT_PAGE_SIZE", "100"))
	if err != nil || pageSize <= 0 {
		return nil, fmt.Errorf("invalid FRESHCHAT_PAGE_SIZE: %q", getEnv("FRESHCHAT_PAGE_SIZE", "100"))
	}
	config.DirectoryPageSize = pageSize

	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive")
	}

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// seconds parses an integer number of seconds from the environment
func seconds(key, defaultValue string) (time.Duration, error) {
	n, err := strconv.Atoi(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Duration(n) * time.Second, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
