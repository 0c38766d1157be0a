package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const maxFetchCap = 2000

type Config struct {
	Port                 string
	DatabaseURL          string
	DBPath               string
	LogLevel             string
	AIProvider           string
	AIKey                string
	AIBaseURL            string
	AIModel              string
	GmailAccessToken     string
	MaxFetchEmails       int
	FetchMaxRetries      int
	SyncInterval         time.Duration
	RefreshDebounce      time.Duration
	SummaryRatePerMinute int
	SummaryCacheTTL      time.Duration
	Env                  string
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	maxFetch := GetEnvInt("MAX_FETCH_EMAILS", 500)
	if maxFetch > maxFetchCap {
		maxFetch = maxFetchCap
	}

	return &Config{
		Port:                 GetEnv("PORT", "8080"),
		DatabaseURL:          GetEnv("DATABASE_URL", ""),
		DBPath:               GetEnv("DB_PATH", "data/mailcleaner.db"),
		LogLevel:             GetEnv("LOG_LEVEL", "info"),
		AIProvider:           strings.ToLower(GetEnv("AI_PROVIDER", "ollama")),
		AIKey:                GetEnv("AI_API_KEY", ""),
		AIBaseURL:            GetEnv("AI_BASE_URL", ""),
		AIModel:              GetEnv("AI_MODEL", ""),
		GmailAccessToken:     GetEnv("GMAIL_ACCESS_TOKEN", ""),
		MaxFetchEmails:       maxFetch,
		FetchMaxRetries:      GetEnvInt("FETCH_MAX_RETRIES", 5),
		SyncInterval:         GetEnvDuration("SYNC_INTERVAL_SECONDS", 0, time.Second),
		RefreshDebounce:      GetEnvDuration("REFRESH_DEBOUNCE_MS", 2000, time.Millisecond),
		SummaryRatePerMinute: GetEnvInt("SUMMARY_RATE_PER_MINUTE", 10),
		SummaryCacheTTL:      GetEnvDuration("SUMMARY_CACHE_TTL_HOURS", 168, time.Hour),
		Env:                  GetEnv("ENV", "development"),
	}, nil
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvInt reads an integer, falling back to defaultValue when unset or malformed.
func GetEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func GetEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvDuration reads an integer count of unit.
func GetEnvDuration(key string, defaultValue int, unit time.Duration) time.Duration {
	return time.Duration(GetEnvInt(key, defaultValue)) * unit
}

// UsesPostgres reports whether DatabaseURL points at a PostgreSQL server.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.DatabaseURL == "" && c.DBPath == "" {
		return fmt.Errorf("either DATABASE_URL or DB_PATH is required")
	}
	if c.DatabaseURL != "" && !c.UsesPostgres() {
		return fmt.Errorf("DATABASE_URL must be a postgres:// URL")
	}
	switch c.AIProvider {
	case "ollama", "openai", "deepseek", "gemini":
	default:
		return fmt.Errorf("AI_PROVIDER %q is not supported", c.AIProvider)
	}
	if c.AIProvider != "ollama" && c.AIKey == "" {
		return fmt.Errorf("AI_API_KEY is required for provider %s", c.AIProvider)
	}
	if c.MaxFetchEmails <= 0 {
		return fmt.Errorf("MAX_FETCH_EMAILS must be positive")
	}
	if c.FetchMaxRetries <= 0 {
		return fmt.Errorf("FETCH_MAX_RETRIES must be positive")
	}
	if c.RefreshDebounce < 0 || c.SyncInterval < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.SummaryRatePerMinute <= 0 {
		return fmt.Errorf("SUMMARY_RATE_PER_MINUTE must be positive")
	}
	return nil
}
