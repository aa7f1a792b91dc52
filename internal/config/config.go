package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreBackendPostgres = "postgres"
	StoreBackendSupabase = "supabase"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	Environment    string

	DatabaseURL     string
	DatabaseReadURL string // Read replica URL for SELECT queries
	RedisURL        string
	StoreBackend    string

	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string

	YouTubeAPIKey      string
	YouTubeOAuthToken  string
	YouTubeAPIEndpoint string // Overrides the Data API base path, used against stubs
	YouTubeFeedBaseURL string

	Ingest IngestConfig

	NATSURL           string
	MeilisearchHost   string
	MeilisearchAPIKey string
	MeilisearchIndex  string
}

// IngestConfig tunes the ingestion pipeline
type IngestConfig struct {
	BatchSize                 int
	CreatorTimeout            time.Duration
	FetchRetries              int
	Interval                  time.Duration // 0 disables scheduled full runs
	SubscriberRefreshInterval time.Duration // 0 disables scheduled refreshes
	StatsCacheTTL             time.Duration
	StatsRequestsPerSecond    float64 // 0 means unlimited
	RunOnStart                bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		AllowedOrigins:  parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Environment:     getEnv("ENVIRONMENT", "production"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		DatabaseReadURL: getEnv("DATABASE_READ_URL", getEnv("DATABASE_URL", "")), // Falls back to write DB if not set
		RedisURL:        getEnv("REDIS_URL", ""),
		StoreBackend:    strings.ToLower(getEnv("STORE_BACKEND", StoreBackendPostgres)),

		SupabaseURL:            strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseServiceRoleKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),

		YouTubeAPIKey:      getEnv("YOUTUBE_API_KEY", ""),
		YouTubeOAuthToken:  getEnv("YOUTUBE_OAUTH_TOKEN", ""),
		YouTubeAPIEndpoint: getEnv("YOUTUBE_API_ENDPOINT", ""),
		YouTubeFeedBaseURL: strings.TrimRight(getEnv("YOUTUBE_FEED_BASE_URL", "https://www.youtube.com"), "/"),

		Ingest: IngestConfig{
			BatchSize:                 getIntEnv("INGEST_BATCH_SIZE", 5),
			CreatorTimeout:            getDurationEnv("INGEST_CREATOR_TIMEOUT", 60*time.Second),
			FetchRetries:              getIntEnv("INGEST_FETCH_RETRIES", 2),
			Interval:                  getDurationEnv("INGEST_INTERVAL", 0),
			SubscriberRefreshInterval: getDurationEnv("SUBSCRIBER_REFRESH_INTERVAL", 0),
			StatsCacheTTL:             getDurationEnv("STATS_CACHE_TTL", 10*time.Minute),
			StatsRequestsPerSecond:    getFloatEnv("STATS_REQUESTS_PER_SECOND", 0),
			RunOnStart:                getBoolEnv("INGEST_RUN_ON_START", false),
		},

		NATSURL:           getEnv("NATS_URL", ""),
		MeilisearchHost:   getEnv("MEILISEARCH_HOST", ""),
		MeilisearchAPIKey: getEnv("MEILISEARCH_API_KEY", ""),
		MeilisearchIndex:  getEnv("MEILISEARCH_INDEX", "youtube_videos"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the selected store backend depends on
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", StoreBackendPostgres)
		}
	case StoreBackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceRoleKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required when STORE_BACKEND=%s", StoreBackendSupabase)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.YouTubeAPIKey == "" && c.YouTubeOAuthToken == "" {
		return fmt.Errorf("YOUTUBE_API_KEY or YOUTUBE_OAUTH_TOKEN is required")
	}

	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("INGEST_BATCH_SIZE must be at least 1, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.FetchRetries < 0 {
		return fmt.Errorf("INGEST_FETCH_RETRIES must not be negative")
	}
	if c.Ingest.CreatorTimeout <= 0 {
		return fmt.Errorf("INGEST_CREATOR_TIMEOUT must be positive")
	}
	return nil
}

// IsDevelopment reports whether the service runs outside production
func (c *Config) IsDevelopment() bool {
	switch c.Environment {
	case "development", "local", "test":
		return true
	}
	return false
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDurationEnv accepts Go durations ("90s", "15m")
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
