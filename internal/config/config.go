package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	Rating   RatingConfig
	Match    MatchConfig
	Social   SocialConfig
	Jobs     JobsConfig
	Archive  ArchiveConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	AllowedOrigins string
	RateLimit      int // requests per minute per client IP, 0 disables
	WorkerCount    int
	QueueSize      int
}

// AuthConfig selects and configures the identity gateway.
type AuthConfig struct {
	Mode         string // header | remote | static
	ServiceToken string
	RemoteURL    string
	StaticTokens map[string]string // token -> user id
}

// RatingConfig holds rating engine tuning
type RatingConfig struct {
	KFactor       int
	DefaultRating int
}

// MatchConfig holds match ledger tuning
type MatchConfig struct {
	StartingScore int
	SessionTTL    time.Duration
}

// SocialConfig holds social graph tuning
type SocialConfig struct {
	SearchLimit    int
	MaxSearchLimit int
}

// JobsConfig holds scheduled job intervals
type JobsConfig struct {
	ResyncInterval   time.Duration
	SnapshotInterval time.Duration
	SnapshotSize     int
}

// ArchiveConfig holds the S3-compatible snapshot bucket settings.
// Snapshots are disabled when Bucket is empty.
type ArchiveConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	AccessKeySecret string
}

// Load loads configuration from environment variables, then overlays gameplay
// tuning from an optional ledger.yaml.
func Load() (*Config, error) {
	// Load .env file from root directory (parent of the working dir)
	if err := godotenv.Load("../.env"); err != nil {
		// Try loading from current directory as fallback
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found, using environment variables")
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "smartdart"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("BACKEND_PORT", 8000),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
			RateLimit:      getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
			WorkerCount:    getEnvAsInt("WORKER_COUNT", 8),
			QueueSize:      getEnvAsInt("WORKER_QUEUE_SIZE", 1000),
		},
		Auth: AuthConfig{
			Mode:         strings.ToLower(getEnv("AUTH_MODE", "header")),
			ServiceToken: getEnv("GATEWAY_SERVICE_TOKEN", ""),
			RemoteURL:    getEnv("AUTH_SERVICE_URL", ""),
			StaticTokens: parseTokenPairs(getEnv("AUTH_STATIC_TOKENS", "")),
		},
		Rating: RatingConfig{
			KFactor:       getEnvAsInt("RATING_K_FACTOR", 50),
			DefaultRating: getEnvAsInt("RATING_DEFAULT", 1000),
		},
		Match: MatchConfig{
			StartingScore: getEnvAsInt("MATCH_STARTING_SCORE", 501),
			SessionTTL:    getEnvAsDuration("MATCH_SESSION_TTL", 6*time.Hour),
		},
		Social: SocialConfig{
			SearchLimit:    getEnvAsInt("SEARCH_LIMIT", 10),
			MaxSearchLimit: getEnvAsInt("SEARCH_MAX_LIMIT", 50),
		},
		Jobs: JobsConfig{
			ResyncInterval:   getEnvAsDuration("JOBS_RESYNC_INTERVAL", 5*time.Minute),
			SnapshotInterval: getEnvAsDuration("JOBS_SNAPSHOT_INTERVAL", time.Hour),
			SnapshotSize:     getEnvAsInt("JOBS_SNAPSHOT_SIZE", 100),
		},
		Archive: ArchiveConfig{
			Bucket:          getEnv("ARCHIVE_BUCKET", ""),
			Endpoint:        getEnv("ARCHIVE_ENDPOINT", ""),
			Region:          getEnv("ARCHIVE_REGION", "auto"),
			AccessKeyID:     getEnv("ARCHIVE_ACCESS_KEY_ID", ""),
			AccessKeySecret: getEnv("ARCHIVE_ACCESS_KEY_SECRET", ""),
		},
	}

	if err := cfg.applyTuningFile(getEnv("LEDGER_CONFIG", "ledger.yaml")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyTuningFile overlays rating/match/social values from a YAML file.
// A missing file is not an error.
func (c *Config) applyTuningFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("rating.k_factor", c.Rating.KFactor)
	v.SetDefault("rating.default", c.Rating.DefaultRating)
	v.SetDefault("match.starting_score", c.Match.StartingScore)
	v.SetDefault("match.ttl", c.Match.SessionTTL)
	v.SetDefault("social.search_limit", c.Social.SearchLimit)
	v.SetDefault("social.max_search_limit", c.Social.MaxSearchLimit)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return fmt.Errorf("read %s: %w", path, err)
		}
	}

	c.Rating.KFactor = v.GetInt("rating.k_factor")
	c.Rating.DefaultRating = v.GetInt("rating.default")
	c.Match.StartingScore = v.GetInt("match.starting_score")
	c.Match.SessionTTL = v.GetDuration("match.ttl")
	c.Social.SearchLimit = v.GetInt("social.search_limit")
	c.Social.MaxSearchLimit = v.GetInt("social.max_search_limit")
	return nil
}

// Validate rejects values the services cannot run with.
func (c *Config) Validate() error {
	if c.Rating.KFactor <= 0 {
		return fmt.Errorf("rating k factor must be positive, got %d", c.Rating.KFactor)
	}
	if c.Match.StartingScore < 2 || c.Match.StartingScore > 1001 {
		return fmt.Errorf("match starting score must be within [2, 1001], got %d", c.Match.StartingScore)
	}
	if c.Match.SessionTTL <= 0 {
		return fmt.Errorf("match session ttl must be positive")
	}
	if c.Social.SearchLimit <= 0 || c.Social.MaxSearchLimit < c.Social.SearchLimit {
		return fmt.Errorf("invalid search limits %d/%d", c.Social.SearchLimit, c.Social.MaxSearchLimit)
	}
	return nil
}

// ValidateAuth checks the identity gateway settings. Only the API server
// authenticates requests, so Load does not call it.
func (c *Config) ValidateAuth() error {
	switch c.Auth.Mode {
	case "header":
		if c.Auth.ServiceToken == "" {
			return errors.New("GATEWAY_SERVICE_TOKEN is required for header auth mode")
		}
	case "remote":
		if c.Auth.RemoteURL == "" {
			return errors.New("AUTH_SERVICE_URL is required for remote auth mode")
		}
	case "static":
		if len(c.Auth.StaticTokens) == 0 {
			return errors.New("AUTH_STATIC_TOKENS is required for static auth mode")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.Auth.Mode)
	}
	return nil
}

// GetDSN returns the PostgreSQL DSN
func (c *Config) GetDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("90s", "5m").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}

// parseTokenPairs parses "tokenA:user1,tokenB:user2".
func parseTokenPairs(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		token, user, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		token, user = strings.TrimSpace(token), strings.TrimSpace(user)
		if token != "" && user != "" {
			out[token] = user
		}
	}
	return out
}
