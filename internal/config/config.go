package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Spatial  SpatialConfig
	Cache    CacheConfig
	Socrata  SocrataConfig
	Stats    StatsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// SpatialConfig holds hexagonal index configuration.
type SpatialConfig struct {
	Resolution  int
	BoundaryDir string
	Cities      []string
	WarmOnStart bool
	MaxBatch    int
}

// CacheConfig holds query result cache configuration.
// An empty RedisAddr selects the in-memory backend.
type CacheConfig struct {
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// SocrataConfig holds ingestion source configuration.
type SocrataConfig struct {
	AppToken   string
	PageSize   int
	Timeout    time.Duration
	MaxRetries int
}

// StatsConfig holds limits for the stats query path.
type StatsConfig struct {
	MaxRows int
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "gotham_eye")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("SPATIAL_RESOLUTION", 10)
	v.SetDefault("SPATIAL_BOUNDARY_DIR", "./data/boundaries")
	v.SetDefault("SPATIAL_CITIES", "nyc,chicago")
	v.SetDefault("SPATIAL_WARM_ON_START", false)
	v.SetDefault("SPATIAL_MAX_BATCH", 500)
	v.SetDefault("CACHE_TTL", "60s")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SOCRATA_APP_TOKEN", "")
	v.SetDefault("SOCRATA_PAGE_SIZE", 5000)
	v.SetDefault("SOCRATA_TIMEOUT", "30s")
	v.SetDefault("SOCRATA_MAX_RETRIES", 5)
	v.SetDefault("STATS_MAX_ROWS", 500000)

	// Bind environment variables
	v.AutomaticEnv()

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseList(v.GetString("CORS_ORIGINS")),
		},
		Spatial: SpatialConfig{
			Resolution:  v.GetInt("SPATIAL_RESOLUTION"),
			BoundaryDir: v.GetString("SPATIAL_BOUNDARY_DIR"),
			Cities:      parseList(v.GetString("SPATIAL_CITIES")),
			WarmOnStart: v.GetBool("SPATIAL_WARM_ON_START"),
			MaxBatch:    v.GetInt("SPATIAL_MAX_BATCH"),
		},
		Cache: CacheConfig{
			TTL:           v.GetDuration("CACHE_TTL"),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
		},
		Socrata: SocrataConfig{
			AppToken:   v.GetString("SOCRATA_APP_TOKEN"),
			PageSize:   v.GetInt("SOCRATA_PAGE_SIZE"),
			Timeout:    v.GetDuration("SOCRATA_TIMEOUT"),
			MaxRetries: v.GetInt("SOCRATA_MAX_RETRIES"),
		},
		Stats: StatsConfig{
			MaxRows: v.GetInt("STATS_MAX_ROWS"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	// Validate CORS config
	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	// Validate spatial config
	if c.Spatial.Resolution < 0 || c.Spatial.Resolution > 15 {
		return fmt.Errorf("SPATIAL_RESOLUTION must be between 0 and 15")
	}
	if c.Spatial.BoundaryDir == "" {
		return fmt.Errorf("SPATIAL_BOUNDARY_DIR is required")
	}
	if len(c.Spatial.Cities) == 0 {
		return fmt.Errorf("SPATIAL_CITIES is required")
	}
	if c.Spatial.MaxBatch < 1 {
		return fmt.Errorf("SPATIAL_MAX_BATCH must be at least 1")
	}

	// Validate cache config
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}

	// Validate ingestion config
	if c.Socrata.PageSize < 1 || c.Socrata.PageSize > 50000 {
		return fmt.Errorf("SOCRATA_PAGE_SIZE must be between 1 and 50000")
	}
	if c.Socrata.Timeout <= 0 {
		return fmt.Errorf("SOCRATA_TIMEOUT must be positive")
	}
	if c.Socrata.MaxRetries < 0 {
		return fmt.Errorf("SOCRATA_MAX_RETRIES must be non-negative")
	}

	// Validate stats config
	if c.Stats.MaxRows < 1 {
		return fmt.Errorf("STATS_MAX_ROWS must be at least 1")
	}

	return nil
}

// parseList splits a comma-separated string into a slice of trimmed values.
func parseList(raw string) []string {
	if raw == "" {
		return []string{}
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
