package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig
	Jumbo         JumboConfig
	OpenFoodFacts OpenFoodFactsConfig
	Cache         CacheConfig
	Matching      MatchingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// JumboConfig holds retailer API configuration
type JumboConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// DataDir holds the session, settings and cache files
	DataDir string `mapstructure:"data_dir"`
}

// OpenFoodFactsConfig holds the external product database configuration
type OpenFoodFactsConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// CacheConfig holds match-cache configuration
type CacheConfig struct {
	Type          string `mapstructure:"type"` // "memory" or "redis"
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// MatchingConfig holds matching-engine configuration
type MatchingConfig struct {
	Debug bool `mapstructure:"debug"`
}

// SessionFile returns the path of the persisted session cookies.
func (c *Config) SessionFile() string {
	return filepath.Join(c.Jumbo.DataDir, "session.json")
}

// SettingsFile returns the path of the persisted matching settings.
func (c *Config) SettingsFile() string {
	return filepath.Join(c.Jumbo.DataDir, "settings.json")
}

// MatchCacheFile returns the path of the persisted in-memory match cache.
func (c *Config) MatchCacheFile() string {
	return filepath.Join(c.Jumbo.DataDir, "match_cache.json")
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/jumboapi/")

	// Environment variable settings
	v.SetEnvPrefix("JUMBOAPI")
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Retailer defaults
	v.SetDefault("jumbo.base_url", "https://www.jumbo.com")
	v.SetDefault("jumbo.data_dir", "./data")

	// External product database defaults
	v.SetDefault("openfoodfacts.base_url", "https://world.openfoodfacts.org")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_db", 0)

	// Matching defaults
	v.SetDefault("matching.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Jumbo.BaseURL == "" {
		return fmt.Errorf("retailer base URL is required (set JUMBOAPI_JUMBO_BASE_URL)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisAddr == "" {
		return fmt.Errorf("Redis address is required when cache type is 'redis'")
	}

	return nil
}
