package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every automatically bound environment variable
const EnvPrefix = "MONGOGRAPH"

// Config holds all configuration for the mongograph service
type Config struct {
	MongoDB struct {
		// URI has no default. MONGO_URI is the conventional source.
		URI            string        `mapstructure:"uri"`
		Database       string        `mapstructure:"database"`
		ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
		QueryTimeout   time.Duration `mapstructure:"query_timeout"`
		MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
		AppName        string        `mapstructure:"app_name"`
	} `mapstructure:"mongodb"`

	API struct {
		Host            string        `mapstructure:"host"`
		Port            int           `mapstructure:"port"`
		AllowedOrigins  []string      `mapstructure:"allowed_origins"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		RateLimit       struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			Burst             int `mapstructure:"burst"`
		} `mapstructure:"rate_limit"`
		GraphQL struct {
			MaxDepth       int `mapstructure:"max_depth"`
			MaxParallelism int `mapstructure:"max_parallelism"`
		} `mapstructure:"graphql"`
	} `mapstructure:"api"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// Addr returns the host:port the API server listens on
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("mongodb.database", "mongograph")
	viper.SetDefault("mongodb.connect_timeout", 10*time.Second)
	viper.SetDefault("mongodb.query_timeout", 5*time.Second)
	viper.SetDefault("mongodb.max_pool_size", 10)
	viper.SetDefault("mongodb.app_name", "mongograph")

	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 4000)
	viper.SetDefault("api.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("api.shutdown_timeout", 10*time.Second)
	viper.SetDefault("api.rate_limit.requests_per_second", 50)
	viper.SetDefault("api.rate_limit.burst", 100)
	viper.SetDefault("api.graphql.max_depth", 10)
	viper.SetDefault("api.graphql.max_parallelism", 10)

	viper.SetDefault("log.level", "info")
}

// loadFromEnv sets up environment variable loading
func loadFromEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Conventional unprefixed names
	_ = viper.BindEnv("mongodb.uri", "MONGO_URI")
	_ = viper.BindEnv("mongodb.database", "MONGO_DATABASE")
	_ = viper.BindEnv("api.port", "PORT")
	_ = viper.BindEnv("log.level", "LOG_LEVEL")
}

// LoadConfig loads configuration from ./config.yaml or ./config/config.yaml and the environment
func LoadConfig() (*Config, error) {
	return LoadConfigFile("")
}

// LoadConfigFile loads configuration from path, or from the default search paths when path is empty
func LoadConfigFile(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
		// No config file; defaults and env vars only
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

// validateConfig validates the configuration for correctness.
// The MongoDB URI is intentionally not checked here: an absent or malformed
// target is reported by the connection attempt itself.
func validateConfig(config *Config) error {
	if config.MongoDB.Database == "" {
		return fmt.Errorf("MongoDB database cannot be empty")
	}
	if config.MongoDB.ConnectTimeout <= 0 {
		return fmt.Errorf("mongodb.connect_timeout must be positive, got %s", config.MongoDB.ConnectTimeout)
	}
	if config.MongoDB.QueryTimeout <= 0 {
		return fmt.Errorf("mongodb.query_timeout must be positive, got %s", config.MongoDB.QueryTimeout)
	}

	if config.API.Port < 1 || config.API.Port > 65535 {
		return fmt.Errorf("invalid API port %d: must be between 1 and 65535", config.API.Port)
	}
	if config.API.RateLimit.RequestsPerSecond <= 0 || config.API.RateLimit.Burst <= 0 {
		return fmt.Errorf("api.rate_limit requests_per_second and burst must be positive")
	}
	if config.API.GraphQL.MaxDepth < 0 || config.API.GraphQL.MaxParallelism < 0 {
		return fmt.Errorf("api.graphql limits cannot be negative")
	}
	for _, origin := range config.API.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("invalid allowed origin %q: must be * or start with http:// or https://", origin)
		}
	}

	if !validLogLevels[strings.ToLower(config.Log.Level)] {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", config.Log.Level)
	}

	return nil
}
