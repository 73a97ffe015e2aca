package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Preview  PreviewConfig  `mapstructure:"preview"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Debug    bool           `mapstructure:"debug"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
	CORSOrigins  string        `mapstructure:"cors_origins"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int32         `mapstructure:"max_connections"`
	MinConnections  int32         `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheck     time.Duration `mapstructure:"health_check_period"`
}

// PreviewConfig contains the bundling and preview rendering policy.
// The settings here are deployment policy, not project configuration:
// they decide how specifiers are externalized and which CDN serves them
// for every project handled by this instance.
type PreviewConfig struct {
	// CDNBaseURL is the ES-module CDN used for externalized packages and
	// remote fallbacks (e.g. "https://esm.sh").
	CDNBaseURL string `mapstructure:"cdn_base_url"`

	// ReactVersion pins the UI runtime served through the import map.
	ReactVersion string `mapstructure:"react_version"`
	// ReactNativeWebVersion pins the browser implementation of the
	// cross-platform toolkit.
	ReactNativeWebVersion string `mapstructure:"react_native_web_version"`

	// BundleTimeout bounds a single compile; on expiry the request renders
	// an infrastructure failure page instead of a partial artifact.
	BundleTimeout time.Duration `mapstructure:"bundle_timeout"`
	// MaxBundleSize rejects oversized bundles after a successful compile.
	MaxBundleSize int `mapstructure:"max_bundle_size"`
}

// TracingConfig contains OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	viper.SetConfigName("previewd")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/previewd")

	setDefaults()

	// Enable environment variable support with underscore replacer
	viper.AutomaticEnv()
	viper.SetEnvPrefix("PREVIEWD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (if it exists)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Info().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Info().Str("file", viper.ConfigFileUsed()).Msg("Config file loaded")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Preview.CDNBaseURL == "" {
		return fmt.Errorf("preview CDN base URL is required")
	}
	// Every bare-import fallback URL is derived from this value; a relative
	// or schemeless URL would poison every generated import map.
	u, err := url.Parse(c.Preview.CDNBaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("preview CDN base URL must be an absolute http(s) URL, got %q", c.Preview.CDNBaseURL)
	}
	c.Preview.CDNBaseURL = strings.TrimRight(c.Preview.CDNBaseURL, "/")
	if c.Preview.BundleTimeout <= 0 {
		return fmt.Errorf("preview bundle timeout must be positive")
	}
	if c.Preview.MaxBundleSize <= 0 {
		return fmt.Errorf("preview max bundle size must be positive")
	}
	return nil
}

// ConnectionString builds a PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.address", ":8090")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "60s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.body_limit", 4*1024*1024)
	viper.SetDefault("server.cors_origins", "*")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.database", "previewd")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_connections", 20)
	viper.SetDefault("database.min_connections", 2)
	viper.SetDefault("database.max_conn_lifetime", "1h")
	viper.SetDefault("database.max_conn_idle_time", "30m")
	viper.SetDefault("database.health_check_period", "1m")

	// Preview defaults
	viper.SetDefault("preview.cdn_base_url", "https://esm.sh")
	viper.SetDefault("preview.react_version", "18.2.0")
	viper.SetDefault("preview.react_native_web_version", "0.19.10")
	viper.SetDefault("preview.bundle_timeout", "30s")
	viper.SetDefault("preview.max_bundle_size", 10*1024*1024)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4317")
	viper.SetDefault("tracing.service_name", "previewd")
	viper.SetDefault("tracing.environment", "development")
	viper.SetDefault("tracing.sample_rate", 1.0)
	viper.SetDefault("tracing.insecure", true)
}

// loadEnvFile loads a .env file from the working directory if present
func loadEnvFile() error {
	if _, err := os.Stat(".env"); err != nil {
		return err
	}
	return godotenv.Load()
}
