package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opentrusty/lifecycle/internal/admintoken"
	"github.com/opentrusty/lifecycle/internal/appdata"
	"github.com/opentrusty/lifecycle/internal/version"
	"github.com/spf13/viper"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Mirror backends
const (
	MirrorDatabase = "database"
	MirrorRedis    = "redis"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Store         StoreConfig         `mapstructure:"store"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Security      SecurityConfig      `mapstructure:"security"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Installer     InstallerConfig     `mapstructure:"installer"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// StoreConfig selects the option and tenant store
type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// RedisConfig holds the fleet mirror's Redis connection
type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string  `mapstructure:"log_level"`
	LogFormat      string  `mapstructure:"log_format"`
	OTELEnabled    bool    `mapstructure:"otel_enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// SecurityConfig holds admin API credentials
type SecurityConfig struct {
	AdminTokenSecret string `mapstructure:"admin_token_secret"`
	AdminTokenIssuer string `mapstructure:"admin_token_issuer"`
}

// InstallerConfig holds data lifecycle settings
type InstallerConfig struct {
	Version       string `mapstructure:"version"`
	Debug         bool   `mapstructure:"debug"`
	Multisite     bool   `mapstructure:"multisite"`
	PrimaryTenant string `mapstructure:"primary_tenant"`
	MarkerKey     string `mapstructure:"marker_key"`
	DeleteDataKey string `mapstructure:"delete_data_key"`
	FleetPageSize int    `mapstructure:"fleet_page_size"`
	MirrorBackend string `mapstructure:"mirror_backend"`

	// InstallOnStart makes the server install the primary tenant in
	// single-site mode before it starts listening.
	InstallOnStart bool `mapstructure:"install_on_start"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "lifecycle",
			Database:        "lifecycle",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectTimeout:  30 * time.Second,
		},
		Store: StoreConfig{
			Driver:     DriverPostgres,
			SQLitePath: "lifecycle.db",
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			ConnectTimeout: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			ServiceName:    "lifecycle",
			ServiceVersion: version.Current,
			SamplingRate:   1.0,
		},
		Security: SecurityConfig{
			AdminTokenIssuer: "lifecycle",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Installer: InstallerConfig{
			Version:        version.Current,
			PrimaryTenant:  "main",
			MarkerKey:      "lifecycle_version",
			DeleteDataKey:  "lifecycle_delete_data",
			FleetPageSize:  20,
			MirrorBackend:  MirrorDatabase,
			InstallOnStart: true,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnvironmentOverrides(cfg *Config) {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = parseDuration("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = parseDuration("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = parseDuration("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxOpenConns = parseInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = parseInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = parseDuration("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)
	cfg.Database.ConnectTimeout = parseDuration("DB_CONNECT_TIMEOUT", cfg.Database.ConnectTimeout)

	cfg.Store.Driver = getEnv("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.SQLitePath = getEnv("SQLITE_PATH", cfg.Store.SQLitePath)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = parseInt("REDIS_DB", cfg.Redis.DB)

	cfg.Observability.LogLevel = getEnv("LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.LogFormat = getEnv("LOG_FORMAT", cfg.Observability.LogFormat)
	cfg.Observability.OTELEnabled = parseBool("OTEL_ENABLED", cfg.Observability.OTELEnabled)
	cfg.Observability.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.Observability.ServiceName)
	cfg.Observability.ServiceVersion = getEnv("OTEL_SERVICE_VERSION", cfg.Observability.ServiceVersion)
	cfg.Observability.SamplingRate = parseFloat("OTEL_SAMPLING_RATE", cfg.Observability.SamplingRate)

	cfg.Security.AdminTokenSecret = getEnv("ADMIN_TOKEN_SECRET", cfg.Security.AdminTokenSecret)
	cfg.Security.AdminTokenIssuer = getEnv("ADMIN_TOKEN_ISSUER", cfg.Security.AdminTokenIssuer)

	cfg.RateLimit.RequestsPerSecond = parseFloat("RATELIMIT_RPS", cfg.RateLimit.RequestsPerSecond)
	cfg.RateLimit.Burst = parseInt("RATELIMIT_BURST", cfg.RateLimit.Burst)

	cfg.Installer.Version = getEnv("INSTALLER_VERSION", cfg.Installer.Version)
	cfg.Installer.Debug = parseBool("INSTALLER_DEBUG", cfg.Installer.Debug)
	cfg.Installer.Multisite = parseBool("INSTALLER_MULTISITE", cfg.Installer.Multisite)
	cfg.Installer.PrimaryTenant = getEnv("INSTALLER_PRIMARY_TENANT", cfg.Installer.PrimaryTenant)
	cfg.Installer.MarkerKey = getEnv("INSTALLER_MARKER_KEY", cfg.Installer.MarkerKey)
	cfg.Installer.DeleteDataKey = getEnv("INSTALLER_DELETE_DATA_KEY", cfg.Installer.DeleteDataKey)
	cfg.Installer.FleetPageSize = parseInt("INSTALLER_FLEET_PAGE_SIZE", cfg.Installer.FleetPageSize)
	cfg.Installer.MirrorBackend = getEnv("INSTALLER_MIRROR_BACKEND", cfg.Installer.MirrorBackend)
	cfg.Installer.InstallOnStart = parseBool("INSTALLER_INSTALL_ON_START", cfg.Installer.InstallOnStart)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	in := c.Installer
	if !version.Valid(in.Version) {
		return fmt.Errorf("installer version %q is not a valid version", in.Version)
	}
	if in.PrimaryTenant == "" {
		return errors.New("installer primary tenant is required")
	}
	if in.MarkerKey == "" || in.DeleteDataKey == "" {
		return errors.New("installer marker and delete-data keys are required")
	}
	if in.MarkerKey == in.DeleteDataKey {
		return errors.New("installer marker and delete-data keys must differ")
	}
	for _, key := range []string{in.MarkerKey, in.DeleteDataKey} {
		if strings.HasPrefix(key, appdata.Prefix) {
			return fmt.Errorf("installer key %q must not fall under the application prefix %q", key, appdata.Prefix)
		}
	}
	if in.FleetPageSize <= 0 {
		return errors.New("installer fleet page size must be positive")
	}
	switch in.MirrorBackend {
	case MirrorDatabase:
	case MirrorRedis:
		if c.Redis.Addr == "" {
			return errors.New("REDIS_ADDR is required for the redis mirror backend")
		}
	default:
		return fmt.Errorf("unknown mirror backend %q", in.MirrorBackend)
	}

	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit must be positive")
	}
	return nil
}

// ValidateServer checks settings only the HTTP server needs
func (c *Config) ValidateServer() error {
	if len(c.Security.AdminTokenSecret) < admintoken.MinSecretLength {
		return errors.New("ADMIN_TOKEN_SECRET must be at least 32 characters")
	}
	if c.Security.AdminTokenIssuer == "" {
		return errors.New("ADMIN_TOKEN_ISSUER is required")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
