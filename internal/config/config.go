package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	NewRelic NewRelicConfig `toml:"newrelic"`
	Auth     AuthConfig     `toml:"auth"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Booking  BookingConfig  `toml:"booking"`
	Matching MatchingConfig `toml:"matching"`
	Rating   RatingConfig   `toml:"rating"`
	Search   SearchConfig   `toml:"search"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Vehicles VehiclesConfig `toml:"vehicles"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string   `toml:"port"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string   `toml:"host"`
	Port            string   `toml:"port"`
	User            string   `toml:"user"`
	Password        string   `toml:"password"`
	DBName          string   `toml:"name"`
	SSLMode         string   `toml:"sslmode"`
	MaxOpenConns    int      `toml:"max_open_conns"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
	ConnMaxIdleTime Duration `toml:"conn_max_idle_time"`
	RunMigrations   bool     `toml:"run_migrations"`
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string `toml:"app_name"`
	LicenseKey string `toml:"license_key"`
	Enabled    bool   `toml:"enabled"`
}

// AuthConfig holds JWT verification settings. An empty secret trusts the
// X-User-ID header.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	Issuer    string `toml:"issuer"`
}

// KafkaConfig holds domain event publishing settings.
type KafkaConfig struct {
	Enabled      bool     `toml:"enabled"`
	Brokers      []string `toml:"brokers"`
	Topic        string   `toml:"topic"`
	WriteTimeout Duration `toml:"write_timeout"`
}

// BookingConfig holds seat reservation tunables.
type BookingConfig struct {
	MaxTxRetries int      `toml:"max_tx_retries"`
	RetryBackoff Duration `toml:"retry_backoff"`
}

// MatchingConfig holds matching engine tunables.
type MatchingConfig struct {
	LockTTL Duration `toml:"lock_ttl"`
}

// RatingConfig holds rating cache settings.
type RatingConfig struct {
	CacheTTL Duration `toml:"cache_ttl"`
}

// SearchConfig holds pagination limits for search endpoints.
type SearchConfig struct {
	DefaultLimit int `toml:"default_limit"`
	MaxLimit     int `toml:"max_limit"`
}

// VehiclesConfig controls the driver-vehicle check on offers. The
// driver_vehicles table is written by the registration service; on a
// deployment where it does not sync vehicles yet, disable the check or
// every offer is rejected with a vehicle not found error.
type VehiclesConfig struct {
	VerifyRegistry bool `toml:"verify_registry"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration decodes TOML strings such as "20ms" into a time.Duration.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     Duration{10 * time.Second},
			WriteTimeout:    Duration{10 * time.Second},
			ShutdownTimeout: Duration{5 * time.Second},
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Password:        "postgres",
			DBName:          "carona",
			SSLMode:         "disable",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: Duration{30 * time.Minute},
			ConnMaxIdleTime: Duration{5 * time.Minute},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		NewRelic: NewRelicConfig{
			AppName: "carona",
		},
		Kafka: KafkaConfig{
			Topic:        "carona.events",
			WriteTimeout: Duration{5 * time.Second},
		},
		Booking: BookingConfig{
			MaxTxRetries: 5,
			RetryBackoff: Duration{20 * time.Millisecond},
		},
		Matching: MatchingConfig{
			LockTTL: Duration{10 * time.Second},
		},
		Rating: RatingConfig{
			CacheTTL: Duration{60 * time.Second},
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxLimit:     100,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Vehicles: VehiclesConfig{
			VerifyRegistry: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the TOML file named by
// CONFIG_FILE if any, and finally environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Booking.MaxTxRetries < 0 {
		return fmt.Errorf("booking max tx retries must not be negative")
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search limits must satisfy 0 < default <= max")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka is enabled but no brokers are configured")
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout.Duration = getDurationEnv("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout.Duration)
	cfg.Server.WriteTimeout.Duration = getDurationEnv("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout.Duration)
	cfg.Server.ShutdownTimeout.Duration = getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout.Duration)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxOpenConns = getIntEnv("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getIntEnv("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.RunMigrations = getBoolEnv("DB_RUN_MIGRATIONS", cfg.Database.RunMigrations)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getIntEnv("REDIS_DB", cfg.Redis.DB)

	cfg.NewRelic.AppName = getEnv("NEW_RELIC_APP_NAME", cfg.NewRelic.AppName)
	cfg.NewRelic.LicenseKey = getEnv("NEW_RELIC_LICENSE_KEY", cfg.NewRelic.LicenseKey)
	cfg.NewRelic.Enabled = getBoolEnv("NEW_RELIC_ENABLED", cfg.NewRelic.Enabled)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.Issuer = getEnv("JWT_ISSUER", cfg.Auth.Issuer)

	cfg.Kafka.Enabled = getBoolEnv("KAFKA_ENABLED", cfg.Kafka.Enabled)
	cfg.Kafka.Brokers = getListEnv("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.WriteTimeout.Duration = getDurationEnv("KAFKA_WRITE_TIMEOUT", cfg.Kafka.WriteTimeout.Duration)

	cfg.Booking.MaxTxRetries = getIntEnv("BOOKING_MAX_TX_RETRIES", cfg.Booking.MaxTxRetries)
	cfg.Booking.RetryBackoff.Duration = getDurationEnv("BOOKING_RETRY_BACKOFF", cfg.Booking.RetryBackoff.Duration)
	cfg.Matching.LockTTL.Duration = getDurationEnv("MATCH_LOCK_TTL", cfg.Matching.LockTTL.Duration)
	cfg.Rating.CacheTTL.Duration = getDurationEnv("RATING_CACHE_TTL", cfg.Rating.CacheTTL.Duration)
	cfg.Search.DefaultLimit = getIntEnv("SEARCH_DEFAULT_LIMIT", cfg.Search.DefaultLimit)
	cfg.Search.MaxLimit = getIntEnv("SEARCH_MAX_LIMIT", cfg.Search.MaxLimit)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Metrics.Enabled = getBoolEnv("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Vehicles.VerifyRegistry = getBoolEnv("VEHICLE_REGISTRY_VERIFY", cfg.Vehicles.VerifyRegistry)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
