package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocomet/tourism-transport/internal/domain/driver"
	"github.com/gocomet/tourism-transport/internal/service/pricing"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Kafka    KafkaConfig
	Log      LogConfig
	Dispatch DispatchConfig
	Tariffs  map[driver.VehicleType]pricing.Tariff
}

type ServerConfig struct {
	Port            string
	Env             string
	Host            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver         string // postgres or memory
	Host           string
	Port           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	Migrate        bool
	MaxConnections int
	MaxIdleConns   int
	MaxLifetime    time.Duration
}

type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        string
	Password    string
	DB          int
	MaxRetries  int
	PoolSize    int
	MinIdleConn int
	DialTimeout time.Duration
	ReadTimeout time.Duration
	LocationKey string
}

type NewRelicConfig struct {
	LicenseKey string
	AppName    string
	Enabled    bool
	LogLevel   string
}

type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	BatchTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type DispatchConfig struct {
	SingleActiveRequest bool
	AverageSpeedKmh     float64
	Speeds              map[driver.VehicleType]float64
	CandidateRadiusKm   float64
	MaxRadiusKm         float64
	MaxCandidates       int
	PendingRadiusKm     float64
	BookingSync         bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("SERVER_ENV", "development"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: parseDuration(getEnv("SERVER_SHUTDOWN_TIMEOUT", "30s"), 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:         strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			Name:           getEnv("DB_NAME", "tourism"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			Migrate:        getEnvAsBool("MIGRATE", false),
			MaxConnections: getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConns:   getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			MaxLifetime:    time.Duration(getEnvAsInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:     getEnvAsBool("REDIS_ENABLED", false),
			Host:        getEnv("REDIS_HOST", "localhost"),
			Port:        getEnv("REDIS_PORT", "6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			MaxRetries:  getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 50),
			MinIdleConn: 5,
			DialTimeout: 5 * time.Second,
			ReadTimeout: 3 * time.Second,
			LocationKey: getEnv("REDIS_LOCATION_KEY", "drivers:locations"),
		},
		NewRelic: NewRelicConfig{
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			AppName:    getEnv("NEW_RELIC_APP_NAME", "Tourism-Transport"),
			Enabled:    getEnvAsBool("NEW_RELIC_ENABLED", false),
			LogLevel:   getEnv("NEW_RELIC_LOG_LEVEL", "info"),
		},
		Kafka: KafkaConfig{
			Enabled:      getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:      getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:        getEnv("KAFKA_TOPIC", "transport-requests"),
			WriteTimeout: parseDuration(getEnv("KAFKA_WRITE_TIMEOUT", "2s"), 2*time.Second),
			BatchTimeout: parseDuration(getEnv("KAFKA_BATCH_TIMEOUT", "5ms"), 5*time.Millisecond),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Dispatch: DispatchConfig{
			SingleActiveRequest: getEnvAsBool("DISPATCH_SINGLE_ACTIVE_REQUEST", true),
			AverageSpeedKmh:     getEnvAsFloat64("DISPATCH_AVERAGE_SPEED_KMH", 30),
			Speeds:              make(map[driver.VehicleType]float64),
			CandidateRadiusKm:   getEnvAsFloat64("DISPATCH_CANDIDATE_RADIUS_KM", 5),
			MaxRadiusKm:         getEnvAsFloat64("DISPATCH_MAX_RADIUS_KM", 20),
			MaxCandidates:       getEnvAsInt("DISPATCH_MAX_CANDIDATES", 20),
			PendingRadiusKm:     getEnvAsFloat64("DISPATCH_PENDING_RADIUS_KM", 0),
			BookingSync:         getEnvAsBool("DISPATCH_BOOKING_SYNC", true),
		},
		Tariffs: make(map[driver.VehicleType]pricing.Tariff),
	}

	// Per-vehicle tariffs and speeds, e.g. TARIFF_PRIVATE_CAR_BASE_FARE, SPEED_VAN_KMH
	defaults := pricing.DefaultTariffs()
	for _, vt := range driver.VehicleTypes {
		prefix := "TARIFF_" + strings.ToUpper(vt.String()) + "_"
		cfg.Tariffs[vt] = pricing.Tariff{
			BaseFare:       getEnvAsFloat64(prefix+"BASE_FARE", defaults[vt].BaseFare),
			PerKm:          getEnvAsFloat64(prefix+"PER_KM", defaults[vt].PerKm),
			FreeDistanceKm: getEnvAsFloat64(prefix+"FREE_KM", defaults[vt].FreeDistanceKm),
		}
		if speed := getEnvAsFloat64("SPEED_"+strings.ToUpper(vt.String())+"_KMH", 0); speed > 0 {
			cfg.Dispatch.Speeds[vt] = speed
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	case "memory":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or memory, got %q", c.Database.Driver)
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required when REDIS_ENABLED")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("KAFKA_BROKERS and KAFKA_TOPIC are required when KAFKA_ENABLED")
	}
	if c.NewRelic.Enabled && c.NewRelic.LicenseKey == "" {
		return fmt.Errorf("NEW_RELIC_LICENSE_KEY is required when NEW_RELIC_ENABLED")
	}
	if c.Dispatch.AverageSpeedKmh <= 0 {
		return fmt.Errorf("DISPATCH_AVERAGE_SPEED_KMH must be positive")
	}
	if c.Dispatch.CandidateRadiusKm <= 0 || c.Dispatch.MaxRadiusKm < c.Dispatch.CandidateRadiusKm {
		return fmt.Errorf("DISPATCH_MAX_RADIUS_KM must be at least DISPATCH_CANDIDATE_RADIUS_KM (> 0)")
	}
	for vt, t := range c.Tariffs {
		if t.BaseFare < 0 || t.PerKm < 0 || t.FreeDistanceKm < 0 {
			return fmt.Errorf("tariff for %s must not be negative", vt)
		}
	}
	return nil
}

// Pricing returns the fare calculator configuration
func (c *Config) Pricing() pricing.Config {
	return pricing.Config{
		Tariffs:         c.Tariffs,
		DefaultSpeedKmh: c.Dispatch.AverageSpeedKmh,
		Speeds:          c.Dispatch.Speeds,
	}
}

// IsProduction reports whether the server runs in production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
