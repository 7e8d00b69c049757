package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const day = 24 * time.Hour

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Lock      LockConfig
	Detection DetectionConfig
	Dispatch  DispatchConfig
	Retention RetentionConfig
	Breaker   BreakerConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port                   string
	Env                    string
	LogLevel               string
	ReadTimeout            time.Duration
	WriteTimeout           time.Duration
	IdleTimeout            time.Duration
	TrustedProxies         []string
	AlertReadRatePerMinute int
}

// AuthConfig holds the shared secret the authentication subsystem signs service tokens with
type AuthConfig struct {
	ServiceTokenSecret string
	ServiceTokenIssuer string
}

type RedisConfig struct {
	URL string
}

// LockConfig selects the lease backend for scheduled jobs
type LockConfig struct {
	Backend string // postgres, redis or none
	Owner   string
	MinHold time.Duration
	MaxHold time.Duration
}

type DetectionConfig struct {
	ImpossibleTravelWindow      time.Duration
	ImpossibleTravelMaxKm       float64
	NewDeviceWindow             time.Duration
	NewLocationWindow           time.Duration
	UnusualTimeWindow           time.Duration
	UnusualTimeMinSamples       int
	UnusualTimeStdDevMultiplier float64
	CircularHourStats           bool
	BruteForceWindow            time.Duration
	BruteForceThreshold         int
	QueryTimeout                time.Duration
}

type DispatchConfig struct {
	Workers   int
	QueueSize int
}

type RetentionConfig struct {
	AlertRetention        time.Duration
	AlertSweepInterval    time.Duration
	LoginAttemptRetention time.Duration
	LoginCleanupInterval  time.Duration
}

type BreakerConfig struct {
	MaxFailures int
	OpenTimeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "loginsentry"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:                   getEnv("PORT", "8080"),
			Env:                    env,
			LogLevel:               getEnv("LOG_LEVEL", "info"),
			ReadTimeout:            getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:           getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:            getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxies:         getEnvAsList("TRUSTED_PROXIES", nil),
			AlertReadRatePerMinute: getEnvAsInt("ALERT_READ_RATE_PER_MINUTE", 600),
		},
		Auth: AuthConfig{
			ServiceTokenSecret: getEnv("SERVICE_TOKEN_SECRET", ""),
			ServiceTokenIssuer: getEnv("SERVICE_TOKEN_ISSUER", "auth-service"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Lock: LockConfig{
			Backend: strings.ToLower(getEnv("LOCK_BACKEND", "postgres")),
			Owner:   getEnv("LOCK_OWNER", defaultOwner()),
			MinHold: getEnvAsDuration("LOCK_MIN_HOLD", 5*time.Minute),
			MaxHold: getEnvAsDuration("LOCK_MAX_HOLD", 30*time.Minute),
		},
		Detection: DetectionConfig{
			ImpossibleTravelWindow:      getEnvAsDuration("IMPOSSIBLE_TRAVEL_WINDOW", 1*time.Hour),
			ImpossibleTravelMaxKm:       getEnvAsFloat("IMPOSSIBLE_TRAVEL_MAX_KM", 500),
			NewDeviceWindow:             getEnvAsDuration("NEW_DEVICE_WINDOW", 90*day),
			NewLocationWindow:           getEnvAsDuration("NEW_LOCATION_WINDOW", 90*day),
			UnusualTimeWindow:           getEnvAsDuration("UNUSUAL_TIME_WINDOW", 30*day),
			UnusualTimeMinSamples:       getEnvAsInt("UNUSUAL_TIME_MIN_SAMPLES", 10),
			UnusualTimeStdDevMultiplier: getEnvAsFloat("UNUSUAL_TIME_STDDEV_MULTIPLIER", 2),
			CircularHourStats:           getEnvAsBool("UNUSUAL_TIME_CIRCULAR", false),
			BruteForceWindow:            getEnvAsDuration("BRUTE_FORCE_WINDOW", 5*time.Minute),
			BruteForceThreshold:         getEnvAsInt("BRUTE_FORCE_THRESHOLD", 10),
			QueryTimeout:                getEnvAsDuration("DETECTION_QUERY_TIMEOUT", 5*time.Second),
		},
		Dispatch: DispatchConfig{
			Workers:   getEnvAsInt("DISPATCH_WORKERS", 4),
			QueueSize: getEnvAsInt("DISPATCH_QUEUE_SIZE", 1000),
		},
		Retention: RetentionConfig{
			AlertRetention:        getEnvAsDuration("ALERT_RETENTION", 90*day),
			AlertSweepInterval:    getEnvAsDuration("ALERT_SWEEP_INTERVAL", 1*day),
			LoginAttemptRetention: getEnvAsDuration("LOGIN_ATTEMPT_RETENTION", 180*day),
			LoginCleanupInterval:  getEnvAsDuration("LOGIN_CLEANUP_INTERVAL", 1*day),
		},
		Breaker: BreakerConfig{
			MaxFailures: getEnvAsInt("BREAKER_MAX_FAILURES", 5),
			OpenTimeout: getEnvAsDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.Auth.ServiceTokenSecret == "" {
		return nil, fmt.Errorf("SERVICE_TOKEN_SECRET is required")
	}
	if err := validateSecret(cfg.Auth.ServiceTokenSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Lock.Backend {
	case "postgres", "none":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required when LOCK_BACKEND=redis")
		}
	default:
		return fmt.Errorf("LOCK_BACKEND must be one of postgres, redis, none (got %q)", c.Lock.Backend)
	}

	if c.Lock.MinHold > c.Lock.MaxHold {
		return fmt.Errorf("LOCK_MIN_HOLD (%s) cannot exceed LOCK_MAX_HOLD (%s)", c.Lock.MinHold, c.Lock.MaxHold)
	}

	// Leases are held for the rest of a slot less MinHold, so MinHold must leave room in each slot
	for name, interval := range map[string]time.Duration{
		"ALERT_SWEEP_INTERVAL":   c.Retention.AlertSweepInterval,
		"LOGIN_CLEANUP_INTERVAL": c.Retention.LoginCleanupInterval,
	} {
		if interval < 2*c.Lock.MinHold {
			return fmt.Errorf("%s (%s) must be at least twice LOCK_MIN_HOLD (%s)", name, interval, c.Lock.MinHold)
		}
	}

	if c.Dispatch.Workers < 1 || c.Dispatch.QueueSize < 1 {
		return fmt.Errorf("DISPATCH_WORKERS and DISPATCH_QUEUE_SIZE must be positive")
	}

	// Deleting attempts inside a rule window would make every device look new
	longest := max(c.Detection.NewDeviceWindow, c.Detection.NewLocationWindow, c.Detection.UnusualTimeWindow, c.Detection.ImpossibleTravelWindow)
	if c.Retention.LoginAttemptRetention < longest {
		return fmt.Errorf("LOGIN_ATTEMPT_RETENTION (%s) must cover the longest detection window (%s)",
			c.Retention.LoginAttemptRetention, longest)
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// validateSecret enforces minimum security standards for the service token secret
func validateSecret(secret, env string) error {
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // 256 bits
	}

	if len(secret) < minLength {
		return fmt.Errorf("SERVICE_TOKEN_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SERVICE_TOKEN_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func defaultOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "loginsentry"
	}
	return host
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

// getEnvAsDuration accepts time.ParseDuration syntax plus a whole-day suffix ("90d")
func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}

	if days, ok := strings.CutSuffix(value, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * day
		}
		return defaultVal
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultVal
}

func getEnvAsList(key string, defaultVal []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return defaultVal
	}

	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}
