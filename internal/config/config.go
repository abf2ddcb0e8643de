package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Admin      AdminConfig
	Protection ProtectionConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
}

type AdminConfig struct {
	JWTSecret           string
	RequestsPerMinute   int `validate:"gte=1"`
	TimingBaseDelayMs   int `validate:"gte=0"`
	TimingRandomDelayMs int `validate:"gte=0"`
}

// ProtectionConfig carries every tunable of the brute-force protection core.
type ProtectionConfig struct {
	Salt string `validate:"required,min=16"`

	RateWindow      time.Duration `validate:"gt=0"`
	RateMaxAttempts int           `validate:"gte=1"`
	BanBaseDuration time.Duration `validate:"gt=0"`

	LockWindow      time.Duration `validate:"gt=0"`
	LockMaxFailures int           `validate:"gte=1"`
	LockDuration    time.Duration `validate:"gt=0"`

	EscalationWindow       time.Duration `validate:"gt=0"`
	EscalationBanThreshold int           `validate:"gte=1"`
	EscalationMultiplier   float64       `validate:"gte=1"`

	SharedIPUsernameThreshold int `validate:"gte=2"`
	SharedIPMultiplier        int `validate:"gte=1"`

	MaxLockoutsPerIPPerHour int `validate:"gte=1"`

	Allowlist      []string
	MaxTrackedKeys int           `validate:"gte=100"`
	SweepInterval  time.Duration `validate:"gt=0"`
}

var validate = validator.New()

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	salt := getEnv("PROTECTION_SALT", "")
	if salt == "" {
		return nil, fmt.Errorf("PROTECTION_SALT is required")
	}
	if err := validateSecret("PROTECTION_SALT", salt, env); err != nil {
		return nil, err
	}

	adminSecret := getEnv("ADMIN_JWT_SECRET", "")
	if env == "production" {
		if adminSecret == "" {
			return nil, fmt.Errorf("ADMIN_JWT_SECRET is required in production")
		}
		if err := validateSecret("ADMIN_JWT_SECRET", adminSecret, env); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
		},
		Admin: AdminConfig{
			JWTSecret:           adminSecret,
			RequestsPerMinute:   getEnvAsInt("ADMIN_REQUESTS_PER_MINUTE", 60),
			TimingBaseDelayMs:   getEnvAsInt("AUTH_TIMING_BASE_DELAY_MS", 100),
			TimingRandomDelayMs: getEnvAsInt("AUTH_TIMING_RANDOM_DELAY_MS", 100),
		},
		Protection: ProtectionConfig{
			Salt:                      salt,
			RateWindow:                getEnvAsDuration("RATE_WINDOW", 30*time.Second),
			RateMaxAttempts:           getEnvAsInt("RATE_MAX_ATTEMPTS", 10),
			BanBaseDuration:           getEnvAsDuration("BAN_BASE_DURATION", 15*time.Minute),
			LockWindow:                getEnvAsDuration("LOCK_WINDOW", 5*time.Minute),
			LockMaxFailures:           getEnvAsInt("LOCK_MAX_FAILURES", 5),
			LockDuration:              getEnvAsDuration("LOCK_DURATION", 15*time.Minute),
			EscalationWindow:          getEnvAsDuration("ESCALATION_WINDOW", 24*time.Hour),
			EscalationBanThreshold:    getEnvAsInt("ESCALATION_BAN_THRESHOLD", 3),
			EscalationMultiplier:      getEnvAsFloat("ESCALATION_MULTIPLIER", 2.0),
			SharedIPUsernameThreshold: getEnvAsInt("SHARED_IP_USERNAME_THRESHOLD", 50),
			SharedIPMultiplier:        getEnvAsInt("SHARED_IP_MULTIPLIER", 3),
			MaxLockoutsPerIPPerHour:   getEnvAsInt("MAX_LOCKOUTS_PER_IP_PER_HOUR", 3),
			Allowlist:                 splitList(getEnv("IP_ALLOWLIST", "")),
			MaxTrackedKeys:            getEnvAsInt("MAX_TRACKED_KEYS", 10000),
			SweepInterval:             getEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute),
		},
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateSecret enforces minimum strength for startup secrets
func validateSecret(name, secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("%s must be at least %d characters in %s environment (got %d)",
			name, minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("%s cannot be a common weak value", name)
		}
	}

	return nil
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

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
