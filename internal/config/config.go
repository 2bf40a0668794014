package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/authgate/internal/models"
	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	MFA      MFAConfig
	Lockout  LockoutConfig
	Cache    CacheConfig
	Email    EmailConfig
	Cleanup  CleanupConfig
	Timing   TimingConfig
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
	StatementTimeout  time.Duration
}

type ServerConfig struct {
	Port             string
	Env              string
	LogLevel         string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	AuthRateLimitRPM int
	TrustedProxies   []string
	GeoIPDBPath      string
	AllowedOrigins   []string
	AdminAccountIDs  []string
}

type AuthConfig struct {
	JWTSecret            string
	AccessTokenExpiry    time.Duration
	RefreshTokenExpiry   time.Duration
	RememberMeExpiry     time.Duration
	RotateRefreshTokens  bool
	MFAPendingExpiry     time.Duration
	PasswordHashCost     int
	BackupCodeCount      int
	BackupCodeHashCost   int
	UnconfirmedRetention time.Duration
	UsedCodeRetention    time.Duration
}

type MFAConfig struct {
	EncryptionKey          []byte // 32 bytes, AES-256
	Issuer                 string
	MaxAttempts            int
	AttemptWindow          time.Duration
	FailuresCountToLockout bool
	CleanupDelay           time.Duration
}

type LockoutConfig struct {
	FailureLimit int
	Cooloff      time.Duration
}

type CacheConfig struct {
	RedisURL       string
	BlacklistTTL   time.Duration
	LocalSweepTime time.Duration
}

type TimingConfig struct {
	FailureFloor  time.Duration
	FailureJitter time.Duration
}

type EmailConfig struct {
	Enabled   bool
	AWSRegion string
	From      string
}

type CleanupConfig struct {
	Interval              time.Duration
	LoginAttemptRetention time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	mfaKey, err := parseEncryptionKey(getEnv("MFA_ENCRYPTION_KEY", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "authgate"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			StatementTimeout:  getEnvAsDuration("DB_STATEMENT_TIMEOUT", 10*time.Second),
		},
		Server: ServerConfig{
			Port:             getEnv("PORT", "8080"),
			Env:              env,
			LogLevel:         getEnv("LOG_LEVEL", "info"),
			ReadTimeout:      getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:     getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:      getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AuthRateLimitRPM: getEnvAsInt("AUTH_RATE_LIMIT_RPM", 20),
			TrustedProxies:   getEnvAsList("TRUSTED_PROXIES"),
			GeoIPDBPath:      getEnv("GEOIP_DB_PATH", ""),
			AllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS"),
			AdminAccountIDs:  getEnvAsList("ADMIN_ACCOUNT_IDS"),
		},
		Auth: AuthConfig{
			JWTSecret:            jwtSecret,
			AccessTokenExpiry:    getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 60*time.Minute),
			RefreshTokenExpiry:   getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			RememberMeExpiry:     getEnvAsDuration("REMEMBER_ME_REFRESH_TOKEN_EXPIRY", 30*24*time.Hour),
			RotateRefreshTokens:  getEnvAsBool("ROTATE_REFRESH_TOKENS", true),
			MFAPendingExpiry:     getEnvAsDuration("MFA_PENDING_TOKEN_EXPIRY", 5*time.Minute),
			PasswordHashCost:     getEnvAsInt("PASSWORD_HASH_COST", 12),
			BackupCodeCount:      getEnvAsInt("BACKUP_CODE_COUNT", 10),
			BackupCodeHashCost:   getEnvAsInt("BACKUP_CODE_HASH_COST", 10),
			UnconfirmedRetention: getEnvAsDuration("UNCONFIRMED_FACTOR_RETENTION", 24*time.Hour),
			UsedCodeRetention:    getEnvAsDuration("USED_BACKUP_CODE_RETENTION", 90*24*time.Hour),
		},
		MFA: MFAConfig{
			EncryptionKey:          mfaKey,
			Issuer:                 getEnv("MFA_ISSUER", "authgate"),
			MaxAttempts:            getEnvAsInt("MFA_MAX_ATTEMPTS", 5),
			AttemptWindow:          getEnvAsDuration("MFA_ATTEMPT_WINDOW", 5*time.Minute),
			FailuresCountToLockout: getEnvAsBool("MFA_FAILURES_COUNT_TOWARD_LOCKOUT", false),
			CleanupDelay:           getEnvAsDuration("MFA_CLEANUP_DELAY", 0),
		},
		Lockout: LockoutConfig{
			FailureLimit: getEnvAsInt("LOCKOUT_FAILURE_LIMIT", 5),
			Cooloff:      getEnvAsDuration("LOCKOUT_COOLOFF", 30*time.Minute),
		},
		Cache: CacheConfig{
			RedisURL:       getEnv("REDIS_URL", ""),
			BlacklistTTL:   getEnvAsDuration("BLACKLIST_CACHE_TTL", 10*time.Minute),
			LocalSweepTime: getEnvAsDuration("BLACKLIST_CACHE_SWEEP", 5*time.Minute),
		},
		Email: EmailConfig{
			Enabled:   getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion: getEnv("AWS_REGION", "us-east-1"),
			From:      getEnv("EMAIL_FROM", ""),
		},
		Cleanup: CleanupConfig{
			Interval:              getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 15*time.Minute),
			LoginAttemptRetention: getEnvAsDuration("LOGIN_ATTEMPT_RETENTION", 30*24*time.Hour),
		},
		Timing: TimingConfig{
			FailureFloor:  getEnvAsDuration("AUTH_FAILURE_FLOOR", 300*time.Millisecond),
			FailureJitter: getEnvAsDuration("AUTH_FAILURE_JITTER", 100*time.Millisecond),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if cfg.Email.Enabled && cfg.Email.From == "" {
		return nil, fmt.Errorf("EMAIL_FROM is required when EMAIL_ENABLED=true")
	}

	if cfg.Lockout.FailureLimit < 1 {
		return nil, fmt.Errorf("LOCKOUT_FAILURE_LIMIT must be at least 1")
	}

	return cfg, nil
}

// ToModel converts the env-facing auth settings into the immutable core config.
func (c *Config) ToModel() models.AuthConfig {
	return models.AuthConfig{
		AccessTTL:                  c.Auth.AccessTokenExpiry,
		RefreshTTL:                 c.Auth.RefreshTokenExpiry,
		RememberMeRefreshTTL:       c.Auth.RememberMeExpiry,
		RotateRefreshTokens:        c.Auth.RotateRefreshTokens,
		SigningSecret:              c.Auth.JWTSecret,
		Algorithm:                  "HS256",
		MFAPendingTTL:              c.Auth.MFAPendingExpiry,
		UnconfirmedFactorRetention: c.Auth.UnconfirmedRetention,
		UsedBackupCodeRetention:    c.Auth.UsedCodeRetention,
		BackupCodeCount:            c.Auth.BackupCodeCount,
		BackupCodeHashCost:         c.Auth.BackupCodeHashCost,
		MFAIssuer:                  c.MFA.Issuer,
		MFAMaxAttempts:             c.MFA.MaxAttempts,
		MFAAttemptWindow:           c.MFA.AttemptWindow,
		MFAFailuresCountLockout:    c.MFA.FailuresCountToLockout,
		MFACleanupDelay:            c.MFA.CleanupDelay,
	}
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

// parseEncryptionKey decodes MFA_ENCRYPTION_KEY (base64, 32 bytes)
func parseEncryptionKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY must be base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
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

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
