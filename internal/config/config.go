// Package config handles application configuration.
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port           int
	BaseURL        string
	RequestTimeout time.Duration
	IdleTimeout    time.Duration // Stop after this long without requests (0 = never)

	// Database
	DatabaseURL         string
	TursoURL            string // Optional primary for embedded replica mode
	TursoAuthToken      string
	DatabaseBusyTimeout time.Duration

	// Authentication
	JWTSecret          string
	JWTSecretGenerated bool   // true when no JWT_SECRET was supplied
	JWTSigningKey      []byte // HS256 key derived from JWTSecret
	JWTIssuer          string
	TokenExpiry        time.Duration

	// CORS
	CORSOrigins []string

	// Rate limits (requests per minute, per caller)
	RateLimitService int
	RateLimitUser    int

	// Product catalog: a local TOML file, or a JSON document in S3
	CatalogFile    string
	CatalogBucket  string
	CatalogKey     string
	CatalogRefresh time.Duration

	// Object storage (S3-compatible), used for the catalog bucket
	StorageEndpoint  string // AWS_ENDPOINT_URL_S3
	StorageAccessKey string // AWS_ACCESS_KEY_ID
	StorageSecretKey string // AWS_SECRET_ACCESS_KEY
	StorageRegion    string

	// Cleanup
	CleanupEnabled       bool          // Enable the idempotency key purge
	CleanupInterval      time.Duration // How often to run cleanup (default 24 hours)
	IdempotencyRetention time.Duration // Age after which keys are purged (0 = keep forever)

	Accounting AccountingConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnvInt("PORT", 8080),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		IdleTimeout:    getEnvDuration("IDLE_TIMEOUT", 0),

		DatabaseURL:         getEnv("DATABASE_URL", "file:wallets.db"),
		TursoURL:            getEnv("TURSO_URL", ""),
		TursoAuthToken:      getEnv("TURSO_AUTH_TOKEN", ""),
		DatabaseBusyTimeout: getEnvDuration("DATABASE_BUSY_TIMEOUT", 5*time.Second),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "wallet-engine"),
		TokenExpiry: getEnvDuration("TOKEN_EXPIRY", 1*time.Hour),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		RateLimitService: getEnvInt("RATE_LIMIT_SERVICE", 6000),
		RateLimitUser:    getEnvInt("RATE_LIMIT_USER", 120),

		CatalogFile:    getEnv("CATALOG_FILE", ""),
		CatalogBucket:  getEnvWithFallback("CATALOG_BUCKET", "BUCKET_NAME", ""),
		CatalogKey:     getEnv("CATALOG_KEY", "accounting/catalog.json"),
		CatalogRefresh: getEnvDuration("CATALOG_REFRESH", 5*time.Minute),

		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),

		CleanupEnabled:       getEnvBool("CLEANUP_ENABLED", true),
		CleanupInterval:      getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour),
		IdempotencyRetention: getEnvDuration("IDEMPOTENCY_RETENTION", 90*24*time.Hour),
	}

	cfg.Accounting = DefaultAccountingConfig()
	cfg.Accounting.BrowseDefaultPageSize = getEnvInt("BROWSE_DEFAULT_PAGE_SIZE", cfg.Accounting.BrowseDefaultPageSize)
	cfg.Accounting.BrowseMaxPageSize = getEnvInt("BROWSE_MAX_PAGE_SIZE", cfg.Accounting.BrowseMaxPageSize)
	cfg.Accounting.MaxBulkItems = getEnvInt("MAX_BULK_ITEMS", cfg.Accounting.MaxBulkItems)
	if err := cfg.Accounting.Validate(); err != nil {
		return nil, err
	}

	if cfg.CatalogFile != "" && cfg.CatalogBucket != "" {
		return nil, fmt.Errorf("CATALOG_FILE and CATALOG_BUCKET are mutually exclusive")
	}

	// Tokens minted against a generated secret only live as long as the process.
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = generateRandomSecret(64)
		cfg.JWTSecretGenerated = true
	}
	cfg.JWTSigningKey = deriveSigningKey(cfg.JWTSecret)

	return cfg, nil
}

// CatalogFromS3 returns true if the catalog is read from object storage.
func (c *Config) CatalogFromS3() bool {
	return c.CatalogBucket != ""
}

// CleanupActive returns true if the idempotency purge should be scheduled.
func (c *Config) CleanupActive() bool {
	return c.CleanupEnabled && c.IdempotencyRetention > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

func generateRandomSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		panic("config: failed to read random bytes: " + err.Error())
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

// deriveSigningKey creates a 32-byte HS256 key from the configured secret using HKDF.
func deriveSigningKey(secret string) []byte {
	salt := []byte("wallet-engine-jwt-v1")
	info := []byte("hs256-signing")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
