package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Remote source of truth
	RemoteDatabaseURL string

	// Security settings
	JWTSecret string

	// Money settings
	ReferenceCurrency string

	// Promotion retry settings
	PromoteMaxRetries  int
	PromoteRetryJitter time.Duration

	// Reference-data cache
	RefdataCacheTTL time.Duration
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory (common when running from /backend)
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getRequiredEnv("JWT_SECRET")
	remoteDatabaseURL := getRequiredEnv("REMOTE_DATABASE_URL")

	referenceCurrency := strings.ToUpper(getEnv("REFERENCE_CURRENCY", "EUR"))
	if len(referenceCurrency) != 3 {
		log.Printf("WARNING: REFERENCE_CURRENCY '%s' is not a 3-letter code. Using EUR.", referenceCurrency)
		referenceCurrency = "EUR"
	}

	Cfg = &AppConfig{
		// Core
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./centavo.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		// Remote
		RemoteDatabaseURL: remoteDatabaseURL,

		// Security
		JWTSecret: jwtSecret,

		// Money
		ReferenceCurrency: referenceCurrency,

		// Promotion
		PromoteMaxRetries:  getEnvAsInt("PROMOTE_MAX_RETRIES", 3),
		PromoteRetryJitter: getEnvAsDuration("PROMOTE_RETRY_JITTER", 250*time.Millisecond),

		// Caching
		RefdataCacheTTL: getEnvAsDuration("REFDATA_CACHE_TTL", 5*time.Minute),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, ReferenceCurrency=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.ReferenceCurrency)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getRequiredEnv retrieves an environment variable or terminates the application if not set.
func getRequiredEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set or is empty. Application cannot start securely.", key)
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
