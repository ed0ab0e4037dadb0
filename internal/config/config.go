package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database. Empty selects the in-memory backend (development/demo).
	DatabaseURL string

	// Redis. Empty runs the live feed single-instance.
	RedisURL string

	// JWT
	JWTSecret string
	JWTTTL    time.Duration

	// CORS
	AllowedOrigins []string

	// Bounded wait for per-credit locks before an operation fails busy.
	LockWait time.Duration

	// Audit archive (R2). Empty AccountID falls back to local storage.
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2BucketName      string
	R2PublicURL       string
	ArchiveLocalPath  string

	// Logging
	LogLevel string
}

func Load() *Config {
	// Load .env file in development
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", "super-secret-key-change-me"),
		JWTTTL:    parseDuration(getEnv("JWT_TTL", "24h"), 24*time.Hour),

		AllowedOrigins: parseStringSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		LockWait: parseDuration(getEnv("LOCK_WAIT", "2s"), 2*time.Second),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2AccessKeySecret: getEnv("R2_ACCESS_KEY_SECRET", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", "greenledger-audits"),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),
		ArchiveLocalPath:  getEnv("ARCHIVE_LOCAL_PATH", "./audits"),

		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

func parseStringSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if start < i {
				result = append(result, s[start:i])
			}
			start = i + 1
		}
	}
	return result
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
