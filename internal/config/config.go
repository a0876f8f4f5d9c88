package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Port          string
	PublicBaseURL string

	MongoURI     string
	DBName       string
	StoreBackend string // "mongo" or "memory"

	JWTSecret   string
	TokenExpiry time.Duration

	// RedisAddr switches the per-account lock to Redis so several
	// server replicas can share one Mongo database. Empty keeps the
	// in-process lock.
	RedisAddr string

	CatalogPath string

	MinDepositCents int64
	MaxDepositCents int64
	MaxSaveBytes    int64

	AllowedOrigins []string
}

// LoadConfig reads .env when present and falls back to defaults for
// everything but the JWT secret.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, relying on process environment")
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:          getEnv("DB_NAME", "nexar"),
		StoreBackend:    getEnv("STORE_BACKEND", "mongo"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		TokenExpiry:     getEnvDuration("TOKEN_EXPIRY", 24*time.Hour),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		CatalogPath:     getEnv("CATALOG_PATH", "catalog.yaml"),
		MinDepositCents: getEnvInt64("MIN_DEPOSIT_CENTS", 100),
		MaxDepositCents: getEnvInt64("MAX_DEPOSIT_CENTS", 50000),
		MaxSaveBytes:    getEnvInt64("MAX_SAVE_BYTES", 1<<20),
		AllowedOrigins:  getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	if cfg.JWTSecret == "" {
		logrus.Warn("JWT_SECRET is not set, tokens will not survive restarts safely")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("Invalid duration %q, using %s", v, fallback)
		return fallback
	}
	return d
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		logrus.WithField("key", key).Warnf("Invalid number %q, using %d", v, fallback)
		return fallback
	}
	return n
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
