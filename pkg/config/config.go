package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                    string
	Env                     string
	FirebaseCredentialsPath string
	PostgresConnStr         string
	MongoURI                string
	RedisAddr               string
	JWTSecret               string

	// Moderation / notification pipeline tuning
	NotificationDedupWindow time.Duration
	FanoutConcurrency       int
	FanoutMaxAttempts       int

	// Recommendation cache tuning
	RecommendationTTL time.Duration
	RecomputeDeadline time.Duration
}

func Load() *Config {
	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		RedisAddr:               getEnv("REDIS_ADDR", ""),
		JWTSecret:               getEnv("JWT_SECRET", "supersecretjwtkey"),
		NotificationDedupWindow: getEnvDuration("NOTIFICATION_DEDUP_WINDOW", 24*time.Hour),
		FanoutConcurrency:       getEnvInt("FANOUT_CONCURRENCY", 4),
		FanoutMaxAttempts:       getEnvInt("FANOUT_MAX_ATTEMPTS", 3),
		RecommendationTTL:       getEnvDuration("RECOMMENDATION_TTL", 15*time.Minute),
		RecomputeDeadline:       getEnvDuration("RECOMPUTE_DEADLINE", 5*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
