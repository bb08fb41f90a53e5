package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ScoreWeights are the relative weights of the five relevance sub-scores.
// Budget and location carry slightly more weight by default.
type ScoreWeights struct {
	Budget     float64
	Category   float64
	Location   float64
	Time       float64
	Preference float64
}

// DefaultScoreWeights returns the standard weighting. The five weights sum
// to 1.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Budget:     0.25,
		Location:   0.25,
		Category:   0.20,
		Time:       0.15,
		Preference: 0.15,
	}
}

type Config struct {
	// Server
	Port string
	Env  string // "development", "production"

	// Store (Redis-backed key-value store)
	RedisAddr     string
	RedisPassword string

	// Auth
	JWTSecret string

	// CORS
	AllowedOrigins []string

	// Scoring
	Weights ScoreWeights

	// Clustering
	ClusterCellSizeDeg float64

	// Digest scheduler
	SchedulerEnabled    bool
	DigestDailySchedule string        // Cron expression (e.g., "0 9 * * *" for 09:00 daily)
	DigestWeekSchedule  string        // Cron expression for the weekly flush
	DigestTimeout       time.Duration // Timeout for one complete flush cycle
}

func Load() *Config {
	return &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Store
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		// Auth
		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-production"),

		// CORS
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),

		// Scoring
		Weights: ScoreWeights{
			Budget:     getFloatEnv("SCORE_WEIGHT_BUDGET", 0.25),
			Location:   getFloatEnv("SCORE_WEIGHT_LOCATION", 0.25),
			Category:   getFloatEnv("SCORE_WEIGHT_CATEGORY", 0.20),
			Time:       getFloatEnv("SCORE_WEIGHT_TIME", 0.15),
			Preference: getFloatEnv("SCORE_WEIGHT_PREFERENCE", 0.15),
		},

		// Clustering
		ClusterCellSizeDeg: getFloatEnv("CLUSTER_CELL_SIZE_DEG", 0.01),

		// Digest scheduler
		SchedulerEnabled:    getBoolEnv("SCHEDULER_ENABLED", true),
		DigestDailySchedule: getEnv("DIGEST_DAILY_SCHEDULE", "0 9 * * *"),  // Default: 09:00 daily
		DigestWeekSchedule:  getEnv("DIGEST_WEEKLY_SCHEDULE", "0 9 * * 1"), // Default: Monday 09:00
		DigestTimeout:       getDurationEnv("DIGEST_TIMEOUT", 2*time.Minute),
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
