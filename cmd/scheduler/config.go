package main

import (
	"os"
	"strconv"
	"time"

	"arena-platform/backend/internal/db"
	"arena-platform/backend/internal/redis"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the scheduler daemon
type Config struct {
	// Database configuration
	DBConfig db.Config

	// Redis configuration (lock store)
	RedisConfig redis.Config

	// Scheduler configuration
	TickInterval time.Duration

	// Status endpoint
	StatusPort  string
	Environment string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	// Load .env file if it exists
	godotenv.Load()

	return Config{
		DBConfig: db.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "arena_platform"),
		},
		RedisConfig: redis.Config{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		TickInterval: time.Duration(getEnvInt("TICK_INTERVAL_SECONDS", 60)) * time.Second,
		StatusPort:   getEnv("STATUS_PORT", "8090"),
		Environment:  getEnv("ENV", "development"),
	}
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable or returns a fallback value
func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
