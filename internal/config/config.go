// Package config loads the environment configuration recognized by
// the service (spec §6), following the teacher's os.Getenv-plus-default
// pattern used throughout infrastructure/database.Connect.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds every environment-backed option the core and its thin
// transport/config wrappers need.
type Config struct {
	Port string

	RedisHost string
	RedisPort string

	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string

	MarketplaceASecret  string
	MarketplaceBAPI     string
	MarketplaceBAPIKey  string

	ShutdownGracePeriodSeconds int
}

// Load reads the environment, applying the defaults named in spec §6.
func Load() Config {
	return Config{
		Port: getEnv("PORT", "3000"),

		RedisHost: getEnv("REDIS_HOST", "localhost"),
		RedisPort: getEnv("REDIS_PORT", "6379"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBName:     getEnv("DB_NAME", "inventory"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),

		MarketplaceASecret: os.Getenv("MARKETPLACE_A_SECRET"),
		MarketplaceBAPI:    os.Getenv("MARKETPLACE_B_API"),
		MarketplaceBAPIKey: os.Getenv("MARKETPLACE_B_API_KEY"),

		ShutdownGracePeriodSeconds: getEnvInt("SHUTDOWN_GRACE_PERIOD", 30),
	}
}

// RedisAddr returns the host:port pair go-redis expects.
func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// PostgresDSN builds the lib/pq connection string.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
