// Package config provides configuration management for the workflow engine
// host process. It loads configuration from environment variables with
// sensible defaults and validates the result before the engine starts.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: HTTP query API port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Persistence:
//   - LINEAGE_DB_PATH: SQLite file for lineage audit records
//     (default: ./lineage.db)
//   - STORAGE_DB_PATH: SQLite file for the stage storage handle
//     (empty: in-memory storage)
//
// Notifications:
//   - REDIS_ADDRESS: Redis server address for the pub/sub notification
//     channel (empty: log-only notifications)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//
// History:
//   - MAX_HISTORY_PER_WORKFLOW: retained executions per workflow,
//     0 keeps everything (default: 0)
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration values for the workflow engine host.
// All fields correspond to environment variables that can be set to
// override the defaults.
type Config struct {
	// Application settings
	Port     string // HTTP query API port
	LogLevel string // Logging level (debug, info, warn, error)

	// Persistence
	LineageDBPath string // SQLite file for lineage records
	StorageDBPath string // SQLite file for stage storage, empty = in-memory

	// Redis notification channel
	RedisAddress  string // Redis server address (host:port), empty = disabled
	RedisPassword string // Redis authentication password
	RedisDB       int    // Redis database number (0-15)

	// History retention
	MaxHistoryPerWorkflow int // Retained executions per workflow, 0 = unbounded
}

// Load creates a new Config instance with values loaded from environment
// variables. Call Validate() on the result before use.
func Load() *Config {
	return &Config{
		Port:                  getEnv("PORT", "8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LineageDBPath:         getEnv("LINEAGE_DB_PATH", "./lineage.db"),
		StorageDBPath:         getEnv("STORAGE_DB_PATH", ""),
		RedisAddress:          getEnv("REDIS_ADDRESS", ""),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		MaxHistoryPerWorkflow: getEnvInt("MAX_HISTORY_PER_WORKFLOW", 0),
	}
}

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}

	if c.RedisDB < 0 || c.RedisDB > 15 {
		return fmt.Errorf("REDIS_DB must be between 0 and 15, got %d", c.RedisDB)
	}

	if c.MaxHistoryPerWorkflow < 0 {
		return fmt.Errorf("MAX_HISTORY_PER_WORKFLOW must not be negative, got %d", c.MaxHistoryPerWorkflow)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
