package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Local durable queue
	SQLiteDBPath string

	// AMQP sync triggers (optional; empty URL disables them)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Remote store
	RemoteBackend string
	PostgresDSN   string

	// Sync executor
	SyncInterval       time.Duration
	SyncMaxAttempts    int
	SyncAttemptTimeout time.Duration
	FlushConcurrency   int

	// Optimistic state cache
	StateCacheSize int
	StateCacheTTL  time.Duration

	// Recurring expense materializer
	MaterializeInterval time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8082"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/kudi.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "kudi"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_triggers"),

		RemoteBackend: getEnv("REMOTE_BACKEND", "memory"),
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),

		SyncInterval:       getEnvDuration("SYNC_INTERVAL", 30*time.Second),
		SyncMaxAttempts:    getEnvInt("SYNC_MAX_ATTEMPTS", 5),
		SyncAttemptTimeout: getEnvDuration("SYNC_ATTEMPT_TIMEOUT", 10*time.Second),
		FlushConcurrency:   getEnvInt("FLUSH_CONCURRENCY", 4),

		StateCacheSize: getEnvInt("STATE_CACHE_SIZE", 1000),
		StateCacheTTL:  getEnvDuration("STATE_CACHE_TTL", 30*time.Minute),

		MaterializeInterval: getEnvDuration("MATERIALIZE_INTERVAL", time.Hour),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	validBackends := []string{"memory", "postgres"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.RemoteBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.RemoteBackend, validBackends))
	}

	if c.RemoteBackend == "postgres" && c.PostgresDSN == "" {
		errors = append(errors, "POSTGRES_DSN is required when using the postgres backend")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.SyncMaxAttempts < 0 {
		errors = append(errors, fmt.Sprintf("invalid sync max attempts %d: must not be negative", c.SyncMaxAttempts))
	}

	if c.SyncAttemptTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync attempt timeout %v: must be at least 1 second", c.SyncAttemptTimeout))
	}

	if c.FlushConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("invalid flush concurrency %d: must be at least 1", c.FlushConcurrency))
	}

	if c.StateCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid state cache size %d: must be at least 1", c.StateCacheSize))
	}

	if c.StateCacheTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid state cache TTL %v: must be at least 1 minute", c.StateCacheTTL))
	}

	if c.MaterializeInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid materialize interval %v: must be at least 1 minute", c.MaterializeInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
