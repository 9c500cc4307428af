package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration. FromEnv keeps main lean.
type Config struct {
	Addr            string
	PostgresURL     string
	RedisURL        string
	KafkaBrokers    []string
	AuditTopic      string
	ShutdownTimeout time.Duration
}

// FromEnv builds a Config from environment variables with development
// defaults. An empty PostgresURL means the server runs on in-memory stores,
// which is what local development and the test suites use.
func FromEnv() Config {
	cfg := Config{
		Addr:            getenv("SHA_ADDR", ":8080"),
		PostgresURL:     os.Getenv("SHA_POSTGRES_URL"),
		RedisURL:        os.Getenv("SHA_REDIS_URL"),
		AuditTopic:      getenv("SHA_AUDIT_TOPIC", "sha.audit.events"),
		ShutdownTimeout: 10 * time.Second,
	}
	if brokers := os.Getenv("SHA_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if raw := os.Getenv("SHA_SHUTDOWN_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
