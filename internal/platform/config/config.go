package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries everything the process needs, resolved once at startup.
type Config struct {
	Server   Server
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Log      LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// PostgresConfig configures the database/sql pool. An empty DSN means the
// process runs on the in-memory stores.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the report cache client. An empty URL disables
// caching entirely.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the alert notification publisher. No brokers means
// notifications are not published.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LogConfig selects the process logger output.
type LogConfig struct {
	Level  string
	Format string
}

// FromEnv builds the full config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envString("FINREG_ADDR", ":8080"),
			ReadTimeout:     envDuration("FINREG_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    envDuration("FINREG_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     envDuration("FINREG_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: envDuration("FINREG_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:             envString("FINREG_POSTGRES_DSN", ""),
			MaxOpenConns:    envInt("FINREG_POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("FINREG_POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("FINREG_POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          envString("FINREG_REDIS_URL", ""),
			PoolSize:     envInt("FINREG_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("FINREG_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("FINREG_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("FINREG_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("FINREG_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("FINREG_KAFKA_BROKERS"),
			Topic:   envString("FINREG_KAFKA_TOPIC", "finreg.alerts"),
		},
		Log: LogConfig{
			Level:  envString("FINREG_LOG_LEVEL", "info"),
			Format: envString("FINREG_LOG_FORMAT", "json"),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// envList splits a comma separated value, dropping empty items.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
