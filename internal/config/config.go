package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	JWTSecret          string
	LogLevel           string

	Backend backend.Config

	MongoURI      string
	MongoDatabase string
	MongoMaxPool  uint64

	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration

	// Sessions unused for SessionIdleTimeout are forgotten; their carts stay stored.
	SessionIdleTimeout   time.Duration
	SessionEvictInterval time.Duration

	// Postgres is nil when POSTGRES_HOST is unset; order history is then disabled.
	Postgres *orders.Credentials

	// KafkaBrokers is empty when order events are not consumed.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
}

// Load reads the configuration from the environment. Values from a .env file in the
// working directory are used for variables not already set.
func Load() (*Config, error) {
	return LoadFile(".env")
}

func LoadFile(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	p := &parser{}
	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		RequestTimeout:     p.duration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB
		JWTSecret:          getEnv("JWT_SECRET", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Backend: backend.Config{
			BaseURL:            getEnv("BACKEND_URL", "http://localhost:8000/api"),
			Timeout:            p.duration("BACKEND_TIMEOUT", 10*time.Second),
			BreakerMaxFailures: uint32(p.integer("BACKEND_BREAKER_MAX_FAILURES", 5)),
			BreakerOpenTimeout: p.duration("BACKEND_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "storefront"),
		MongoMaxPool:  uint64(p.integer("MONGO_MAX_POOL_SIZE", 100)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CacheTTL:      p.duration("CACHE_TTL", 15*time.Minute),

		SessionIdleTimeout:   p.duration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionEvictInterval: p.duration("SESSION_EVICT_INTERVAL", time.Minute),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "order-placed"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "storefront-consumer"),
	}

	if host := getEnv("POSTGRES_HOST", ""); host != "" {
		cfg.Postgres = &orders.Credentials{
			Host:     host,
			Port:     p.integer("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "storefront"),
		}
	}

	if p.err != nil {
		return nil, p.err
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.SessionIdleTimeout <= cfg.RequestTimeout {
		return nil, errors.New("SESSION_IDLE_TIMEOUT must be longer than REQUEST_TIMEOUT")
	}
	if cfg.SessionEvictInterval <= 0 {
		return nil, errors.New("SESSION_EVICT_INTERVAL must be positive")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, err)
		return defaultValue
	}
	return d
}

func (p *parser) integer(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		p.fail(key, fmt.Errorf("invalid non-negative integer %q", raw))
		return defaultValue
	}
	return n
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config %s: %w", key, err)
	}
}
