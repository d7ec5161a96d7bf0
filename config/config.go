package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

const defaultJWTSecret = "default_secret_CHANGE_ME"

type Config struct {
	Port          string
	Env           string
	LogLevel      string
	JWTSecret     string
	AllowedOrigin string
	FrontendURL   string // checkout success and cancel pages live here
	// DB Config
	DBUrl             string
	DBMaxConns        int32
	DBMinConns        int32
	DBMaxConnIdleTime time.Duration
	DBRunMigrations   bool
	// Card processor
	Currency              string
	StripeSecretKey       string
	StripeWebhookSecret   string
	StripeAPIURL          string
	PaymentTimeout        time.Duration
	PaymentBreakerFailure uint32
	PaymentBreakerTimeout time.Duration
	// Webhook de-duplication
	RedisURL        string
	WebhookDedupTTL time.Duration
	// Order events
	KafkaBrokers       []string
	KafkaOrderTopic    string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	// Unpaid card orders
	OrderPaymentTTL    time.Duration
	OrderSweepInterval time.Duration
	// Business Rules
	MaxCartQuantity int
	MaxCartItems    int
	// HTTP
	RateLimitRPS   float64
	RateLimitBurst int
	// Cache
	CacheStatsTTL time.Duration
}

func LoadConfig() *Config {
	// 1. Check if a specific config file is requested via env var
	configFile := os.Getenv("CONFIG_FILE")
	if configFile != "" {
		if err := godotenv.Load(configFile); err != nil {
			log.Printf("Warning: Failed to load config file '%s': %v", configFile, err)
		} else {
			log.Printf("Loaded configuration from %s", configFile)
		}
	} else {
		// 2. Default fallback: .env for local dev, system env vars otherwise
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found or error loading it, relying on system env vars")
		}
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("CRITICAL: %v", err)
	}
	if cfg.JWTSecret == defaultJWTSecret {
		log.Println("WARNING: Using default JWT secret. Setting up for failure in production.")
	}
	return cfg
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		JWTSecret:     getEnv("JWT_SECRET", defaultJWTSecret),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:3000"),

		DBUrl:             getEnv("DB_DSN", ""),
		DBMaxConns:        getInt32Env("DB_MAX_CONNS", 50),
		DBMinConns:        getInt32Env("DB_MIN_CONNS", 10),
		DBMaxConnIdleTime: getDurationEnv("DB_MAX_CONN_IDLE_TIME", time.Minute*15),
		DBRunMigrations:   getBoolEnv("DB_RUN_MIGRATIONS", false),

		Currency:              getEnv("CURRENCY", "usd"),
		StripeSecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeAPIURL:          getEnv("STRIPE_API_URL", "https://api.stripe.com"),
		PaymentTimeout:        getDurationEnv("PAYMENT_TIMEOUT", 10*time.Second),
		PaymentBreakerFailure: uint32(getIntEnv("PAYMENT_BREAKER_FAILURES", 5)),
		PaymentBreakerTimeout: getDurationEnv("PAYMENT_BREAKER_TIMEOUT", 30*time.Second),

		RedisURL:        getEnv("REDIS_URL", ""),
		WebhookDedupTTL: getDurationEnv("WEBHOOK_DEDUP_TTL", 72*time.Hour),

		KafkaBrokers:       getListEnv("KAFKA_BROKERS", nil),
		KafkaOrderTopic:    getEnv("KAFKA_ORDER_TOPIC", "orders"),
		OutboxPollInterval: getDurationEnv("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:    getIntEnv("OUTBOX_BATCH_SIZE", 100),

		OrderPaymentTTL:    getDurationEnv("ORDER_PAYMENT_TTL", 24*time.Hour),
		OrderSweepInterval: getDurationEnv("ORDER_SWEEP_INTERVAL", 10*time.Minute),

		// Business rules: 1000 max quantity per line, 100 lines
		MaxCartQuantity: getIntEnv("MAX_CART_QUANTITY", 1000),
		MaxCartItems:    getIntEnv("MAX_CART_ITEMS", 100),

		RateLimitRPS:   getFloatEnv("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 40),

		CacheStatsTTL: getDurationEnv("CACHE_STATS_TTL", time.Minute),
	}
}

func (c *Config) Validate() error {
	if c.DBUrl == "" {
		return errors.New("DB_DSN environment variable is required")
	}
	if c.StripeSecretKey != "" && c.StripeWebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}
	if c.MaxCartItems <= 0 {
		return errors.New("MAX_CART_ITEMS must be positive")
	}
	if c.MaxCartQuantity <= 0 {
		return errors.New("MAX_CART_QUANTITY must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s, using fallback", key)
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s, using fallback", key)
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("Invalid float for %s, using fallback", key)
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Printf("Invalid bool for %s, using fallback", key)
	}
	return fallback
}
