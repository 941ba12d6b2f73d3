package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBRunMigrations   bool

	Stripe StripeConfig
	Redis  RedisConfig
	Jobs   JobsConfig
}

type StripeConfig struct {
	SecretKey string
	BaseURL   string
	Currency  string
	Timeout   time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type JobsConfig struct {
	Enabled            bool
	GeneratePayoutCron string
	SendTransfersCron  string
	EnabledJobs        []string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:         getenv("APP_SERVICE", "clubpay"),
		AppVersion:      getenv("APP_VERSION", "0.1.0"),
		Environment:     getenv("ENVIRONMENT", "development"),
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:    getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:          getenv("DATABASE_TYPE", "postgres"),
		DBHost:          getenv("DATABASE_HOST", "localhost"),
		DBPort:          getenv("DATABASE_PORT", "5432"),
		DBName:          getenv("DATABASE_NAME", "clubpay"),
		DBUser:          getenv("DATABASE_USER", "postgres"),
		DBPassword:      getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:       getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:   getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:   getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBRunMigrations: getenvBool("DATABASE_RUN_MIGRATIONS", true),
		Stripe: StripeConfig{
			SecretKey: strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			BaseURL:   strings.TrimRight(getenv("STRIPE_BASE_URL", "https://api.stripe.com"), "/"),
			Currency:  strings.ToLower(getenv("PAYOUT_CURRENCY", "sek")),
			Timeout:   time.Duration(getenvInt("STRIPE_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Jobs: JobsConfig{
			Enabled:            getenvBool("SCHEDULER_ENABLED", true),
			GeneratePayoutCron: getenv("SCHEDULER_GENERATE_PAYOUTS_CRON", "0 3 1 * *"),
			SendTransfersCron:  getenv("SCHEDULER_SEND_TRANSFERS_CRON", "0 4 * * *"),
			EnabledJobs:        parseList(getenv("SCHEDULER_ENABLED_JOBS", "")),
		},
	}
	cfg.DBConnMaxLifetime = getenvInt("DATABASE_CONN_MAX_LIFETIME", 300)
	cfg.DBConnMaxIdleTime = getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60)

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
