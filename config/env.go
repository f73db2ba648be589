package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	App     AppConfig
	Redis   RedisConfig
	DB      DBConfig
	Auth    AuthConfig
	Gateway GatewayConfig
	Ledger  LedgerConfig
}

type AppConfig struct {
	Env string
}

func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

type GatewayConfig struct {
	Port      string
	RateLimit string
	// GRPCAddr is where the gateway reaches the ledger health service.
	GRPCAddr string
	// CORSOrigins empty allows any origin.
	CORSOrigins []string
}

type LedgerConfig struct {
	ListenAddr        string
	DefaultTaxPercent decimal.Decimal
	LowStockSchedule  string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisDB := getEnvInt("REDIS_DB", 0)

	return Config{
		App: AppConfig{
			Env: getEnv("APP_ENV", "development"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			Enabled:  getEnvBool("REDIS_ENABLED", true),
		},
		DB: DBConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			DSN:             getEnv("DB_DSN", "host=localhost user=caisse password=caisse dbname=caisse port=5432 sslmode=disable TimeZone=UTC"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", "change-me"),
			TokenTTL:      getEnvDuration("JWT_TTL", 12*time.Hour),
			AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
			AdminEmail:    getEnv("ADMIN_EMAIL", "admin@caisse.local"),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
		Gateway: GatewayConfig{
			Port:        getEnv("GATEWAY_PORT", "8080"),
			RateLimit:   getEnv("RATE_LIMIT", "100-M"),
			GRPCAddr:    getEnv("LEDGER_GRPC_ADDR", "localhost:50051"),
			CORSOrigins: getEnvList("CORS_ORIGINS"),
		},
		Ledger: LedgerConfig{
			ListenAddr:        getEnv("LEDGER_LISTEN_ADDR", ":50051"),
			DefaultTaxPercent: getEnvDecimal("DEFAULT_TAX_PERCENT", decimal.NewFromInt(20)),
			LowStockSchedule:  getEnv("LOW_STOCK_SCHEDULE", "@every 1h"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
