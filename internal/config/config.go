package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type GatewayConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
	MaxAmount     float64
}

type RabbitConfig struct {
	URL      string
	Exchange string
}

type Config struct {
	App struct {
		Port string
	}
	Postgres PostgresConfig
	Gateway  GatewayConfig
	Rabbit   RabbitConfig
}

func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := &Config{}
	cfg.App.Port = getEnv("APP_PORT", "8080")

	cfg.Postgres.Host = os.Getenv("DB_HOST")
	cfg.Postgres.Port = getEnv("DB_PORT", "5432")
	cfg.Postgres.User = os.Getenv("DB_USER")
	cfg.Postgres.Password = os.Getenv("DB_PASSWORD")
	cfg.Postgres.DBName = os.Getenv("DB_NAME")
	cfg.Postgres.SSLMode = getEnv("DB_SSLMODE", "disable")

	for name, value := range map[string]string{
		"DB_HOST":     cfg.Postgres.Host,
		"DB_USER":     cfg.Postgres.User,
		"DB_PASSWORD": cfg.Postgres.Password,
		"DB_NAME":     cfg.Postgres.DBName,
	} {
		if value == "" {
			return nil, fmt.Errorf("%s is required", name)
		}
	}

	cfg.Gateway.BaseURL = getEnv("GATEWAY_BASE_URL", "http://localhost:4242")
	cfg.Gateway.APIKey = os.Getenv("GATEWAY_API_KEY")
	cfg.Gateway.WebhookSecret = os.Getenv("GATEWAY_WEBHOOK_SECRET")
	if cfg.Gateway.WebhookSecret == "" {
		return nil, fmt.Errorf("GATEWAY_WEBHOOK_SECRET is required")
	}
	cfg.Gateway.Timeout = parseDuration("GATEWAY_TIMEOUT", 10*time.Second)
	cfg.Gateway.MaxAmount = parseFloat("GATEWAY_MAX_AMOUNT", 10000)

	cfg.Rabbit.URL = os.Getenv("RABBIT_URL")
	cfg.Rabbit.Exchange = getEnv("RABBIT_EXCHANGE", "checkout.events")

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return def
}

func parseFloat(key string, def float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return def
}
