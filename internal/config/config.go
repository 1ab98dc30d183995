package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config is shared by the api, the worker and orderctl.
type Config struct {
	AWSRegion   string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpoint string `env:"AWS_ENDPOINT"` // localstack / dynamodb-local

	OrdersTable      string `env:"ORDERS_TABLE" envDefault:"orders"`
	IdempotencyTable string `env:"IDEMPOTENCY_TABLE" envDefault:"idempotency"`
	LedgerTable      string `env:"COD_LEDGER_TABLE" envDefault:"cod_ledger"`
	QueueURL         string `env:"ORDERS_QUEUE_URL"`

	JWTSecret string `env:"JWT_SECRET"`
	RedisAddr string `env:"REDIS_ADDR"`

	RunLocal bool   `env:"RUN_LOCAL" envDefault:"false"`
	Addr     string `env:"ADDR" envDefault:":8080"`
	Debug    bool   `env:"DEBUG" envDefault:"false"`

	TTLWindow        time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"48h"`
	LockTTL          time.Duration `env:"ORDER_LOCK_TTL" envDefault:"10s"`
	MetricsNamespace string        `env:"METRICS_NAMESPACE" envDefault:"Marketplace/Orders"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// ValidateServer checks what the api and worker cannot run without.
func (c *Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.QueueURL == "" {
		return errors.New("ORDERS_QUEUE_URL is required")
	}
	return nil
}
