// Package config содержит логику чтения конфигурации леджера.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress = "localhost:8080"
	defaultCacheTTL   = time.Minute
	defaultRateLimit  = 50
)

// Config содержит параметры конфигурации леджера.
type Config struct {
	RunAddress          string        `env:"RUN_ADDRESS"`
	DatabaseURI         string        `env:"DATABASE_URI"`
	TransferRailAddress string        `env:"TRANSFER_RAIL_ADDRESS"`
	OperatorIdentity    string        `env:"OPERATOR_IDENTITY"`
	AuthSecret          string        `env:"AUTH_SECRET"`
	RedisURL            string        `env:"REDIS_URL"`
	RabbitMQURL         string        `env:"RABBITMQ_URL"`
	CacheTTL            time.Duration `env:"CACHE_TTL"`
	RateLimit           int
}

// envConfig отличает явный RATE_LIMIT=0 от отсутствующей переменной.
type envConfig struct {
	Config
	RateLimit *int `env:"RATE_LIMIT"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	envCfg := envConfig{}
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.TransferRailAddress, "r", "", "transfer rail address")
	flag.StringVar(&cfg.OperatorIdentity, "o", "", "operator identity")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for caller identity tokens")
	flag.StringVar(&cfg.RedisURL, "redis", "", "redis URL for the account cache")
	flag.StringVar(&cfg.RabbitMQURL, "amqp", "", "RabbitMQ URL for ledger events")
	flag.DurationVar(&cfg.CacheTTL, "cache-ttl", defaultCacheTTL, "account cache TTL")
	flag.IntVar(&cfg.RateLimit, "rate-limit", defaultRateLimit, "requests per second, 0 disables limiting")

	flag.Parse()

	override(&cfg.RunAddress, envCfg.RunAddress)
	override(&cfg.DatabaseURI, envCfg.DatabaseURI)
	override(&cfg.TransferRailAddress, envCfg.TransferRailAddress)
	override(&cfg.OperatorIdentity, envCfg.OperatorIdentity)
	override(&cfg.AuthSecret, envCfg.AuthSecret)
	override(&cfg.RedisURL, envCfg.RedisURL)
	override(&cfg.RabbitMQURL, envCfg.RabbitMQURL)
	if envCfg.CacheTTL != 0 {
		cfg.CacheTTL = envCfg.CacheTTL
	}
	if envCfg.RateLimit != nil {
		cfg.RateLimit = *envCfg.RateLimit
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	if cfg.TransferRailAddress == "" {
		return nil, fmt.Errorf("transfer rail address is required")
	}
	if cfg.OperatorIdentity == "" {
		return nil, fmt.Errorf("operator identity is required")
	}

	return cfg, nil
}

func override(dst *string, envValue string) {
	if envValue != "" {
		*dst = envValue
	}
}
