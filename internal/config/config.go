// Package config содержит логику чтения конфигурации сервиса аукциона.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress     = "localhost:8080"
	defaultSweepInterval  = 30 * time.Second
	defaultBidMaxAttempts = 3
	defaultRateLimitRPS   = 20
	defaultRateLimitBurst = 40
)

// Config содержит параметры конфигурации сервиса аукциона.
type Config struct {
	RunAddress     string        `env:"RUN_ADDRESS"`
	DatabaseURI    string        `env:"DATABASE_URI"`
	AuthSecret     string        `env:"AUTH_SECRET"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL"`
	BidMaxAttempts int           `env:"BID_MAX_ATTEMPTS"`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST"`
	AdminLogin     string        `env:"ADMIN_LOGIN"`
	AdminPassword  string        `env:"ADMIN_PASSWORD"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	fromEnv := Config{}
	if err := env.Parse(&fromEnv); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory ledger when empty")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for signing auth tokens")
	flag.DurationVar(&cfg.SweepInterval, "i", defaultSweepInterval, "interval between expired auction sweeps")
	flag.IntVar(&cfg.BidMaxAttempts, "m", defaultBidMaxAttempts, "attempts to commit a bid under contention")
	flag.Float64Var(&cfg.RateLimitRPS, "rps", defaultRateLimitRPS, "bid requests per second per client, 0 disables")
	flag.IntVar(&cfg.RateLimitBurst, "burst", defaultRateLimitBurst, "bid request burst per client")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.AuthSecret != "" {
		cfg.AuthSecret = fromEnv.AuthSecret
	}
	if fromEnv.SweepInterval != 0 {
		cfg.SweepInterval = fromEnv.SweepInterval
	}
	if fromEnv.BidMaxAttempts != 0 {
		cfg.BidMaxAttempts = fromEnv.BidMaxAttempts
	}
	if fromEnv.RateLimitRPS != 0 {
		cfg.RateLimitRPS = fromEnv.RateLimitRPS
	}
	if fromEnv.RateLimitBurst != 0 {
		cfg.RateLimitBurst = fromEnv.RateLimitBurst
	}
	cfg.AdminLogin = fromEnv.AdminLogin
	cfg.AdminPassword = fromEnv.AdminPassword

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SweepInterval <= 0 {
		return errors.New("sweep interval must be positive")
	}
	if c.BidMaxAttempts < 1 {
		return errors.New("bid max attempts must be at least 1")
	}
	if c.RateLimitRPS < 0 {
		return errors.New("rate limit must not be negative")
	}
	if (c.AdminLogin == "") != (c.AdminPassword == "") {
		return errors.New("ADMIN_LOGIN and ADMIN_PASSWORD must be set together")
	}
	return nil
}
