package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the whole process configuration, read from the environment.
type Config struct {
	HTTPAddr string

	MySQLDSN  string
	RedisAddr string

	StockStrategy         string // pessimistic | distributed-mutex | atomic-counter | slot-reservation
	ContentionPolicy      string // wait | reject
	CacheTerminalFailures bool

	PortOneBaseURL        string
	PortOneAPIKey         string
	PortOneAPISecret      string
	GatewayConnectTimeout time.Duration
	GatewayReadTimeout    time.Duration

	SeedDemoData bool
}

func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		MySQLDSN:         getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/checkout?parseTime=true"),
		RedisAddr:        getenv("REDIS_ADDR", "localhost:6379"),
		StockStrategy:    getenv("STOCK_STRATEGY", "pessimistic"),
		ContentionPolicy: getenv("CONTENTION_POLICY", "wait"),
		PortOneBaseURL:   getenv("PORTONE_BASE_URL", "https://api.iamport.kr"),
		PortOneAPIKey:    os.Getenv("PORTONE_API_KEY"),
		PortOneAPISecret: os.Getenv("PORTONE_API_SECRET"),
	}

	var err error
	if cfg.CacheTerminalFailures, err = getenvBool("CACHE_TERMINAL_FAILURES", true); err != nil {
		return Config{}, err
	}
	if cfg.SeedDemoData, err = getenvBool("SEED_DEMO_DATA", false); err != nil {
		return Config{}, err
	}
	if cfg.GatewayConnectTimeout, err = getenvDuration("GATEWAY_CONNECT_TIMEOUT", 3*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.GatewayReadTimeout, err = getenvDuration("GATEWAY_READ_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	if cfg.PortOneAPIKey == "" {
		return Config{}, fmt.Errorf("PORTONE_API_KEY is required")
	}
	if cfg.PortOneAPISecret == "" {
		return Config{}, fmt.Errorf("PORTONE_API_SECRET is required")
	}
	if cfg.ContentionPolicy != "wait" && cfg.ContentionPolicy != "reject" {
		return Config{}, fmt.Errorf("CONTENTION_POLICY must be wait or reject, got %q", cfg.ContentionPolicy)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a bool: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
