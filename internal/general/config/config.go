package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	Database struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string // YAML key: "database"
	}
	RabbitMQ struct {
		Host     string
		Port     int
		User     string
		Password string
	}
	Redis struct {
		Host     string
		Port     int
		Password string
	}
	Service struct {
		Port        int
		MetricsPort int
	}
	JWT struct {
		SecretKey string
	}
	Dispatch struct {
		RadiusKM            float64
		FallbackRadiusKM    float64
		PollIntervalSeconds int
		FreeWaitingMinutes  int
	}
}

// LoadFromFile loads config from a YAML file to a Config struct, applies defaults, and validates required fields.
func LoadFromFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := parseYAML(file, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// PollInterval returns the reconciliation cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Dispatch.PollIntervalSeconds) * time.Second
}

// FreeWaitingWindow returns the free waiting window as a duration.
func (c *Config) FreeWaitingWindow() time.Duration {
	return time.Duration(c.Dispatch.FreeWaitingMinutes) * time.Minute
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	// Database
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}

	// RabbitMQ
	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	// Redis
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	// Service
	if cfg.Service.Port == 0 {
		cfg.Service.Port = 3000
	}
	if cfg.Service.MetricsPort == 0 {
		cfg.Service.MetricsPort = 9090
	}

	// Dispatch
	if cfg.Dispatch.RadiusKM == 0 {
		cfg.Dispatch.RadiusKM = 5
	}
	if cfg.Dispatch.FallbackRadiusKM == 0 {
		cfg.Dispatch.FallbackRadiusKM = 50
	}
	if cfg.Dispatch.PollIntervalSeconds == 0 {
		cfg.Dispatch.PollIntervalSeconds = 3
	}
	if cfg.Dispatch.FreeWaitingMinutes == 0 {
		cfg.Dispatch.FreeWaitingMinutes = 5
	}

	if cfg.JWT.SecretKey == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			// fallback: time-based bytes
			key = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
		}
		cfg.JWT.SecretKey = base64.StdEncoding.EncodeToString(key)
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	// DB
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		problems = append(problems, "database.port must be in 1..65535")
	}
	if c.Database.User == "" {
		problems = append(problems, "database.user is required")
	}
	if c.Database.Password == "" {
		problems = append(problems, "database.password is required")
	}
	if c.Database.Name == "" {
		problems = append(problems, "database.name is required")
	}

	// RabbitMQ
	if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
		problems = append(problems, "rabbitmq.port must be in 1..65535")
	}
	if c.RabbitMQ.User == "" {
		problems = append(problems, "rabbitmq.user is required")
	}
	if c.RabbitMQ.Password == "" {
		problems = append(problems, "rabbitmq.password is required")
	}

	// Redis
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		problems = append(problems, "redis.port must be in 1..65535")
	}

	// Service
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		problems = append(problems, "service.port must be in 1..65535")
	}
	if c.Service.MetricsPort <= 0 || c.Service.MetricsPort > 65535 {
		problems = append(problems, "service.metrics_port must be in 1..65535")
	}

	// Dispatch
	if c.Dispatch.RadiusKM <= 0 {
		problems = append(problems, "dispatch.radius_km must be positive")
	}
	if c.Dispatch.FallbackRadiusKM < c.Dispatch.RadiusKM {
		problems = append(problems, "dispatch.fallback_radius_km must be >= dispatch.radius_km")
	}
	if c.Dispatch.PollIntervalSeconds <= 0 {
		problems = append(problems, "dispatch.poll_interval_seconds must be positive")
	}
	if c.Dispatch.FreeWaitingMinutes <= 0 {
		problems = append(problems, "dispatch.free_waiting_minutes must be positive")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
