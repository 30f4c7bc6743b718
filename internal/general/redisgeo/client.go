package redisgeo

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"trip-dispatch/internal/general/config"
	"trip-dispatch/internal/general/logger"

	"github.com/redis/go-redis/v9"
)

// NewClient connects to Redis using cfg and verifies connectivity.
func NewClient(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*redis.Client, error) {
	start := time.Now()

	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Redis.Host, strconv.Itoa(cfg.Redis.Port)),
		Password: cfg.Redis.Password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info(ctx, "redis_connected", "Connected to Redis", map[string]any{
		"host":        cfg.Redis.Host,
		"port":        cfg.Redis.Port,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return client, nil
}
