package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zsims/atscale/internal/config"
)

const pingTimeout = 2 * time.Second

// NewClient connects to the configured Redis deployment. Several addresses
// select a cluster client, a single address a plain client.
func NewClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: no addresses configured")
	}

	var cl redis.UniversalClient
	if len(cfg.Addrs) > 1 {
		cl = redis.NewClusterClient(&redis.ClusterOptions{
			RouteByLatency: true,
			Addrs:          cfg.Addrs,
			Password:       cfg.Password,
			DialTimeout:    cfg.DialTimeout,
			PoolTimeout:    30 * time.Second,
		})
	} else {
		cl = redis.NewClient(&redis.Options{
			Addr:        cfg.Addrs[0],
			Password:    cfg.Password,
			DB:          cfg.DB,
			DialTimeout: cfg.DialTimeout,
		})
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := cl.Ping(pingCtx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("error pinging redis: %w", err)
	}
	return cl, nil
}
