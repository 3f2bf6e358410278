// Package cache owns the shared Redis connection used by the location and
// geocode caches and the notification queue.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/shiva/moveops/config"
)

// NewRedisClient creates a pooled Redis client and pings it once.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(options(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// options keeps at least a tenth of the pool idle.
func options(cfg config.RedisConfig) *redis.Options {
	minIdle := cfg.PoolSize / 10
	if minIdle < 1 {
		minIdle = 1
	}
	return &redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: minIdle,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
}

// HealthCheck pings the Redis client and returns nil if healthy.
func HealthCheck(ctx context.Context, client *redis.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(pingCtx).Err()
}

// RegisterPoolMetrics exposes the client's connection pool counters.
func RegisterPoolMetrics(reg prometheus.Registerer, client *redis.Client) error {
	stat := func(name, help string, value func(*redis.PoolStats) uint32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "moveops",
			Subsystem: "redis_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(value(client.PoolStats())) })
	}
	collectors := []prometheus.Collector{
		stat("hits", "Times a free connection was found in the pool.", func(s *redis.PoolStats) uint32 { return s.Hits }),
		stat("misses", "Times a free connection was not found in the pool.", func(s *redis.PoolStats) uint32 { return s.Misses }),
		stat("timeouts", "Times a wait for a connection timed out.", func(s *redis.PoolStats) uint32 { return s.Timeouts }),
		stat("total_conns", "Open connections.", func(s *redis.PoolStats) uint32 { return s.TotalConns }),
		stat("idle_conns", "Idle connections.", func(s *redis.PoolStats) uint32 { return s.IdleConns }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("redis: register pool metrics: %w", err)
		}
	}
	return nil
}
