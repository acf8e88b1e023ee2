package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yatube/yatube/config"
)

var (
	redisClient  *redis.Client
	redisHealthy bool
	redisOnce    sync.Once
)

// GetRedis returns a singleton Redis client based on loaded config.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		cfg := config.Get()
		redisClient = redis.NewClient(&redis.Options{
			Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			if Sugar != nil {
				Sugar.Warnf("redis unavailable, falling back to in-process stores: %v", err)
			}
			return
		}
		redisHealthy = true
	})
	return redisClient
}

// RedisHealthy reports whether the boot-time ping succeeded. Callers with an
// in-process fallback use it to avoid per-request dial timeouts.
func RedisHealthy() bool {
	GetRedis()
	return redisHealthy
}
