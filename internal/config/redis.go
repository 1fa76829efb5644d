package config

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig is read from:
//
//	REDIS_HOST and REDIS_PORT, or REDIS_ADDR (host:port)
//	REDIS_PASSWORD
//	REDIS_DB (default 0)
//	REDIS_TLS ("true" or "1")
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

func LoadRedisConfig() RedisConfig {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	return RedisConfig{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
		TLS:      envBool("REDIS_TLS", false),
	}
}

// NewRedisClient connects and pings with a short timeout.  Callers decide
// whether a failure is fatal: it is for the redis inventory backend, the
// live feed, cache and rate limiter just switch off.
func NewRedisClient(rc RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	}
	if rc.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", rc.Addr, err)
	}
	return client, nil
}
