// Package gparedis provides Redis backed helpers for gpadmin resources
package gparedis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lemmego/gpadmin"
)

// =====================================
// Connection
// =====================================

// Open creates a client for config and pings it. Config.Database selects the
// numeric Redis database; timeouts come from Options["redis"].
func Open(ctx context.Context, config gpadmin.Config) (*redis.Client, error) {
	opts, err := clientOptions(config)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConnection, "failed to connect to Redis", err)
	}
	return client, nil
}

// clientOptions maps config onto redis.Options
func clientOptions(config gpadmin.Config) (*redis.Options, error) {
	if config.ConnectionURL != "" {
		opts, err := redis.ParseURL(config.ConnectionURL)
		if err != nil {
			return nil, gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConfiguration, "invalid Redis URL", err)
		}
		return opts, nil
	}

	host := config.Host
	if host == "" {
		host = "localhost"
	}
	port := config.Port
	if port == 0 {
		port = 6379
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: config.Username,
		Password: config.Password,
	}

	if config.Database != "" {
		db, err := strconv.Atoi(config.Database)
		if err != nil {
			return nil, gpadmin.NewErrorWithCause(gpadmin.ErrorTypeConfiguration,
				fmt.Sprintf("redis database must be numeric, got %q", config.Database), err)
		}
		opts.DB = db
	}

	// Configure connection pool
	if config.MaxOpenConns > 0 {
		opts.PoolSize = config.MaxOpenConns
	}
	if config.MaxIdleConns > 0 {
		opts.MinIdleConns = config.MaxIdleConns
	}
	if config.ConnMaxLifetime > 0 {
		opts.MaxConnAge = config.ConnMaxLifetime
	}
	if config.ConnMaxIdleTime > 0 {
		opts.IdleTimeout = config.ConnMaxIdleTime
	}

	if redisOpts, ok := config.Options["redis"].(map[string]interface{}); ok {
		if dialTimeout, ok := redisOpts["dial_timeout"].(time.Duration); ok {
			opts.DialTimeout = dialTimeout
		}
		if readTimeout, ok := redisOpts["read_timeout"].(time.Duration); ok {
			opts.ReadTimeout = readTimeout
		}
		if writeTimeout, ok := redisOpts["write_timeout"].(time.Duration); ok {
			opts.WriteTimeout = writeTimeout
		}
	}

	return opts, nil
}

// convertRedisError converts Redis errors to gpadmin errors
func convertRedisError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return gpadmin.NewError(gpadmin.ErrorTypeNotFound, "key not found")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeTimeout, "Redis operation timeout", err)
	}

	return gpadmin.NewErrorWithCause(gpadmin.ErrorTypeDatabase, "Redis operation failed", err)
}
