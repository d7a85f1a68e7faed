// Package redisconn turns the configured Redis URL into client options for
// go-redis and asynq.
// This is part of the platform layer and contains no business logic.
package redisconn

import (
	"crypto/tls"
	"fmt"

	"listing_leads_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Options parses the URL and applies the insecure TLS switch.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if cfg.GetRedisTLSInsecure() {
			clone.InsecureSkipVerify = true
		}
		opt.TLSConfig = clone
	} else if cfg.GetRedisTLSInsecure() {
		opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return opt, nil
}

// NewClient opens a go-redis client. The connection is lazy.
func NewClient(cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

// AsynqOpt adapts the same options for asynq clients, servers and schedulers.
func AsynqOpt(cfg config.RedisConfig) (asynq.RedisClientOpt, error) {
	opt, err := Options(cfg)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
