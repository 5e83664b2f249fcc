// Package scheduler runs the background jobs: the periodic SLA sweep enqueued
// through asynq and processed by the worker.
package scheduler

import (
	"crypto/tls"
	"fmt"

	"leadflow_backend/platform/config"

	"github.com/redis/go-redis/v9"
)

// Task type names routed through asynq.
const (
	TaskSLASweep = "sla:sweep"
)

// redisConnOpt builds the asynq Redis connection options from config.
func redisConnOpt(cfg config.SchedulerConfig) (redisOpt, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return redisOpt{}, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.GetRedisTLSInsecure() && opt.TLSConfig != nil {
		opt.TLSConfig.InsecureSkipVerify = true
	}
	return redisOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

// redisOpt carries the parsed connection settings in a form both the asynq
// client and server constructors accept.
type redisOpt struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	TLSConfig *tls.Config
}
