// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetSLASweepInterval() time.Duration
}

// SLADefaults are the policy values applied when a pipeline has no SLA policy
// row. They exist as an explicit object so call sites never fall back to
// scattered inline literals.
type SLADefaults struct {
	FirstResponseStart             string
	IncludeAutomationInFirstResponse bool
	WarnAfterSeconds               int64
	OverdueAfterSeconds            int64
	NotifyAssignee                 bool
	NotifyManager                  bool
}

// SLADefaultsConfig provides the default SLA policy.
type SLADefaultsConfig interface {
	GetSLADefaults() SLADefaults
}

// DistributionDefaultsConfig provides distribution engine defaults.
type DistributionDefaultsConfig interface {
	GetDefaultMemberWeight() int
}

// Config is the concrete configuration loaded from the environment.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	JWTAccessSecret string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	SLASweepInterval time.Duration

	SLADefaultFirstResponseStart    string
	SLADefaultIncludeAutomation     bool
	SLADefaultWarnAfterSeconds      int64
	SLADefaultOverdueAfterSeconds   int64
	SLADefaultNotifyAssignee        bool
	SLADefaultNotifyManager         bool
	DistributionDefaultMemberWeight int
}

// Load reads configuration from the environment, with .env support for
// development. Missing required values return an error rather than panicking.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret: os.Getenv("JWT_ACCESS_SECRET"),

		CORSAllowAll:   getBoolEnv("CORS_ALLOW_ALL", false),
		CORSOrigins:    splitCSV(getEnv("CORS_ORIGINS", "")),
		CORSAllowCreds: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),

		RedisURL:         os.Getenv("REDIS_URL"),
		RedisTLSInsecure: getBoolEnv("REDIS_TLS_INSECURE", false),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: getIntEnv("ASYNQ_CONCURRENCY", 10),
		SLASweepInterval: getDurationEnv("SLA_SWEEP_INTERVAL", time.Minute),

		SLADefaultFirstResponseStart:    getEnv("SLA_DEFAULT_FIRST_RESPONSE_START", "lead_created"),
		SLADefaultIncludeAutomation:     getBoolEnv("SLA_DEFAULT_INCLUDE_AUTOMATION", true),
		SLADefaultWarnAfterSeconds:      getInt64Env("SLA_DEFAULT_WARN_AFTER_SECONDS", 1800),
		SLADefaultOverdueAfterSeconds:   getInt64Env("SLA_DEFAULT_OVERDUE_AFTER_SECONDS", 3600),
		SLADefaultNotifyAssignee:        getBoolEnv("SLA_DEFAULT_NOTIFY_ASSIGNEE", true),
		SLADefaultNotifyManager:         getBoolEnv("SLA_DEFAULT_NOTIFY_MANAGER", false),
		DistributionDefaultMemberWeight: getIntEnv("DISTRIBUTION_DEFAULT_MEMBER_WEIGHT", 10),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.SLADefaultWarnAfterSeconds >= cfg.SLADefaultOverdueAfterSeconds {
		return nil, fmt.Errorf("SLA_DEFAULT_WARN_AFTER_SECONDS must be below SLA_DEFAULT_OVERDUE_AFTER_SECONDS")
	}

	return cfg, nil
}

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string       { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool     { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string  { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool   { return c.CORSAllowCreds }

func (c *Config) GetRedisURL() string                  { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool            { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string            { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int             { return c.AsynqConcurrency }
func (c *Config) GetSLASweepInterval() time.Duration   { return c.SLASweepInterval }

// GetSLADefaults returns the default SLA policy applied when a pipeline has
// no configured policy row.
func (c *Config) GetSLADefaults() SLADefaults {
	return SLADefaults{
		FirstResponseStart:               c.SLADefaultFirstResponseStart,
		IncludeAutomationInFirstResponse: c.SLADefaultIncludeAutomation,
		WarnAfterSeconds:                 c.SLADefaultWarnAfterSeconds,
		OverdueAfterSeconds:              c.SLADefaultOverdueAfterSeconds,
		NotifyAssignee:                   c.SLADefaultNotifyAssignee,
		NotifyManager:                    c.SLADefaultNotifyManager,
	}
}

func (c *Config) GetDefaultMemberWeight() int { return c.DistributionDefaultMemberWeight }

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getBoolEnv(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt64Env(key string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
