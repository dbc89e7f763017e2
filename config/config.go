/*
Package config loads server configuration from the environment.

PURPOSE:
  Every knob has a default that works for local development; production
  overrides via CRM_* environment variables.

VARIABLES:
  CRM_PORT                HTTP port                    (default 8080)
  CRM_DB_PATH             SQLite path, ":memory:" ok   (default crm.db)
  CRM_JWT_SECRET          session token signing key
  CRM_JWT_TTL             session lifetime             (default 720h)
  CRM_LOG_LEVEL           debug|info|warn|error        (default info)
  CRM_SCHEDULER_ENABLED   overdue scheduler on/off     (default true)
  CRM_SCHEDULER_INTERVAL  overdue check interval       (default 1h)

SEE ALSO:
  - cmd/server/main.go: the consumer
*/
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              int
	DBPath            string
	JWTSecret         string
	JWTTTL            time.Duration
	LogLevel          string
	SchedulerEnabled  bool
	SchedulerInterval time.Duration
}

// Load reads configuration from the environment with defaults applied.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRM")
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "crm.db")
	v.SetDefault("jwt_secret", "dev-secret-change-me")
	v.SetDefault("jwt_ttl", "720h")
	v.SetDefault("log_level", "info")
	v.SetDefault("scheduler_enabled", true)
	v.SetDefault("scheduler_interval", "1h")

	cfg := &Config{
		Port:              v.GetInt("port"),
		DBPath:            v.GetString("db_path"),
		JWTSecret:         v.GetString("jwt_secret"),
		JWTTTL:            v.GetDuration("jwt_ttl"),
		LogLevel:          v.GetString("log_level"),
		SchedulerEnabled:  v.GetBool("scheduler_enabled"),
		SchedulerInterval: v.GetDuration("scheduler_interval"),
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("jwt_ttl must be positive")
	}
	return cfg, nil
}
