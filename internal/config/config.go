package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                int    `env:"PORT" envDefault:"8080"`
	DatabaseURL         string `env:"DATABASE_URL,required"`
	RedisURL            string `env:"REDIS_URL,required"`
	CodeTTLSeconds      int    `env:"PAIRING_CODE_TTL_SECONDS" envDefault:"600"`
	DeviceCacheTTLHours int    `env:"DEVICE_CACHE_TTL_HOURS" envDefault:"168"`
	LogLevel            string `env:"LOG_LEVEL" envDefault:"info"`
	DefaultTimezone     string `env:"DEFAULT_TIMEZONE" envDefault:"UTC"`
	DisableSweeps       bool   `env:"DISABLE_SWEEPS" envDefault:"false"`
}

func (c *Config) CodeTTL() time.Duration {
	return time.Duration(c.CodeTTLSeconds) * time.Second
}

func (c *Config) DeviceCacheTTL() time.Duration {
	return time.Duration(c.DeviceCacheTTLHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE %q is not a valid IANA zone name", c.DefaultTimezone)
	}

	if c.CodeTTLSeconds < 60 {
		return fmt.Errorf("PAIRING_CODE_TTL_SECONDS must be at least 60")
	}

	if isProduction {
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.DisableSweeps {
			log.Warn().Msg("DISABLE_SWEEPS is set in production: expiry and escalation will not run")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
