package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	PaymentGatewayURL string `env:"PAYMENT_GATEWAY_URL,required"`
	PaymentGatewayKey string `env:"PAYMENT_GATEWAY_KEY"`
	GeocoderURL       string `env:"GEOCODER_URL"`
	Currency          string `env:"CURRENCY" envDefault:"USD"`

	VerificationWindowSeconds int     `env:"VERIFICATION_WINDOW_SECONDS" envDefault:"600"`
	CompletionGraceMinutes    int     `env:"COMPLETION_GRACE_MINUTES" envDefault:"15"`
	ProximityThresholdMeters  float64 `env:"PROXIMITY_THRESHOLD_METERS" envDefault:"500"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// VerificationWindow is how long both parties have to submit their meeting
// codes once a booking is confirmed and codes are issued.
func (c *Config) VerificationWindow() time.Duration {
	return time.Duration(c.VerificationWindowSeconds) * time.Second
}

// CompletionGrace is how far past a booking's scheduled end time the
// auto-completion sweep waits before marking it completed.
func (c *Config) CompletionGrace() time.Duration {
	return time.Duration(c.CompletionGraceMinutes) * time.Minute
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if c.VerificationWindowSeconds < 60 {
		return fmt.Errorf("VERIFICATION_WINDOW_SECONDS must be at least 60, got %d", c.VerificationWindowSeconds)
	}
	if c.CompletionGraceMinutes < 0 {
		return fmt.Errorf("COMPLETION_GRACE_MINUTES must not be negative, got %d", c.CompletionGraceMinutes)
	}
	if c.ProximityThresholdMeters <= 0 {
		return fmt.Errorf("PROXIMITY_THRESHOLD_METERS must be positive, got %g", c.ProximityThresholdMeters)
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
