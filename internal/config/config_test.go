package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("VerificationWindow converts seconds to duration", func(t *testing.T) {
		cfg := &Config{VerificationWindowSeconds: 600}
		assert.Equal(t, 10*time.Minute, cfg.VerificationWindow())
	})

	t.Run("CompletionGrace converts minutes to duration", func(t *testing.T) {
		cfg := &Config{CompletionGraceMinutes: 15}
		assert.Equal(t, 15*time.Minute, cfg.CompletionGrace())
	})
}

func TestValidate(t *testing.T) {
	valid := Config{
		VerificationWindowSeconds: 600,
		CompletionGraceMinutes:    15,
		ProximityThresholdMeters:  500,
	}

	t.Run("accepts sane values", func(t *testing.T) {
		cfg := valid
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects too-short verification window", func(t *testing.T) {
		cfg := valid
		cfg.VerificationWindowSeconds = 30
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects negative grace", func(t *testing.T) {
		cfg := valid
		cfg.CompletionGraceMinutes = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non-positive proximity threshold", func(t *testing.T) {
		cfg := valid
		cfg.ProximityThresholdMeters = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	keys := []string{
		"PORT", "DATABASE_URL", "REDIS_URL", "PAYMENT_GATEWAY_URL",
		"VERIFICATION_WINDOW_SECONDS", "COMPLETION_GRACE_MINUTES",
		"PROXIMITY_THRESHOLD_METERS", "LOG_LEVEL",
	}
	originalEnv := map[string]string{}
	for _, k := range keys {
		originalEnv[k] = os.Getenv(k)
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	setRequired := func() {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("PAYMENT_GATEWAY_URL", "https://payments.example.com")
	}

	t.Run("loads config with defaults", func(t *testing.T) {
		setRequired()
		os.Unsetenv("PORT")
		os.Unsetenv("VERIFICATION_WINDOW_SECONDS")
		os.Unsetenv("COMPLETION_GRACE_MINUTES")
		os.Unsetenv("PROXIMITY_THRESHOLD_METERS")
		os.Unsetenv("LOG_LEVEL")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, 600, cfg.VerificationWindowSeconds)
		assert.Equal(t, 15, cfg.CompletionGraceMinutes)
		assert.Equal(t, 500.0, cfg.ProximityThresholdMeters)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("loads custom values", func(t *testing.T) {
		setRequired()
		os.Setenv("PORT", "3000")
		os.Setenv("VERIFICATION_WINDOW_SECONDS", "300")
		os.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, 300, cfg.VerificationWindowSeconds)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("fails without required DATABASE_URL", func(t *testing.T) {
		setRequired()
		os.Unsetenv("DATABASE_URL")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("fails without required PAYMENT_GATEWAY_URL", func(t *testing.T) {
		setRequired()
		os.Unsetenv("PAYMENT_GATEWAY_URL")

		_, err := Load()
		assert.Error(t, err)
	})
}
