package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background sweep interval for auto-completion and verification expiry
const SweepJobInterval = 1 * time.Minute

// External call timeouts
const (
	PaymentGatewayTimeout = 10 * time.Second
	GeocoderTimeout       = 5 * time.Second
)

// Meeting verification code length (decimal digits)
const VerificationCodeLength = 6

// Default rate limiting
const DefaultRateLimitPerMin = 60
