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

// Pairing code lifetime and sweep cadence
const (
	PairingCodeLifetime = 10 * time.Minute
	CodeSweepInterval   = 10 * time.Minute
	StalePurgeInterval  = time.Hour
	StalePurgeMaxAge    = 24 * time.Hour
)

// Heartbeat arithmetic. Clients send a heartbeat roughly every 15 minutes;
// the sweep counts one missed level per elapsed interval once the grace
// window has passed.
const (
	HeartbeatInterval      = 15 * time.Minute
	HeartbeatGraceWindow   = 20 * time.Minute
	HeartbeatSweepInterval = 20 * time.Minute
)

// Inactivity sweep: a child silent for this long gets flagged to the parent.
const (
	InactivitySweepInterval = 6 * time.Hour
	InactivityThreshold     = 72 * time.Hour
)

// Bedtime evaluation cadence (same cadence as the liveness check)
const BedtimeSweepInterval = 20 * time.Minute

// Default time cap for an app newly added to monitoring
const DefaultAppTimeLimit = 2 * time.Hour

// Default rate limiting
const DefaultRateLimitPerMin = 120
