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

// Dispatch worker settings
const (
	DispatchPollInterval = 1 * time.Second
	MaxDispatchAttempts  = 5
	DispatchBackoffBase  = 10 * time.Second
	DispatchJobTimeout   = 2 * time.Minute
	RedisOpTimeout       = 5 * time.Second
)

// Aborting a claim runs on its own deadline so it still lands when the
// pass failed because the job context expired.
const ClaimAbortTimeout = 10 * time.Second

// Messages stuck in processing longer than this are requeued by the reclaimer.
const (
	ReclaimInterval    = 1 * time.Minute
	ProcessingDeadline = 10 * time.Minute
)

// Transcript assembly
const MaxTranscriptMessages = 40

// Webhook request bodies are capped well above the few KB Meta sends.
const WebhookMaxBodySize int64 = 256 << 10

// Outbound HTTP settings
const (
	OutboundHTTPTimeout  = 30 * time.Second
	GraphAPIMaxAttempts  = 3
	GraphAPIRetryBackoff = 2 * time.Second
)
