package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "tourbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultPaymentGateway     = "mock"
	DefaultPlatformFeePercent = 5.0

	DefaultNotificationsTopic  = "notifications"
	DefaultCapacityResyncTopic = "session.capacity.resync"

	DefaultSessionTTL          = 7 * 24 * time.Hour
	DefaultWaitlistNotifyTTL   = 24 * time.Hour
	DefaultWaitlistExpiryEvery = 5 * time.Minute
	DefaultBookingMaxAttempts  = 3
	DefaultRefundHours         = 24

	DefaultCancelRateLimitRequests = 5
	DefaultCancelRateLimitWindow   = 1 * time.Hour

	DefaultRateLimitRequests = 100
	DefaultRateLimitWindow   = 1 * time.Minute
	DefaultIdempotencyTTL    = 24 * time.Hour
	DefaultMaxRequestSize    = 1 << 20
	DefaultRequestTimeout    = 30 * time.Second

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100
)
