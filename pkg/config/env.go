package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvStripeSecretKey    = "STRIPE_SECRET_KEY"
	EnvPaymentGateway     = "PAYMENT_GATEWAY"
	EnvPlatformFeePercent = "PLATFORM_FEE_PERCENT"

	EnvNotificationsTopic  = "NOTIFICATIONS_TOPIC"
	EnvCapacityResyncTopic = "CAPACITY_RESYNC_TOPIC"

	EnvSessionTTL          = "SESSION_TTL"
	EnvWaitlistNotifyTTL   = "WAITLIST_NOTIFY_TTL"
	EnvWaitlistExpiryEvery = "WAITLIST_EXPIRY_INTERVAL"
	EnvBookingMaxAttempts  = "BOOKING_MAX_ATTEMPTS"
	EnvDefaultRefundHours  = "DEFAULT_REFUND_HOURS"

	EnvCancelRateLimitRequests = "CANCEL_RATE_LIMIT_REQUESTS"
	EnvCancelRateLimitWindow   = "CANCEL_RATE_LIMIT_WINDOW"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"
	EnvIdempotencyTTL    = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize    = "MAX_REQUEST_SIZE"
	EnvRequestTimeout    = "REQUEST_TIMEOUT"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
