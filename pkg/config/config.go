package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"
	"tourbook/pkg/client"
	"tourbook/pkg/logger"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Port string

	PaymentGateway     string
	StripeSecretKey    string
	PlatformFeePercent float64

	NotificationsTopic  string
	CapacityResyncTopic string

	SessionTTL          time.Duration
	WaitlistNotifyTTL   time.Duration
	WaitlistExpiryEvery time.Duration
	BookingMaxAttempts  int
	DefaultRefundHours  int

	CancelRateLimitRequests int
	CancelRateLimitWindow   time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration
	IdempotencyTTL    time.Duration
	MaxRequestSize    int
	RequestTimeout    time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		Port: getEnvStr(EnvPort, DefaultPort),

		PaymentGateway:     getEnvStr(EnvPaymentGateway, DefaultPaymentGateway),
		StripeSecretKey:    getEnvStr(EnvStripeSecretKey, ""),
		PlatformFeePercent: getEnvFloat(EnvPlatformFeePercent, DefaultPlatformFeePercent),

		NotificationsTopic:  getEnvStr(EnvNotificationsTopic, DefaultNotificationsTopic),
		CapacityResyncTopic: getEnvStr(EnvCapacityResyncTopic, DefaultCapacityResyncTopic),

		SessionTTL:          getEnvDuration(EnvSessionTTL, DefaultSessionTTL),
		WaitlistNotifyTTL:   getEnvDuration(EnvWaitlistNotifyTTL, DefaultWaitlistNotifyTTL),
		WaitlistExpiryEvery: getEnvDuration(EnvWaitlistExpiryEvery, DefaultWaitlistExpiryEvery),
		BookingMaxAttempts:  getEnvNum(EnvBookingMaxAttempts, DefaultBookingMaxAttempts),
		DefaultRefundHours:  getEnvNum(EnvDefaultRefundHours, DefaultRefundHours),

		CancelRateLimitRequests: getEnvNum(EnvCancelRateLimitRequests, DefaultCancelRateLimitRequests),
		CancelRateLimitWindow:   getEnvDuration(EnvCancelRateLimitWindow, DefaultCancelRateLimitWindow),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),
		IdempotencyTTL:    getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize:    getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),
		RequestTimeout:    getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}
	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty")
	}

	switch cfg.PaymentGateway {
	case "mock":
	case "stripe":
		if cfg.StripeSecretKey == "" {
			errors = append(errors, "StripeSecretKey is required when PaymentGateway is 'stripe'")
		}
	default:
		errors = append(errors, fmt.Sprintf("PaymentGateway must be one of [mock, stripe], got: %s", cfg.PaymentGateway))
	}
	if cfg.PlatformFeePercent < 0 || cfg.PlatformFeePercent > 100 {
		errors = append(errors, fmt.Sprintf("PlatformFeePercent must be between 0 and 100, got: %v", cfg.PlatformFeePercent))
	}

	if cfg.NotificationsTopic == "" {
		errors = append(errors, "NotificationsTopic cannot be empty")
	}
	if cfg.CapacityResyncTopic == "" {
		errors = append(errors, "CapacityResyncTopic cannot be empty")
	}

	if cfg.SessionTTL <= 0 {
		errors = append(errors, fmt.Sprintf("SessionTTL must be positive, got: %s", cfg.SessionTTL))
	}
	if cfg.WaitlistNotifyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("WaitlistNotifyTTL must be positive, got: %s", cfg.WaitlistNotifyTTL))
	}
	if cfg.WaitlistExpiryEvery <= 0 {
		errors = append(errors, fmt.Sprintf("WaitlistExpiryEvery must be positive, got: %s", cfg.WaitlistExpiryEvery))
	}
	if cfg.BookingMaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("BookingMaxAttempts must be positive, got: %d", cfg.BookingMaxAttempts))
	}
	if cfg.DefaultRefundHours < 0 {
		errors = append(errors, fmt.Sprintf("DefaultRefundHours cannot be negative, got: %d", cfg.DefaultRefundHours))
	}

	if cfg.CancelRateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("CancelRateLimitRequests must be positive, got: %d", cfg.CancelRateLimitRequests))
	}
	if cfg.CancelRateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("CancelRateLimitWindow must be positive, got: %s", cfg.CancelRateLimitWindow))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"port", cfg.Port,
		"payment_gateway", cfg.PaymentGateway,
		"stripe_key_set", cfg.StripeSecretKey != "",
		"platform_fee_percent", cfg.PlatformFeePercent,
		"notifications_topic", cfg.NotificationsTopic,
		"capacity_resync_topic", cfg.CapacityResyncTopic,
		"session_ttl", cfg.SessionTTL,
		"waitlist_notify_ttl", cfg.WaitlistNotifyTTL,
		"waitlist_expiry_every", cfg.WaitlistExpiryEvery,
		"booking_max_attempts", cfg.BookingMaxAttempts,
		"default_refund_hours", cfg.DefaultRefundHours,
		"cancel_rate_limit_requests", cfg.CancelRateLimitRequests,
		"cancel_rate_limit_window", cfg.CancelRateLimitWindow,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"request_timeout", cfg.RequestTimeout,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
