package main

import (
	"context"
	"time"
	"tourbook/internal/bookings/handler"
	"tourbook/internal/bookings/repository"
	"tourbook/internal/bookings/service"
	"tourbook/internal/bookings/validator"
	identityhandler "tourbook/internal/identity/handler"
	identityrepo "tourbook/internal/identity/repository"
	identityservice "tourbook/internal/identity/service"
	sessionrepo "tourbook/internal/sessions/repository"
	tourrepo "tourbook/internal/tours/repository"
	waitlistrepo "tourbook/internal/waitlist/repository"
	waitlistservice "tourbook/internal/waitlist/service"
	waitlistvalidator "tourbook/internal/waitlist/validator"
	"tourbook/pkg/app"
	"tourbook/pkg/config"
	pkgmongo "tourbook/pkg/db/mongo"
	"tourbook/pkg/events"
	"tourbook/pkg/kafka"
	kafkaconfig "tourbook/pkg/kafka/config"
	kafkamiddleware "tourbook/pkg/kafka/middleware"
	"tourbook/pkg/notify"
	"tourbook/pkg/payment"
	"tourbook/pkg/ratelimit"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Bookings service")
	producers := initProducers(cfg)
	defer closeProducers(cfg, producers)

	bookingService, identityService := initServices(cfg, producers)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		handler.NewBookingHandler(bookingService, cfg.Log),
		identityhandler.NewIdentityHandler(identityService, cfg.Log),
	)
	serverApp.Run()
}

type producers struct {
	notifications *kafka.Producer
	resync        *kafka.Producer
}

func initProducers(cfg *config.Config) *producers {
	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	notifications, err := kafka.NewProducer(kafkaCfg, cfg.NotificationsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create notifications producer", "error", err)
	}
	notifications.Use(kafkamiddleware.LoggingProducer(cfg.Log))

	resync, err := kafka.NewProducer(kafkaCfg, cfg.CapacityResyncTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create capacity resync producer", "error", err)
	}
	resync.Use(kafkamiddleware.LoggingProducer(cfg.Log))

	return &producers{notifications: notifications, resync: resync}
}

func closeProducers(cfg *config.Config, p *producers) {
	for _, producer := range []*kafka.Producer{p.notifications, p.resync} {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close kafka producer", "error", err)
		}
	}
}

func initGateway(cfg *config.Config) payment.Gateway {
	if cfg.PaymentGateway != "stripe" {
		cfg.Log.Warn("Using in-memory payment gateway")
		return payment.NewMockGateway()
	}
	gateway, err := payment.NewStripeGateway(cfg.StripeSecretKey)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize Stripe gateway", "error", err)
	}
	return gateway
}

func initTransactions(cfg *config.Config) pkgmongo.TransactionManager {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return pkgmongo.DetectTransactionManager(ctx, cfg.Client.Mongo, cfg.Log)
}

func initServices(cfg *config.Config, p *producers) (service.BookingService, identityservice.IdentityService) {
	notifier := notify.NewKafkaSender(p.notifications, ServiceName)

	sessionRepo := sessionrepo.NewMongoSessionRepository(cfg)
	tourRepo := tourrepo.NewMongoTourRepository(cfg)
	identityService := identityservice.NewIdentityService(identityrepo.NewMongoIdentityRepository(cfg), cfg)
	waitlistService := waitlistservice.NewWaitlistService(
		waitlistrepo.NewMongoWaitlistRepository(cfg),
		waitlistservice.NewSessionLookup(sessionRepo, tourRepo),
		notifier,
		waitlistvalidator.NewWaitlistValidator(cfg.Log),
		cfg,
	)

	bookingService := service.NewBookingService(
		service.Dependencies{
			Bookings:  repository.NewMongoBookingRepository(cfg),
			Orders:    repository.NewMongoOrderRepository(cfg),
			Sessions:  sessionRepo,
			Tours:     tourRepo,
			Policies:  tourrepo.NewMongoPolicyRepository(cfg),
			Identity:  identityService,
			Waitlist:  waitlistService,
			Resync:    events.NewResyncPublisher(p.resync, ServiceName),
			Gateway:   initGateway(cfg),
			Notifier:  notifier,
			Limiter:   ratelimit.NewRedisLimiter(cfg.Client.Redis, "tourbook:cancel", cfg.CancelRateLimitRequests, cfg.CancelRateLimitWindow),
			TxManager: initTransactions(cfg),
		},
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName, "gateway", cfg.PaymentGateway)
	return bookingService, identityService
}
