package main

import (
	"context"
	"time"
	"tourbook/internal/sessions/repository"
	tourrepo "tourbook/internal/tours/repository"
	"tourbook/internal/waitlist/handler"
	waitlistrepo "tourbook/internal/waitlist/repository"
	"tourbook/internal/waitlist/service"
	"tourbook/internal/waitlist/validator"
	"tourbook/pkg/app"
	"tourbook/pkg/config"
	"tourbook/pkg/kafka"
	kafkaconfig "tourbook/pkg/kafka/config"
	kafkamiddleware "tourbook/pkg/kafka/middleware"
	"tourbook/pkg/notify"
)

const ServiceName = "waitlist"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Waitlist service")
	producer := initProducer(cfg)
	defer func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close kafka producer", "error", err)
		}
	}()

	waitlistService := initServices(cfg, producer)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewWaitlistHandler(waitlistService, cfg.Log))
	serverApp.AddWorker("waitlist-expiry", expiryWorker(cfg, waitlistService))
	serverApp.Run()
}

func initProducer(cfg *config.Config) *kafka.Producer {
	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.NotificationsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create notifications producer", "error", err)
	}
	producer.Use(kafkamiddleware.LoggingProducer(cfg.Log))
	return producer
}

func initServices(cfg *config.Config, producer *kafka.Producer) service.WaitlistService {
	waitlistService := service.NewWaitlistService(
		waitlistrepo.NewMongoWaitlistRepository(cfg),
		service.NewSessionLookup(repository.NewMongoSessionRepository(cfg), tourrepo.NewMongoTourRepository(cfg)),
		notify.NewKafkaSender(producer, ServiceName),
		validator.NewWaitlistValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Waitlist service initialized", "database", cfg.MongoDatabaseName, "notify_ttl", cfg.WaitlistNotifyTTL)
	return waitlistService
}

// expiryWorker expires lapsed spot offers across every session on a fixed interval.
func expiryWorker(cfg *config.Config, waitlistService service.WaitlistService) app.Worker {
	return func(ctx context.Context) {
		ticker := time.NewTicker(cfg.WaitlistExpiryEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				expired, err := waitlistService.ExpireAll(ctx)
				if err != nil {
					cfg.Log.Error("Waitlist expiry sweep failed", "error", err)
					continue
				}
				if expired > 0 {
					cfg.Log.Info("Expired waitlist offers", "count", expired)
				}
			}
		}
	}
}
