package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"tourbook/internal/sessions/repository"
	"tourbook/internal/sessions/service"
	"tourbook/internal/sessions/validator"
	"tourbook/internal/sessions/worker"
	tourrepo "tourbook/internal/tours/repository"
	"tourbook/pkg/config"
	"tourbook/pkg/kafka"
	kafkaconfig "tourbook/pkg/kafka/config"
	kafkamiddleware "tourbook/pkg/kafka/middleware"
)

const ServiceName = "capacity-sync"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting capacity sync worker", "topic", cfg.CapacityResyncTopic)
	sessionService := service.NewSessionService(
		repository.NewMongoSessionRepository(cfg),
		repository.NewMongoScheduleRepository(cfg),
		tourrepo.NewMongoTourRepository(cfg),
		validator.NewScheduleValidator(cfg.Log),
		cfg,
	)

	kafkaCfg, err := kafkaconfig.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	consumer, err := kafka.NewConsumer(kafkaCfg, cfg.CapacityResyncTopic, worker.ResyncHandler(sessionService, cfg.Log), cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create capacity resync consumer", "error", err)
	}
	var counters kafkamiddleware.Counters
	consumer.Use(kafkamiddleware.LoggingConsumer(cfg.Log))
	consumer.Use(kafkamiddleware.CountingConsumer(&counters))

	ctx, cancel := context.WithCancel(context.Background())
	consumerErrors := make(chan error, 1)
	go func() {
		consumerErrors <- consumer.Start(ctx)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-consumerErrors:
		if err != nil && !errors.Is(err, context.Canceled) {
			cfg.Log.Error("Capacity resync consumer stopped", "error", err)
		}
	case sig := <-shutdown:
		cfg.Log.Info("Shutdown signal received", "signal", sig)
	}

	cancel()
	counters.Log(cfg.Log, ServiceName)
	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close kafka consumer", "error", err)
	}
	cfg.GracefulShutdown()
	cfg.Log.Info("Capacity sync worker stopped")
}
