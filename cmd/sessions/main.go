package main

import (
	"tourbook/internal/sessions/handler"
	"tourbook/internal/sessions/repository"
	"tourbook/internal/sessions/service"
	"tourbook/internal/sessions/validator"
	tourhandler "tourbook/internal/tours/handler"
	tourrepo "tourbook/internal/tours/repository"
	tourservice "tourbook/internal/tours/service"
	tourvalidator "tourbook/internal/tours/validator"
	"tourbook/pkg/app"
	"tourbook/pkg/config"
)

const ServiceName = "sessions"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Sessions service")
	sessionService, tourService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		handler.NewSessionHandler(sessionService, cfg.Log),
		tourhandler.NewTourHandler(tourService, cfg.Log),
	)
	serverApp.Run()
}

func initServices(cfg *config.Config) (service.SessionService, tourservice.TourService) {
	tourRepo := tourrepo.NewMongoTourRepository(cfg)
	tourService := tourservice.NewTourService(
		tourRepo,
		tourrepo.NewMongoPolicyRepository(cfg),
		tourvalidator.NewTourValidator(cfg.Log),
		cfg,
	)

	sessionService := service.NewSessionService(
		repository.NewMongoSessionRepository(cfg),
		repository.NewMongoScheduleRepository(cfg),
		tourRepo,
		validator.NewScheduleValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Sessions service initialized", "database", cfg.MongoDatabaseName, "session_ttl", cfg.SessionTTL)
	return sessionService, tourService
}
