package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"tourbook/pkg/config"
	"tourbook/pkg/middleware"
	"tourbook/pkg/ratelimit"

	"github.com/julienschmidt/httprouter"
)

// Handler is anything that mounts its endpoints on a router.
type Handler interface {
	RegisterRoutes(router *httprouter.Router)
}

// Worker runs until ctx is cancelled.
type Worker func(ctx context.Context)

type Application struct {
	cfg            *config.Config
	server         *http.Server
	memoryLimiter  *ratelimit.MemoryLimiter
	healthHandler  http.Handler
	appHTTPHandler http.Handler
	workers        map[string]Worker
	stopWorkers    context.CancelFunc
	workersDone    sync.WaitGroup
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg, workers: make(map[string]Worker)}
}

func (a *Application) SetApp(handlers ...Handler) {
	a.setHealthHandler()
	a.setAppHandler(handlers)
	a.setAppServer()
}

// AddWorker registers a background loop started by Run and stopped on shutdown.
func (a *Application) AddWorker(name string, w Worker) {
	a.workers[name] = w
}

func (a *Application) setHealthHandler() {
	healthRouter := httprouter.New()
	NewHealthHandler(a.cfg.Client.Mongo, a.cfg.Client.Redis, a.cfg.Log).RegisterRoutes(healthRouter)

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(a.cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(a.cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(handlers []Handler) {
	appRouter := httprouter.New()
	for _, h := range handlers {
		h.RegisterRoutes(appRouter)
	}

	var limiter ratelimit.Limiter
	var store middleware.IdempotencyStore
	if redisClient := a.cfg.Client.Redis; redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient, "tourbook:ratelimit", a.cfg.RateLimitRequests, a.cfg.RateLimitWindow)
		store = middleware.NewRedisIdempotencyStore(redisClient, a.cfg.IdempotencyTTL)
		a.cfg.Log.Info("Rate limiting and idempotency backed by Redis")
	} else {
		a.memoryLimiter = ratelimit.NewMemoryLimiter(a.cfg.RateLimitRequests, a.cfg.RateLimitWindow)
		limiter = a.memoryLimiter
		store = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
		a.cfg.Log.Warn("Redis not configured, rate limiting and idempotency are per instance")
	}

	// Recovery → Logging → MaxSize → ContentType → RateLimit → Timeout → Idempotency → Router
	var appHTTPHandler http.Handler = appRouter
	appHTTPHandler = middleware.Idempotency(store, a.cfg.Log)(appHTTPHandler)
	appHTTPHandler = middleware.RequestTimeout(a.cfg.RequestTimeout)(appHTTPHandler)
	appHTTPHandler = middleware.RateLimit(limiter, middleware.ClientIP, a.cfg.Log)(appHTTPHandler)
	appHTTPHandler = middleware.ContentTypeValidation(a.cfg.Log)(appHTTPHandler)
	appHTTPHandler = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(appHTTPHandler)
	appHTTPHandler = middleware.RequestLogging(a.cfg.Log)(appHTTPHandler)
	appHTTPHandler = middleware.Recovery(a.cfg.Log)(appHTTPHandler)
	a.appHTTPHandler = appHTTPHandler
	a.cfg.Log.Info("Application endpoints configured with full middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/", a.appHTTPHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	a.startWorkers()
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) startWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopWorkers = cancel
	for name, w := range a.workers {
		a.workersDone.Add(1)
		go func() {
			defer a.workersDone.Done()
			a.cfg.Log.Info("Background worker started", "worker", name)
			w(ctx)
			a.cfg.Log.Info("Background worker stopped", "worker", name)
		}()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	a.cfg.Log.Info("Stopping background workers...")
	if a.stopWorkers != nil {
		a.stopWorkers()
	}
	a.workersDone.Wait()
	if a.memoryLimiter != nil {
		a.memoryLimiter.Stop()
	}
	a.cfg.Log.Info("Background workers stopped")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.GracefulShutdown()
	a.cfg.Log.Info("Server stopped gracefully")
}
