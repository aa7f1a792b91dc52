package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"

	"creatorfeed/internal/config"
	"creatorfeed/internal/container"
	"creatorfeed/internal/domain"
	"creatorfeed/internal/events"
	"creatorfeed/internal/handler"
	"creatorfeed/internal/middleware"
	"creatorfeed/internal/service"
	"creatorfeed/pkg/logger"
)

// Resources holds all resources that need cleanup
type Resources struct {
	container    *container.Container
	server       *http.Server
	subscription *nats.Subscription
	log          *logger.Logger
	mu           sync.Mutex
	closed       bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errors []error

	r.log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first to stop accepting new requests
	if r.server != nil {
		r.log.Info("Shutting down HTTP server...")
		if err := r.server.Shutdown(ctx); err != nil {
			r.log.WithError(err).Error("Failed to shutdown HTTP server")
			errors = append(errors, fmt.Errorf("HTTP server shutdown: %w", err))
		} else {
			r.log.Info("HTTP server shutdown complete")
		}
	}

	if r.subscription != nil {
		if err := r.subscription.Unsubscribe(); err != nil {
			r.log.WithError(err).Warn("Failed to unsubscribe from run requests")
		}
	}

	c := r.container

	if c.Scheduler != nil {
		r.log.Info("Stopping scheduler...")
		if err := c.Scheduler.Stop(ctx); err != nil {
			r.log.WithError(err).Error("Failed to stop scheduler")
			errors = append(errors, fmt.Errorf("scheduler shutdown: %w", err))
		}
	}

	// Let background backfills finish; whatever is left is cancelled
	if c.Tasks != nil {
		r.log.Info("Waiting for background tasks...")
		if err := c.Tasks.Shutdown(ctx); err != nil {
			r.log.WithError(err).Warn("Background tasks cancelled before completion")
		}
	}

	if c.RedisClient != nil {
		healthCtx, healthCancel := context.WithTimeout(ctx, 2*time.Second)
		if err := c.RedisClient.Health(healthCtx); err != nil {
			r.log.WithError(err).Warn("Redis health check failed before closing")
		}
		healthCancel()
	}

	if c.DB != nil {
		healthCtx, healthCancel := context.WithTimeout(ctx, 2*time.Second)
		if err := c.DB.Health(healthCtx); err != nil {
			r.log.WithError(err).Warn("Database health check failed before closing")
		}
		healthCancel()
	}

	c.Close()
	r.log.Info("Connections closed")

	if len(errors) > 0 {
		r.log.WithField("error_count", len(errors)).Error("Cleanup completed with errors")
		return fmt.Errorf("cleanup completed with %d errors: %v", len(errors), errors)
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.WithFields(map[string]interface{}{
		"port":          cfg.Port,
		"log_level":     cfg.LogLevel,
		"environment":   cfg.Environment,
		"store_backend": cfg.StoreBackend,
		"batch_size":    cfg.Ingest.BatchSize,
	}).Info("Starting creatorfeed server")

	ctx := context.Background()

	c, err := container.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	router := setupRouter(c)

	// Full runs can outlast the default write timeout
	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   15 * time.Minute,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	resources := &Resources{
		container: c,
		server:    server,
		log:       log,
	}

	if c.NATS != nil {
		sub, err := events.SubscribeRunRequests(c.NATS, events.SubjectRunRequested, func(channelID string) {
			service.Start(c.Tasks, "nats-run", func(ctx context.Context) (*domain.IngestionSummary, error) {
				return c.Orchestrator.Run(ctx, channelID)
			})
		}, log)
		if err != nil {
			log.WithError(err).Warn("Run requests over NATS disabled")
		} else {
			resources.subscription = sub
		}
	}

	if err := c.Scheduler.Start(ctx); err != nil {
		log.WithError(err).Fatal("Failed to start scheduler")
	}

	// Setup graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Server error occurred")
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}

// setupRouter configures and returns the HTTP router
func setupRouter(c *container.Container) *chi.Mux {
	cfg := c.Config
	log := c.GetLogger()

	r := chi.NewRouter()

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.AllowedOrigins

	r.Use(middleware.CORS(corsConfig, log))
	r.Use(middleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(c.Metrics.Middleware)
	r.Use(chiMiddleware.Compress(5))

	healthHandler := handler.NewHealthHandler(c.HealthChecks(), log)
	ingestHandler := handler.NewIngestHandler(c.Orchestrator, log)
	creatorsHandler := handler.NewCreatorsHandler(c.Repositories.Creators, c.Subscribers, c.Orchestrator, c.Tasks, log)
	videosHandler := handler.NewVideosHandler(c.Repositories.Videos, log)

	requireAuth := middleware.Auth(cfg.SupabaseJWTSecret, log)

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", c.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public reads
		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(30 * time.Second))

			r.Get("/videos", videosHandler.List)
			r.Get("/creators", creatorsHandler.List)
			r.Get("/ingest/last", ingestHandler.Last)
		})

		// Operator routes. Runs are bounded by the per-creator timeout, not
		// a request timeout.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/ingest", ingestHandler.RunAll)
			r.Post("/ingest/{channelId}", ingestHandler.RunOne)

			r.Post("/creators", creatorsHandler.Create)
			r.Delete("/creators/{channelId}", creatorsHandler.Delete)
			r.Post("/creators/subscribers/refresh", creatorsHandler.RefreshSubscribers)
			r.Post("/creators/{channelId}/subscribers/refresh", creatorsHandler.RefreshCreatorSubscribers)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Endpoint not found"}`))
	})

	log.Info("Router configured successfully")
	return r
}
