package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tripradar/backend/internal/config"
	"github.com/tripradar/backend/internal/handler"
	"github.com/tripradar/backend/internal/repository"
	"github.com/tripradar/backend/internal/scheduler"
	"github.com/tripradar/backend/internal/service"
)

// @title TripRadar API
// @version 1.0
// @description Travel deal notification API scoring merchant deals against traveler context and delivering notifications per user preference.

// @contact.name API Support
// @contact.email support@tripradar.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup structured logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rdb := repository.NewClient(cfg.RedisAddr, cfg.RedisPassword)
	if err := repository.Ping(context.Background(), rdb); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer func() { _ = rdb.Close() }()

	// Initialize repositories
	prefRepo := repository.NewPreferenceRepository(rdb)
	historyRepo := repository.NewHistoryRepository(rdb)
	counterRepo := repository.NewCounterRepository(rdb)
	queueRepo := repository.NewQueueRepository(rdb)
	contextRepo := repository.NewContextRepository(rdb)
	outboxRepo := repository.NewOutboxRepository(rdb)

	// Initialize services
	scoringService := service.NewScoringService(cfg.Weights)
	clusterService := service.NewClusterService(cfg.ClusterCellSizeDeg)
	notificationService := service.NewNotificationService(
		scoringService, prefRepo, historyRepo, counterRepo, queueRepo, contextRepo, outboxRepo,
	)
	digestService := service.NewDigestService(queueRepo, historyRepo, counterRepo, outboxRepo)

	// Initialize handlers
	dealHandler := handler.NewDealHandler(notificationService, scoringService, clusterService, contextRepo)
	notificationHandler := handler.NewNotificationHandler(notificationService, digestService)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	// CORS - allow frontend origin from env or default
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	// @Summary Health check
	// @Description Check if the API is running
	// @Tags health
	// @Produce json
	// @Success 200 {object} map[string]string
	// @Router /health [get]
	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(handler.AuthMiddleware)

		// Deals
		r.Post("/api/deals/notify", dealHandler.Notify)
		r.Post("/api/deals/cluster", dealHandler.Cluster)

		// Notifications
		r.Get("/api/notifications/preferences", notificationHandler.GetPreferences)
		r.Put("/api/notifications/preferences", notificationHandler.UpdatePreferences)
		r.Post("/api/notifications/digest/{frequency}", notificationHandler.FlushDigest)
	})

	// Initialize and start scheduler for digest flushes
	var digestScheduler *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		schedCfg := scheduler.Config{
			DailySchedule:  cfg.DigestDailySchedule,
			WeeklySchedule: cfg.DigestWeekSchedule,
			Timeout:        cfg.DigestTimeout,
			Enabled:        cfg.SchedulerEnabled,
		}
		digestScheduler = scheduler.New(schedCfg, digestService, logger)
		if err := digestScheduler.Start(); err != nil {
			logger.Error("Failed to start digest scheduler", slog.String("error", err.Error()))
		} else {
			logger.Info("Digest scheduler started",
				slog.String("daily_schedule", cfg.DigestDailySchedule),
				slog.String("weekly_schedule", cfg.DigestWeekSchedule),
				slog.Duration("timeout", cfg.DigestTimeout),
			)
		}
	}

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	// Create server
	server := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		// Stop scheduler first
		if digestScheduler != nil {
			ctx := digestScheduler.Stop()
			<-ctx.Done()
			logger.Info("Scheduler stopped")
		}

		// Shutdown HTTP server
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("Server shutdown error", slog.String("error", err.Error()))
		}
	}()

	log.Printf("Server starting on port %s", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("Server failed: %v", err)
	}
}
