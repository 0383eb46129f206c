package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/levelup-app/levelup-backend/internal/config"
	"github.com/levelup-app/levelup-backend/internal/database"
	"github.com/levelup-app/levelup-backend/internal/handlers"
	"github.com/levelup-app/levelup-backend/internal/middleware"
	"github.com/levelup-app/levelup-backend/internal/models"
	"github.com/levelup-app/levelup-backend/internal/routes"
	"github.com/levelup-app/levelup-backend/internal/services"
	"github.com/levelup-app/levelup-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

func main() {
	// 0. Load Config & Initialize Logger
	config.LoadConfig()

	// Environment-based logger initialization (production = JSON, development = pretty)
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}
	logger.Init(env)

	logger.Info().Str("environment", env).Msg("Starting LevelUp Progression Engine...")

	// Set Gin mode based on environment
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 1. Connect Database
	database.Connect()
	database.InitRedis()

	// --- Database Migration Stage ---
	logger.Info().Msg("🔄 Running Database Migrations...")

	tableModels := []interface{}{
		&models.User{},
		&models.QuestTemplate{},
		&models.QuestAssignment{},
		&models.ProgressionEvent{},
		&models.UserProgressionState{},
	}
	for _, m := range tableModels {
		if err := database.DB.AutoMigrate(m); err != nil {
			logger.Fatal().Err(err).Msgf("Failed to migrate table for %T", m)
		}
	}
	logger.Info().Msg("✅ Database Migrations Complete")

	// 2. Warm the leaderboard index from persisted snapshots
	if err := services.RebuildLeaderboard(database.DB); err != nil {
		logger.Fatal().Err(err).Msg("Failed to rebuild leaderboard index")
	}
	logger.Info().Int("users", services.Board.Len()).Msg("Leaderboard index ready")

	// 3. Schedule the streak-break sweep
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(config.AppConfig.SweepCron, func() {
		if _, err := services.RunStreakSweep(database.DB, time.Now()); err != nil {
			logger.Error().Err(err).Msg("Streak sweep run failed")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("cron", config.AppConfig.SweepCron).Msg("Invalid sweep schedule")
	}
	scheduler.Start()
	defer scheduler.Stop()

	// 4. Setup Router
	r := gin.New()

	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.ErrorHandlerMiddleware())
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.GeneralRateLimit())

	// 5. Register Routes
	api := r.Group("/api")
	{
		// Public health check (used by deploy probes)
		api.GET("/healthz", handlers.Healthz)

		// Everything else requires a caller identity from the auth gateway
		protected := api.Group("")
		protected.Use(middleware.Identity())
		routes.RegisterQuestRoutes(protected)
		routes.RegisterLeaderboardRoutes(protected)
		routes.RegisterAdminRoutes(protected)
	}

	// 6. Start Server with graceful shutdown
	srv := &http.Server{
		Addr:    ":" + config.AppConfig.Port,
		Handler: r,
	}

	go func() {
		logger.Info().Str("port", config.AppConfig.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}
