package main

import (
	"context"
	"log"

	"github.com/mealsnap/backend/config"
	"github.com/mealsnap/backend/internal/api"
	"github.com/mealsnap/backend/internal/database"
	"github.com/mealsnap/backend/internal/middleware"
	"github.com/mealsnap/backend/internal/router"
	"github.com/mealsnap/backend/internal/server"
	"github.com/mealsnap/backend/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Redis backs the analysis rate limiter; the API works without it
	var rateLimiter *middleware.RateLimiter
	redisClient, err := database.NewRedisClient(cfg)
	if err != nil {
		log.Printf("Warning: Redis unavailable, analysis rate limiting disabled: %v", err)
	} else {
		rateLimiter = middleware.NewRateLimiter(redisClient, middleware.AnalysisRateLimitConfig())
	}

	// S3 client for meal image uploads
	s3cfg, err := config.NewS3Config(context.Background())
	if err != nil {
		log.Fatalf("Failed to configure S3: %v", err)
	}

	// Initialize services
	authService := service.NewAuthService(db, cfg.JWTSecret)
	mealService := service.NewMealService(db)
	orchestrator := service.NewOrchestrator(
		service.NewImageNormalizer(service.DefaultMaxWidth),
		service.NewAnalysisClient(cfg.AnalysisAPIURL),
		service.NewAssetStore(s3cfg),
		mealService,
	)

	// Create handlers and start the server
	authHandler := api.NewAuthHandler(authService)
	mealHandler := api.NewMealHandler(orchestrator, mealService, authService, rateLimiter)

	srv := server.NewServer(router.SetupRouter(authHandler, mealHandler))
	if err := srv.Start(cfg.ServerPort); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
