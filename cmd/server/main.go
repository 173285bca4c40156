package main

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/bookhive/backend/internal/router"
	"github.com/anonto42/bookhive/backend/internal/workers"
	"github.com/anonto42/bookhive/backend/pkg/config"
	"github.com/anonto42/bookhive/backend/pkg/firebase"
	"github.com/anonto42/bookhive/backend/pkg/logger"
	"github.com/anonto42/bookhive/backend/validators"
)

func main() {
	// Load configuration
	cfg := config.Load()

	appLog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	// Initialize database connections
	db, err := config.InitDB(cfg, appLog)
	if err != nil {
		appLog.Fatal("Failed to initialize databases", "error", err)
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	redisClient, err := config.InitRedis(cfg, appLog)
	if err != nil {
		appLog.Fatal("Failed to initialize Redis", "error", err)
	}

	// Firebase is optional: without credentials, firebase-login and push
	// delivery are disabled but the rest of the API still serves
	ctx := context.Background()
	deps := router.Deps{Config: cfg, DB: db, Redis: redisClient, Log: appLog}
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		appLog.Warn("Firebase not initialized", "error", err)
	} else {
		deps.FirebaseAuth = firebaseApp.AuthClient
		deps.Messaging = firebaseApp.MessagingClient
	}

	// Background fan-out workers
	poolCtx, stopPool := context.WithCancel(ctx)
	defer stopPool()
	pool := workers.NewFanoutPool(appLog, cfg.FanoutConcurrency, cfg.FanoutMaxAttempts, 500*time.Millisecond)
	pool.Start(poolCtx)
	deps.Pool = pool

	// Create Echo instance
	e := echo.New()

	// Setup global middleware
	router.SetupMiddleware(e, appLog)

	// Setup routes and dependencies
	if err := router.SetupRoutes(e, deps); err != nil {
		appLog.Fatal("Failed to set up routes", "error", err)
	}

	// Validator
	e.Validator = validators.NewValidator()

	// Start server
	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
