package router

import (
	"context"

	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/anonto42/bookhive/backend/internal/handlers"
	"github.com/anonto42/bookhive/backend/internal/middleware"
	"github.com/anonto42/bookhive/backend/internal/models"
	"github.com/anonto42/bookhive/backend/internal/repositories"
	"github.com/anonto42/bookhive/backend/internal/services"
	"github.com/anonto42/bookhive/backend/internal/workers"
	"github.com/anonto42/bookhive/backend/pkg/config"
	"github.com/anonto42/bookhive/backend/pkg/logger"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo, log *logger.Logger) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Info("Global middleware configured")
}

// Deps carries the process-level collaborators the routes are wired
// against. Firebase clients and the redis client may be nil; the
// affected features degrade instead of failing startup.
type Deps struct {
	Config       *config.Config
	DB           *config.DB
	Redis        *redis.Client
	FirebaseAuth *auth.Client
	Messaging    *messaging.Client
	Pool         *workers.FanoutPool
	Log          *logger.Logger
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Deps) error {
	log := deps.Log
	pgdb := deps.DB.Postgres

	// AutoMigrate PostgreSQL models
	err := pgdb.AutoMigrate(
		&models.User{},
		&models.Review{},
		&models.Follow{},
		&models.Reaction{},
		&models.Favorite{},
		&models.Notification{},
	)
	if err != nil {
		return err
	}
	log.Info("PostgreSQL auto-migrations completed for all models")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	reviewRepo := repositories.NewPostgresReviewRepository(pgdb)
	followRepo := repositories.NewPostgresFollowRepository(pgdb)
	reactionRepo := repositories.NewPostgresReactionRepository(pgdb)
	favoriteRepo := repositories.NewPostgresFavoriteRepository(pgdb)
	notificationRepo := repositories.NewPostgresNotificationRepository(pgdb)
	activityRepo := repositories.NewMongoActivityRepository(deps.DB.Mongo.Database("bookhive"))

	// The activity collection relies on its unique index for idempotent
	// recording; refuse to start without it
	if err := activityRepo.EnsureIndexes(context.Background()); err != nil {
		return err
	}
	log.Info("MongoDB activity indexes ensured")

	// --- Initialize Services ---
	var cache services.Cache
	if deps.Redis != nil {
		cache = services.NewRedisCache(deps.Redis)
	} else {
		cache = services.NewMemoryCache()
		log.Warn("Redis not configured, recommendation cache is in-process only")
	}

	activityService := services.NewActivityService(activityRepo, followRepo, log)
	notificationService := services.NewNotificationService(
		notificationRepo, followRepo, userRepo,
		deps.Pool, services.NewFCMPusher(deps.Messaging),
		deps.Config.NotificationDedupWindow, log,
	)
	recommender := services.NewSocialRecommender(reviewRepo, followRepo, favoriteRepo)
	recommendationService := services.NewRecommendationService(
		cache, recommender,
		deps.Config.RecommendationTTL, deps.Config.RecomputeDeadline, log,
	)
	reviewService := services.NewReviewService(
		reviewRepo, activityService, notificationService, recommendationService, log,
	)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(userRepo, deps.FirebaseAuth, deps.Config.JWTSecret)
	authHandler.RegisterAuthRoutes(authGroup)
	log.Info("Auth routes configured")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware())

	userHandler := handlers.NewUserHandler(userRepo, followRepo)
	userHandler.RegisterProfileRoutes(api)

	reviewHandler := handlers.NewReviewHandler(reviewService, userRepo)
	reviewHandler.RegisterReviewRoutes(api)

	feedHandler := handlers.NewFeedHandler(activityService, userRepo)
	feedHandler.RegisterFeedRoutes(api)

	followHandler := handlers.NewFollowHandler(followRepo, userRepo, activityService, notificationService, recommendationService)
	followHandler.RegisterFollowRoutes(api)

	reactionHandler := handlers.NewReactionHandler(reactionRepo, favoriteRepo, reviewRepo, activityService, notificationService, recommendationService)
	reactionHandler.RegisterReactionRoutes(api)

	recommendationHandler := handlers.NewRecommendationHandler(recommendationService)
	recommendationHandler.RegisterRecommendationRoutes(api)

	notificationHandler := handlers.NewNotificationHandler(notificationRepo, userRepo)
	notificationHandler.RegisterNotificationRoutes(api)

	log.Info("All routes configured")
	return nil
}
