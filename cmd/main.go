package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/yungbote/lectern-backend/internal/clients/redis"
	"github.com/yungbote/lectern-backend/internal/data/db"
	"github.com/yungbote/lectern-backend/internal/data/repos"
	"github.com/yungbote/lectern-backend/internal/handlers"
	"github.com/yungbote/lectern-backend/internal/jobs/queue"
	"github.com/yungbote/lectern-backend/internal/middleware"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
	"github.com/yungbote/lectern-backend/internal/server"
	"github.com/yungbote/lectern-backend/internal/services"
	"github.com/yungbote/lectern-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	queueConcurrency := utils.GetEnvAsInt("QUEUE_CONCURRENCY", 3, log)
	queueMaxAttempts := utils.GetEnvAsInt("QUEUE_MAX_ATTEMPTS", 3, log)
	analysisTimeout := utils.GetEnvAsInt("ANALYSIS_TIMEOUT_SECONDS", 30, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	relationshipRepo := repos.NewRelationshipRepo(thePG, log)
	fingerprintRepo := repos.NewFingerprintRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	openaiClient, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Error("Could not init OpenAIClient", "error", err)
		os.Exit(1)
	}
	contentProvider, err := services.NewGCSContentProvider(log)
	if err != nil {
		log.Error("Could not init GCSContentProvider", "error", err)
		os.Exit(1)
	}
	fingerprintCache, err := redis.NewFingerprintCache(log)
	if err != nil {
		// Redis is the hot cache only; the durable fingerprint table
		// covers misses, so run degraded rather than refusing to start.
		log.Warn("Could not init FingerprintCache, running without redis", "error", err)
		fingerprintCache = nil
	}

	callTimeout := time.Duration(analysisTimeout) * time.Second
	analyzer := services.NewDocumentAnalyzer(log, openaiClient, contentProvider, fingerprintCache, fingerprintRepo, callTimeout)
	describer := services.NewRelationshipDescriber(log, openaiClient, callTimeout)

	processingQueue := queue.New(log, queue.Config{
		Concurrency: queueConcurrency,
		MaxAttempts: queueMaxAttempts,
		Backoff:     queue.DefaultBackoff(),
		Clock:       queue.RealClock(),
	})

	relevanceEngine := services.NewRelevanceEngine(log, relationshipRepo, analyzer, describer, processingQueue)
	relevanceEngine.Start(context.Background())

	// Handlers
	log.Info("Setting up handlers from main...")
	relationshipHandler := handlers.NewRelationshipHandler(log, relevanceEngine)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecretKey)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:      authMiddleware,
		RelationshipHandler: relationshipHandler,
		AllowOrigins:        server.SplitOrigins(utils.GetEnv("CORS_ALLOW_ORIGINS", "", log)),
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
