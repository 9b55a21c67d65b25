package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ivakdev/gymquest/internal/api"
	"ivakdev/gymquest/internal/catalog"
	"ivakdev/gymquest/internal/config"
	"ivakdev/gymquest/internal/engine"
	"ivakdev/gymquest/internal/repository/mongo"
	"ivakdev/gymquest/internal/service"
	"ivakdev/gymquest/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("Starting GymQuest Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	// --- Ensure Indexes ---
	log.Println("Ensuring database indexes...")
	go func() { // Run index creation concurrently/in background
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureUserIndexes(ctx, appDB.Collection("users"))
		mongo.EnsureRewardStateIndexes(ctx, appDB.Collection("reward_states"))
		mongo.EnsurePowerDayIndexes(ctx, appDB.Collection("power_day_usages"))
		mongo.EnsureUnlockEventIndexes(ctx, appDB.Collection("unlock_events"))
		log.Println("Index creation process completed.")
	}()

	// --- Achievement Catalog ---
	log.Println("Loading achievement catalog...")
	var objectFetcher storage.ObjectFetcher
	if cfg.Catalog.Source == "s3" {
		objectFetcher, err = storage.NewS3Storage(cfg.S3)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
		}
	}
	catalogLoader, err := catalog.LoaderFromConfig(cfg.Catalog, objectFetcher)
	if err != nil {
		log.Fatalf("FATAL: Invalid catalog configuration: %v", err)
	}
	achievementCatalog := catalog.New(catalogLoader)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := achievementCatalog.Load(ctx); err != nil {
			log.Fatalf("FATAL: Could not load achievement catalog: %v", err)
		}
	}

	// --- Initialize Repositories ---
	log.Println("Initializing repositories...")
	userRepo := mongo.NewMongoUserRepository(appDB)
	rewardStateRepo := mongo.NewMongoRewardStateRepository(appDB)
	powerDayRepo := mongo.NewMongoPowerDayRepository(appDB)
	unlockEventRepo := mongo.NewMongoUnlockEventRepository(appDB)

	// --- Initialize Engine & Services ---
	log.Println("Initializing services...")
	ledger := engine.NewPowerDayLedger(powerDayRepo)
	pipeline := engine.NewPipeline(rewardStateRepo, unlockEventRepo, ledger, achievementCatalog, cfg.Rewards.DefaultTimezone)

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	rewardService := service.NewRewardService(pipeline, achievementCatalog)

	// --- Initialize Gin Engine ---
	router := gin.Default() // Includes Logger and Recovery middleware

	// --- Setup Routes ---
	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, authService, rewardService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
