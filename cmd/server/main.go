package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"civitas.backend/internal/config"
	"civitas.backend/internal/infrastructure/jobs"
	"civitas.backend/internal/infrastructure/providers"
	"civitas.backend/internal/infrastructure/repositories"
	"civitas.backend/internal/interfaces/http/handlers"
	"civitas.backend/internal/interfaces/http/middleware"
	"civitas.backend/internal/usecases"
	"civitas.backend/pkg/jwt"
	"civitas.backend/pkg/logger"
	"civitas.backend/pkg/redis"
)

const (
	assetQueueKey    = "civitas:asset-jobs"
	webhookDedupeTTL = 24 * time.Hour
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	newProviders = providers.New
	runServer    = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB     = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := loadCfg()

	// Initialize Logger
	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	// Initialize Redis
	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(context.Background(), "Redis initialized")

	// Set Gin mode
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database using GORM
	dsn := cfg.Database.URL()
	db, err := openDB(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Printf("⚠️ Database not available: %v (endpoints will return errors)", err)
	} else {
		log.Println("✅ Connected to PostgreSQL via GORM")
	}

	// Initialize JWT service
	jwtService := jwt.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	// Initialize external service adapters
	providerSet, err := newProviders(cfg.Providers)
	if err != nil {
		return fmt.Errorf("failed to initialize providers: %w", err)
	}
	log.Printf("🔌 Providers initialized in %s mode", cfg.Providers.Mode)

	// Initialize repositories
	citizenRepo := repositories.NewCitizenRepository(db, cfg.Saga.AdvanceRetries)

	// Initialize asset job queue
	assetQueue := redis.NewQueue(redis.GetClient(), assetQueueKey)

	// Initialize usecases
	dispatcher := usecases.NewAssetDispatcher(citizenRepo, assetQueue)
	finalizer := usecases.NewProfileFinalizer(citizenRepo, providerSet.Avatar, providerSet.Document)
	rollback := usecases.NewRollbackUsecase(citizenRepo, providerSet.Identity, providerSet.Biometric, providerSet.Payment)
	resolver := usecases.NewCorrelationResolver(providerSet.Payment, cfg.Saga.IntentLookback)
	registrationUsecase := usecases.NewRegistrationUsecase(
		citizenRepo,
		providerSet.Identity,
		providerSet.Biometric,
		providerSet.Payment,
		dispatcher,
		finalizer,
		rollback,
		cfg.Payment.PlanID,
	)
	webhookUsecase := usecases.NewWebhookUsecase(citizenRepo, resolver, dispatcher, rollback)
	citizenUsecase := usecases.NewCitizenUsecase(citizenRepo, providerSet.Identity, providerSet.Payment)

	// Initialize handlers
	registrationHandler := handlers.NewRegistrationHandler(registrationUsecase)
	webhookHandler := handlers.NewWebhookHandler(webhookUsecase)
	citizenHandler := handlers.NewCitizenHandler(citizenUsecase)

	// Create middleware bound to config
	authMiddleware := middleware.AuthMiddleware(jwtService)
	adminMiddleware := middleware.APIKeyOrAdminMiddleware(jwtService, cfg.Security.OpsAPIKeyHash)
	webhookSignatureMiddleware := middleware.WebhookSignatureMiddleware(cfg.Providers.WebhookSecret)
	webhookDedupeMiddleware := middleware.WebhookDedupeMiddleware(webhookDedupeTTL)

	// Start background worker
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assetWorker := jobs.NewAssetWorker(assetQueue, finalizer, cfg.Saga.JobMaxAttempts, cfg.Saga.JobPollTimeout)
	go assetWorker.Start(ctx)

	// Initialize router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r)
	registerMetricsRoute(r)
	registerAPIV1Routes(r, routeDeps{
		registrationHandler:        registrationHandler,
		webhookHandler:             webhookHandler,
		citizenHandler:             citizenHandler,
		authMiddleware:             authMiddleware,
		adminMiddleware:            adminMiddleware,
		webhookSignatureMiddleware: webhookSignatureMiddleware,
		webhookDedupeMiddleware:    webhookDedupeMiddleware,
	})

	// Print all registered routes for debugging
	log.Println("📋 Registered Routes:")
	for _, route := range r.Routes() {
		log.Printf("   %s %s", route.Method, route.Path)
	}

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("🛑 Shutting down server...")
		assetWorker.Stop()
		cancel()
	}()

	// Start server
	log.Printf("🚀 Civitas Backend starting on port %s", cfg.Server.Port)
	log.Printf("📚 API: http://localhost:%s/api/v1", cfg.Server.Port)
	log.Printf("❤️ Health: http://localhost:%s/health", cfg.Server.Port)

	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
