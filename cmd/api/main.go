package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/chemicheck/chemicheck/internal/adapter/handler"
	"github.com/chemicheck/chemicheck/internal/adapter/repository"
	"github.com/chemicheck/chemicheck/internal/infrastructure/cache"
	"github.com/chemicheck/chemicheck/internal/infrastructure/database"
	"github.com/chemicheck/chemicheck/internal/infrastructure/storage"
	"github.com/chemicheck/chemicheck/internal/usecase/analysis"
	"github.com/chemicheck/chemicheck/internal/usecase/auth"
	"github.com/chemicheck/chemicheck/internal/usecase/history"
	"github.com/chemicheck/chemicheck/internal/usecase/session"
	"github.com/chemicheck/chemicheck/internal/usecase/transcription"
	"github.com/chemicheck/chemicheck/pkg/config"
	"github.com/chemicheck/chemicheck/pkg/jwt"
	"github.com/chemicheck/chemicheck/pkg/llm"
	pkgvalidator "github.com/chemicheck/chemicheck/pkg/validator"
)

const analysisWorkerCount = 2

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Echo instance
	e := echo.New()
	e.Validator = pkgvalidator.New()
	e.HideBanner = true
	e.HidePort = false

	e.Use(echomw.LoggerWithConfig(echomw.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Set-Cookie", "Cookie"},
		AllowCredentials: true,
	}))

	// Database
	logger.Info("connecting to database")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	if cfg.Database.AutoMigrate {
		if cfg.Server.Environment == "production" {
			log.Fatalf("AutoMigrate is enabled in production. Disable DB_AUTO_MIGRATE or manage schema with sql-migrate.")
		}
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Cache: Redis when enabled, in-process store otherwise
	var store cache.Store
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", zap.String("addr", cfg.GetRedisAddr()))
		redisStore, err := cache.NewRedisStore(context.Background(), cfg.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisStore.Close()
		store = redisStore
	} else {
		logger.Warn("Redis disabled, using in-process cache")
		store = cache.NewMemoryStore()
	}

	// Object storage
	logger.Info("connecting to object storage", zap.String("endpoint", cfg.Storage.Endpoint))
	minioClient, err := storage.NewMinIOClient(&cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	jobRepo := repository.NewAnalysisJobRepository(db)
	recordRepo := repository.NewConversationRecordRepository(db)

	// Analysis provider with retry and circuit breaker
	llmClient := llm.New(llm.Config{
		APIKey:           cfg.LLM.APIKey,
		BaseURL:          cfg.LLM.BaseURL,
		Model:            cfg.LLM.Model,
		MaxTokens:        cfg.LLM.MaxTokens,
		Temperature:      cfg.LLM.Temperature,
		RequestTimeout:   cfg.LLM.RequestTimeout,
		MaxAttempts:      cfg.LLM.MaxAttempts,
		BaseDelay:        cfg.LLM.BaseDelay,
		MaxDelay:         cfg.LLM.MaxDelay,
		FailureThreshold: cfg.LLM.FailureThreshold,
		RecoveryTimeout:  cfg.LLM.RecoveryTimeout,
		SuccessThreshold: cfg.LLM.SuccessThreshold,
		Logger:           logger,
	})
	provider := analysis.NewProvider(llmClient)

	// Services
	analysisService := analysis.NewService(sessionRepo, jobRepo, recordRepo, provider, store, logger)
	transcriptionService := transcription.NewService(&cfg.Assembly, logger)
	sessionService := session.NewService(sessionRepo, minioClient, analysisService, transcriptionService, logger)
	historyService := history.NewService(recordRepo, logger)

	jwtManager := jwt.NewManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authService := auth.NewService(userRepo, jwtManager, logger)

	// Handlers and routes
	authHandler := handler.NewAuth(authService, logger)
	sessionHandler := handler.NewSession(sessionService, analysisService, logger)
	historyHandler := handler.NewHistory(historyService, logger)

	router := handler.NewRouter(cfg, authService, authHandler, sessionHandler, historyHandler, provider.BreakerState)
	router.Setup(e)

	// Background analysis workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if err := analysisService.StartWorkerPool(workerCtx, analysisWorkerCount); err != nil {
		log.Fatalf("Failed to start analysis workers: %v", err)
	}

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		logger.Info("starting server",
			zap.String("addr", addr),
			zap.String("environment", cfg.Server.Environment))

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	if err := analysisService.StopWorkerPool(); err != nil {
		logger.Warn("failed to stop analysis workers", zap.Error(err))
	}
	workerCancel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server stopped gracefully")
}
