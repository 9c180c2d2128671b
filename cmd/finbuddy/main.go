package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finbuddy/internal/api"
	"finbuddy/internal/api/handlers"
	"finbuddy/internal/embedding"
	"finbuddy/internal/ocrspace"
	"finbuddy/internal/repository"
	"finbuddy/internal/service"
	"finbuddy/internal/storage"
	"finbuddy/pkg/auth"
	"finbuddy/pkg/config"
	"finbuddy/pkg/logger"
	"finbuddy/pkg/postgres"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting FinBuddy service")

	// Initialize database
	ctx := context.Background()
	if err := postgres.Migrate(&cfg.Database, appLogger); err != nil {
		appLogger.Fatal("Failed to run migrations", zap.Error(err))
	}
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	expenseRepo := repository.NewExpenseRepository(db, appLogger)
	summaryRepo := repository.NewSummaryRepository(db, appLogger)
	profileRepo := repository.NewProfileRepository(db, appLogger)

	// Initialize object storage
	receiptStorage, err := storage.NewGCS(ctx, cfg.Storage.Bucket, cfg.Storage.SignedURLTTL, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	defer receiptStorage.Close()

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration)

	// Initialize external clients
	llmService, err := service.NewLLMService(&cfg.GigaChat, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize LLM service", zap.Error(err))
	}
	defer llmService.Close()

	ocrClient := ocrspace.NewClient(&cfg.OCR, appLogger)
	embedder := embedding.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.EmbeddingModel)

	// Initialize services
	expenseService := service.NewExpenseService(expenseRepo, receiptStorage, appLogger)
	ocrService := service.NewOCRService(expenseRepo, receiptStorage, ocrClient, cfg.OCR.Timeout, appLogger)
	extractionService := service.NewExtractionService(expenseRepo, receiptStorage, llmService, embedder, appLogger)
	searchService := service.NewSearchService(expenseRepo, embedder, &cfg.Search, appLogger)
	insightService := service.NewInsightService(expenseRepo, summaryRepo, profileRepo, llmService, &cfg.Insight, appLogger)
	recService := service.NewRecommendationService(expenseRepo, llmService, &cfg.Insight, appLogger)

	// Initialize handlers
	expenseHandler := handlers.NewExpenseHandler(expenseService, appLogger)
	pipelineHandler := handlers.NewPipelineHandler(ocrService, extractionService, appLogger)
	searchHandler := handlers.NewSearchHandler(searchService, appLogger)
	insightHandler := handlers.NewInsightHandler(insightService, recService, profileRepo, appLogger)

	// Setup router
	app := api.SetupRouter(expenseHandler, pipelineHandler, searchHandler, insightHandler, jwtManager, appLogger)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
