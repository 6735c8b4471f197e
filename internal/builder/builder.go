package builder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avdosev/ragchat-backend/internal/api"
	chatapi "github.com/avdosev/ragchat-backend/internal/api/chat"
	"github.com/avdosev/ragchat-backend/internal/config"
	"github.com/avdosev/ragchat-backend/internal/integration/ingest"
	"github.com/avdosev/ragchat-backend/internal/integration/llm"
	"github.com/avdosev/ragchat-backend/internal/integration/vectorstore"
	"github.com/avdosev/ragchat-backend/internal/pkg/validator"
	"github.com/avdosev/ragchat-backend/internal/repository"
	"github.com/avdosev/ragchat-backend/internal/usecase/chat"
	"go.uber.org/zap"
)

func Build() (*App, error) {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	logger.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
	)

	// Setup database connection
	db, err := setupDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}

	// Run database migrations
	logger.Info("Running database migrations")
	if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize repositories
	convRepo := repository.NewConversationPostgres(db, cfg.StoreRetry)
	logger.Info("Repositories initialized")

	// Initialize external service connectors (with mock support)
	var llmConnector chat.LLMConnector
	var retriever chat.Retriever
	var ingestConnector chat.IngestConnector

	if cfg.EnableMocks {
		logger.Info("Using mock connectors for external services")
		llmConnector = llm.NewMockConnector(logger)
		retriever = vectorstore.NewMockConnector(logger)
		ingestConnector = ingest.NewMockConnector(logger)
	} else {
		logger.Info("Using real connectors for external services")
		llmConnector = llm.NewConnector(cfg.LLMConnectorCfg, logger)
		retriever = vectorstore.NewConnector(cfg.VectorConnectorCfg, logger)
		ingestConnector = ingest.NewConnector(cfg.IngestConnectorCfg, logger)
	}

	// Initialize validators
	chatValidator := validator.NewValidator(cfg.FileUploadCfg)
	logger.Info("Validators initialized")

	// Initialize use cases
	chatUC := chat.NewUsecase(
		convRepo,
		retriever,
		llmConnector,
		ingestConnector,
		cfg.VectorConnectorCfg.TopK,
		logger,
	)
	logger.Info("Use cases initialized")

	// Setup API handlers
	chatHandler := chatapi.NewHandler(chatUC, chatValidator, cfg.FileUploadCfg)
	logger.Info("API handlers initialized")

	// Setup router
	router := api.SetupRouter(chatHandler, logger)
	logger.Info("HTTP router configured")

	// Create HTTP server. WriteTimeout stays zero: the streaming endpoint
	// holds the response open for as long as generation runs.
	server := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	logger.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
	)

	return &App{
		server: server,
		db:     db,
		logger: logger,
	}, nil
}
