package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rcallen/chatd/internal/api"
	"github.com/rcallen/chatd/internal/backend"
	"github.com/rcallen/chatd/internal/chat"
	"github.com/rcallen/chatd/internal/config"
	"github.com/rcallen/chatd/internal/db"
	"github.com/rcallen/chatd/internal/db/jsonfile"
	"github.com/rcallen/chatd/internal/db/sqlite"
	"github.com/rcallen/chatd/internal/user"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	// users.json always lives in the flat-file store; the sqlite backend
	// only replaces the chats collection.
	files, err := jsonfile.New(cfg.DataDir)
	if err != nil {
		logger.Fatal("failed to open data directory",
			zap.Error(err),
			zap.String("dataDir", cfg.DataDir))
	}

	var chatStore db.ChatStore = files
	if cfg.StorageBackend == config.StorageSQLite {
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			logger.Fatal("failed to open sqlite store",
				zap.Error(err),
				zap.String("dbPath", cfg.SQLitePath))
		}
		defer store.Close()
		chatStore = store
	}

	registry := backend.NewRegistry()
	if cfg.OpenAIAPIKey != "" || cfg.OpenAIBaseURL != "" {
		oa, err := backend.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModels, cfg.Temperature, cfg.MaxTokens)
		if err != nil {
			logger.Fatal("failed to initialize openai backend", zap.Error(err))
		}
		registry.Register(oa, "gpt", "o1", "o3")
	}
	if cfg.AnthropicAPIKey != "" {
		an, err := backend.NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModels, cfg.Temperature, cfg.MaxTokens)
		if err != nil {
			logger.Fatal("failed to initialize anthropic backend", zap.Error(err))
		}
		registry.Register(an, "claude")
	}
	if cfg.OllamaHost != "" {
		registry.SetLocal(backend.NewOllama(cfg.OllamaHost, cfg.Temperature, cfg.MaxTokens))
	}

	chatSvc := chat.NewService(chatStore, registry, logger, cfg.DefaultModel, cfg.HistoryBudget)
	userSvc := user.NewService(files, logger)

	router := api.NewRouter(api.NewHandler(chatSvc, userSvc, registry, logger), userSvc, cfg.FrontendURL)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("starting server",
			zap.String("port", cfg.Port),
			zap.String("storage", cfg.StorageBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
}
