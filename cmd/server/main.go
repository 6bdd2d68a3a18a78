package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RichardoC/chat-relay/internal/api"
	"github.com/RichardoC/chat-relay/internal/chat"
	"github.com/RichardoC/chat-relay/internal/config"
	"github.com/RichardoC/chat-relay/internal/db"
	"github.com/RichardoC/chat-relay/internal/llm"
	"github.com/RichardoC/chat-relay/internal/telemetry"
	"github.com/RichardoC/chat-relay/web"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		bootLogger, _ := zap.NewProduction()
		bootLogger.Fatal("failed to load config", zap.Error(err))
	}

	logger := telemetry.NewLogger(cfg.LogLevel, cfg.LogFile)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.TelemetryDir)
	if err != nil {
		logger.Fatal("failed to initialize telemetry", zap.Error(err))
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.DBPath))
	}

	gateway, err := llm.New(
		cfg.LLMBaseURL,
		cfg.LLMAPIKey,
		cfg.LLMModel,
		llm.WithTimeout(cfg.LLMTimeout),
		llm.WithLogger(logger.Named("llm")),
	)
	if err != nil {
		logger.Fatal("failed to initialize LLM service", zap.Error(err))
	}

	var opts []chat.Option
	if cfg.AssistantPrompt != "" {
		opts = append(opts, chat.WithAssistantPrompt(cfg.AssistantPrompt))
	}
	if cfg.DefaultChatTitle != "" {
		opts = append(opts, chat.WithDefaultTitle(cfg.DefaultChatTitle))
	}
	service := chat.NewService(database, gateway, logger.Named("chat"), opts...)

	handler := api.NewHandler(service, logger.Named("api"))
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewRouter(handler, web.FS, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("addr", server.Addr),
			zap.String("model", cfg.LLMModel),
			zap.String("llmBaseURL", cfg.LLMBaseURL))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := multierr.Combine(
		server.Shutdown(shutdownCtx),
		database.Close(),
		shutdownTelemetry(shutdownCtx),
	); err != nil {
		logger.Error("unclean shutdown", zap.Error(err))
	}
}
