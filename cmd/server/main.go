// Prompt Labs - prompt engineering practice server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/prompt-labs/internal/api"
	"github.com/ashureev/prompt-labs/internal/attempt"
	"github.com/ashureev/prompt-labs/internal/classify"
	"github.com/ashureev/prompt-labs/internal/config"
	"github.com/ashureev/prompt-labs/internal/dataset"
	"github.com/ashureev/prompt-labs/internal/feedback"
	"github.com/ashureev/prompt-labs/internal/health"
	"github.com/ashureev/prompt-labs/internal/identity"
	"github.com/ashureev/prompt-labs/internal/llm"
	"github.com/ashureev/prompt-labs/internal/middleware"
	"github.com/ashureev/prompt-labs/internal/store"
	"github.com/ashureev/prompt-labs/internal/transcript"
	"github.com/ashureev/prompt-labs/web"
)

const maintenanceInterval = time.Hour

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath, store.Options{
		MaxRetries:     cfg.Retry.DatabaseMaxRetries,
		RetryBaseDelay: cfg.Retry.DatabaseRetryBaseDelay,
	})
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	transcripts, err := transcript.New(transcript.Config{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcripts.Close(); closeErr != nil {
			slog.Error("Failed to close transcript logger", "error", closeErr)
		}
	}()

	client, err := llm.New(ctx, llm.Config{
		Provider:  cfg.LLM.Provider,
		OpenAI:    llm.OpenAIConfig{APIKey: cfg.LLM.OpenAIAPIKey, Model: cfg.LLM.OpenAIModel, BaseURL: cfg.LLM.OpenAIBaseURL},
		Anthropic: llm.AnthropicConfig{APIKey: cfg.LLM.AnthropicAPIKey, Model: cfg.LLM.AnthropicModel},
		Gemini:    llm.GeminiConfig{APIKey: cfg.LLM.GeminiAPIKey, Model: cfg.LLM.GeminiModel},
	}, transcripts)
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	if client.Name() == "demo" {
		slog.Warn("No LLM credentials configured, running in demo mode")
	}
	slog.Info("LLM client ready", "provider", client.Name(), "model", client.ModelID())

	// Initialize services.
	datasets := dataset.NewService(repo)
	attempts := attempt.NewService(attempt.Config{
		Store:    repo,
		Datasets: datasets,
		Classifier: classify.New(client, classify.Options{
			MaxTokens: cfg.LLM.ClassifyMaxTokens,
		}),
		Coach: feedback.New(client, feedback.Options{
			Temperature:  cfg.LLM.FeedbackTemperature,
			MaxTokens:    cfg.LLM.FeedbackMaxTokens,
			HistoryLimit: cfg.Attempt.ChatHistoryLimit,
		}),
		HistoryLimit: cfg.Attempt.ChatHistoryLimit,
		Provider:     client.Name(),
		Model:        client.ModelID(),
	})

	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	conns := api.NewConnRegistry()
	handler := api.NewHandler(api.Deps{
		Attempts: attempts,
		Datasets: datasets,
		Users:    repo,
		DB:       repo,
		Limiter:  limiter,
		Conns:    conns,
		Model:    api.ModelInfo{Provider: client.Name(), Model: client.ModelID()},
		Config:   cfg,
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	handler.RegisterRoutes(r)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// SSE attempt streams can outlive any fixed write timeout; keepalives
	// hold the connection open instead.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	if cfg.GRPCHealthAddr != "" {
		hs := health.NewServer(repo, cfg.Timeout.HealthCheck, logger)
		go func() {
			if err := hs.Serve(ctx, cfg.GRPCHealthAddr, 15*time.Second); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	go runMaintenance(ctx, repo, limiter, cfg.UserRetention)
	slog.Info("Maintenance worker started", "user_retention", cfg.UserRetention)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")
	conns.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// runMaintenance purges users idle past retention and drops idle rate
// limiter entries until ctx is done.
func runMaintenance(ctx context.Context, repo store.Repository, limiter *api.RateLimiter, retention time.Duration) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Sweep(); n > 0 {
				slog.Debug("Rate limiter entries swept", "count", n)
			}
			if retention <= 0 {
				continue
			}
			purged, err := repo.PurgeInactiveUsers(ctx, retention)
			if err != nil {
				slog.Error("Failed to purge inactive users", "error", err)
				continue
			}
			if purged > 0 {
				slog.Info("Inactive users purged", "count", purged, "retention", retention)
			}
		}
	}
}
