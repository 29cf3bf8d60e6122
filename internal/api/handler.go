// Package api provides HTTP handlers for the prompt-labs API.
package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/prompt-labs/internal/attempt"
	"github.com/ashureev/prompt-labs/internal/config"
	"github.com/ashureev/prompt-labs/internal/dataset"
	"github.com/ashureev/prompt-labs/internal/domain"
	"github.com/ashureev/prompt-labs/internal/identity"
)

// AttemptService runs and reads attempts.
type AttemptService interface {
	Process(ctx context.Context, sub attempt.Submission, onProgress domain.ProgressFunc) (*domain.Attempt, error)
	ListAttempts(ctx context.Context, userID string) ([]*domain.Attempt, error)
	ChatHistory(ctx context.Context, userID string, attemptNumber int) ([]domain.ChatMessage, error)
}

// DatasetService manages uploaded datasets.
type DatasetService interface {
	Import(ctx context.Context, userID, filename string, r io.Reader) (*domain.Dataset, error)
	Get(ctx context.Context, userID string) (*domain.Dataset, error)
	Delete(ctx context.Context, userID string) error
}

// UserReader looks up users for /api/me.
type UserReader interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// Pinger checks the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ModelInfo describes the active model provider.
type ModelInfo struct {
	Provider string
	Model    string
}

// Deps wires a Handler.
type Deps struct {
	Attempts AttemptService
	Datasets DatasetService
	Users    UserReader
	DB       Pinger
	Limiter  *RateLimiter
	Conns    *ConnRegistry
	Model    ModelInfo
	Config   *config.Config
}

// Handler serves the API routes.
type Handler struct {
	Deps
}

// NewHandler creates a Handler. A nil Config falls back to defaults.
func NewHandler(d Deps) *Handler {
	if d.Config == nil {
		d.Config = defaultConfig()
	}
	if d.Conns == nil {
		d.Conns = NewConnRegistry()
	}
	if d.Limiter == nil {
		d.Limiter = NewRateLimiter(d.Config.RateLimit.RequestsPerWindow, d.Config.RateLimit.WindowDuration)
	}
	return &Handler{Deps: d}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/me", h.GetMe)
		r.Get("/config", h.GetConfig)
		r.Get("/techniques", h.ListTechniques)

		r.Route("/attempts", func(r chi.Router) {
			r.With(h.Limiter.Middleware).Post("/submit", h.SubmitAttempt)
			r.With(h.Limiter.Middleware).Post("/submit/stream", h.SubmitAttemptStream)
			r.Get("/user/{userID}", h.ListAttempts)
			r.Get("/user/{userID}/attempt/{attemptNumber}/chat", h.GetChatHistory)
		})

		r.Route("/dataset", func(r chi.Router) {
			r.Post("/upload", h.UploadDataset)
			r.Get("/user/{userID}", h.GetDataset)
			r.Delete("/user/{userID}", h.DeleteDataset)
		})
	})

	r.With(h.Limiter.Middleware).Get("/ws/attempts", h.ServeAttemptSocket)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]interface{}{"success": false, "error": message})
}

// Success writes the standard success envelope.
func Success(w http.ResponseWriter, message string, data interface{}) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// WriteError maps a service error onto a status code and writes it.
func WriteError(w http.ResponseWriter, err error) {
	var missing *dataset.MissingColumnsError
	if errors.As(err, &missing) {
		JSON(w, http.StatusBadRequest, map[string]interface{}{
			"success":      false,
			"error":        missing.Error(),
			"foundColumns": missing.Found,
		})
		return
	}
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "error", err, "status", status)
	}
	Error(w, status, err.Error())
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	var (
		validation *domain.ValidationError
		parse      *domain.ParseError
		notFound   *domain.NotFoundError
		service    *domain.ServiceError
		csvErr     *csv.ParseError
	)
	switch {
	case errors.As(err, &validation), errors.Is(err, dataset.ErrEmptyCSV), errors.As(err, &csvErr):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &parse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &service):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// requestUserID prefers an explicit user id and falls back to the
// anonymous identity of the request.
func requestUserID(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return identity.UserIDFromContext(r.Context())
}

// attemptContext detaches attempt work from the request so a dropped
// client does not discard a half-finished attempt, bounded by the attempt
// timeout.
func (h *Handler) attemptContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), h.Config.Attempt.Timeout)
}

func defaultConfig() *config.Config {
	return &config.Config{
		Attempt:   config.AttemptConfig{Timeout: 5 * time.Minute, ChatHistoryLimit: 10},
		Dataset:   config.DatasetConfig{MaxUploadBytes: 5 * 1024 * 1024},
		RateLimit: config.RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute},
		SSE: config.SSEConfig{
			MaxRequestBodySize: 64 * 1024,
			RetryDelay:         5 * time.Second,
			KeepaliveInterval:  10 * time.Second,
		},
		Timeout: config.TimeoutConfig{HealthCheck: 5 * time.Second},
	}
}
