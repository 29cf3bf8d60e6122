package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ashureev/prompt-labs/internal/domain"
	"github.com/ashureev/prompt-labs/internal/identity"
	"github.com/ashureev/prompt-labs/internal/prompt"
)

// Health returns the health status of the API and its dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Config.Timeout.HealthCheck)
	defer cancel()

	checks := map[string]string{"api": "ok", "llm": h.Model.Provider}
	status := map[string]interface{}{
		"status":  "healthy",
		"service": "prompt-labs",
		"checks":  checks,
	}
	statusCode := http.StatusOK

	if err := h.DB.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// GetMe returns the current anonymous user.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.Users.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      user.UserID,
		"username":     user.Username,
		"last_seen_at": user.LastSeenAt,
	})
}

// GetConfig returns the settings the frontend needs.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"provider":       h.Model.Provider,
		"model":          h.Model.Model,
		"demo_mode":      h.Model.Provider == "demo",
		"max_attempts":   domain.MaxAttempts,
		"task_types":     []string{domain.TaskBinary, domain.TaskMulticlass, domain.TaskMultilabel},
		"feedback_level": []string{domain.FeedbackLLM, domain.FeedbackFixed},
		"techniques":     prompt.Techniques(),
		"upload_limit":   h.Config.Dataset.MaxUploadBytes,
	})
}
