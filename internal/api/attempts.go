package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/prompt-labs/internal/attempt"
	"github.com/ashureev/prompt-labs/internal/domain"
	"github.com/ashureev/prompt-labs/internal/prompt"
)

// submitRequest is the JSON body of a submission. "attempt" is accepted as
// an alias of "attemptNumber".
type submitRequest struct {
	UserID        string `json:"userId"`
	Prompt        string `json:"prompt"`
	AttemptNumber int    `json:"attemptNumber"`
	Attempt       int    `json:"attempt"`
	TaskType      string `json:"taskType"`
	FeedbackLevel string `json:"feedbackLevel"`
	Technique     string `json:"technique"`
}

func (req submitRequest) submission(r *http.Request) attempt.Submission {
	n := req.AttemptNumber
	if n == 0 {
		n = req.Attempt
	}
	if n == 0 {
		n = 1
	}
	return attempt.Submission{
		UserID:        requestUserID(r, req.UserID),
		Prompt:        req.Prompt,
		AttemptNumber: n,
		TaskType:      req.TaskType,
		FeedbackLevel: req.FeedbackLevel,
		Technique:     req.Technique,
	}
}

func (h *Handler) decodeSubmission(w http.ResponseWriter, r *http.Request) (attempt.Submission, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Config.SSE.MaxRequestBodySize)
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return attempt.Submission{}, domain.NewValidationError("", "request body too large")
		}
		return attempt.Submission{}, domain.NewValidationError("", "invalid request body")
	}
	return req.submission(r), nil
}

// SubmitAttempt runs a submission and returns the stored attempt.
func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	sub, err := h.decodeSubmission(w, r)
	if err != nil {
		WriteError(w, err)
		return
	}

	slog.Info("Received attempt submission",
		"user_id", sub.UserID,
		"attempt", sub.AttemptNumber,
		"prompt_length", len(sub.Prompt),
		"task_type", sub.TaskType,
		"feedback_level", sub.FeedbackLevel,
	)

	ctx, cancel := h.attemptContext(r)
	defer cancel()

	a, err := h.Attempts.Process(ctx, sub, nil)
	if err != nil {
		WriteError(w, err)
		return
	}
	Success(w, "Prompt processed successfully", a)
}

// ListAttempts returns a user's attempts in ascending order.
func (h *Handler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := validateUserID(userID); err != nil {
		WriteError(w, err)
		return
	}

	attempts, err := h.Attempts.ListAttempts(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return
	}
	Success(w, "Attempts retrieved successfully", attempts)
}

// GetChatHistory returns the chat turns stored for one attempt slot.
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := validateUserID(userID); err != nil {
		WriteError(w, err)
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "attemptNumber"))
	if err != nil {
		WriteError(w, domain.NewValidationError("attemptNumber", "must be an integer"))
		return
	}

	history, err := h.Attempts.ChatHistory(r.Context(), userID, n)
	if err != nil {
		WriteError(w, err)
		return
	}
	Success(w, "Chat history retrieved successfully", history)
}

// ListTechniques returns the technique catalogue.
func (h *Handler) ListTechniques(w http.ResponseWriter, _ *http.Request) {
	Success(w, "Techniques retrieved successfully", prompt.Techniques())
}

func validateUserID(userID string) error {
	if userID == "" || len([]rune(userID)) > attempt.MaxUserIDLength {
		return domain.NewValidationError("userId", "must be between 1 and %d characters", attempt.MaxUserIDLength)
	}
	return nil
}
