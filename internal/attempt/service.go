// Package attempt coordinates one prompt submission from classification to
// the stored, scored and coached attempt.
package attempt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/prompt-labs/internal/classify"
	"github.com/ashureev/prompt-labs/internal/domain"
	"github.com/ashureev/prompt-labs/internal/feedback"
	"github.com/ashureev/prompt-labs/internal/llm"
	"github.com/ashureev/prompt-labs/internal/metrics"
	"github.com/ashureev/prompt-labs/internal/prompt"
)

// Store persists attempts.
type Store interface {
	GetAttempt(ctx context.Context, userID string, attemptNumber int) (*domain.Attempt, error)
	UpsertAttempt(ctx context.Context, a *domain.Attempt) error
	ListAttempts(ctx context.Context, userID string) ([]*domain.Attempt, error)
}

// DatasetLoader returns the samples for a user and task.
type DatasetLoader interface {
	Load(ctx context.Context, userID, taskType string) ([]domain.Sample, error)
}

// Classifier runs a prompt over a dataset.
type Classifier interface {
	Classify(ctx context.Context, in classify.Input, onProgress domain.ProgressFunc) (*classify.Result, error)
}

// Coach produces feedback for a scored attempt.
type Coach interface {
	Evaluate(ctx context.Context, req feedback.Request) (*feedback.Result, error)
}

// Config wires a Service.
type Config struct {
	Store      Store
	Datasets   DatasetLoader
	Classifier Classifier
	Coach      Coach

	// HistoryLimit caps the prior chat turns replayed to the models.
	HistoryLimit int
	// Provider and Model are recorded on each attempt.
	Provider string
	Model    string
}

// Service processes submissions.
type Service struct {
	cfg Config
	now func() time.Time
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = feedback.DefaultHistoryLimit
	}
	return &Service{cfg: cfg, now: time.Now}
}

// Process runs sub through load, classify, score, feedback and persist.
// Nothing is stored unless every stage succeeds. Exactly one error progress
// event is emitted on failure.
func (s *Service) Process(ctx context.Context, sub Submission, onProgress domain.ProgressFunc) (*domain.Attempt, error) {
	sub = sub.WithDefaults()
	fail := func(err error) (*domain.Attempt, error) {
		onProgress.Emit(domain.ProgressEvent{Status: domain.StatusError, Message: err.Error()})
		return nil, err
	}

	if err := sub.Validate(); err != nil {
		return fail(err)
	}
	n := NormalizeAttemptNumber(sub.AttemptNumber)
	ctx = llm.WithUser(ctx, sub.UserID)
	log := slog.With("user_id", sub.UserID, "attempt", n)

	onProgress.Emit(domain.ProgressEvent{
		Status:  domain.StatusStarted,
		Message: fmt.Sprintf("Processing attempt %d", n),
	})

	var samples []domain.Sample
	var existing []*domain.Attempt
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		samples, err = s.cfg.Datasets.Load(gctx, sub.UserID, sub.TaskType)
		return err
	})
	g.Go(func() error {
		var err error
		existing, err = s.cfg.Store.ListAttempts(gctx, sub.UserID)
		if err != nil {
			return &domain.ServiceError{Op: "load previous attempts", Err: err}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Warn("Failed to load attempt inputs", "error", err)
		return fail(err)
	}

	labels := domain.Labels(samples)
	history := priorHistory(existing, n, s.cfg.HistoryLimit)
	previous := previousContext(existing, n)

	var normalized string
	if sub.Technique == "" {
		normalized = prompt.Normalize(sub.Prompt)
	} else {
		normalized = prompt.ApplyTechnique(sub.Prompt, sub.Technique, labels...)
	}

	classifyStart := s.now()
	result, err := s.cfg.Classifier.Classify(ctx, classify.Input{
		Prompt:      normalized,
		ChatHistory: llm.FromChat(history),
		TaskType:    sub.TaskType,
		Dataset:     samples,
	}, onProgress)
	if err != nil {
		// The classifier reports its own failure.
		log.Warn("Classification failed", "error", err)
		return nil, err
	}
	classifyMs := s.now().Sub(classifyStart).Milliseconds()
	reportText := metrics.FormatReport(result.Report)

	onProgress.Emit(domain.ProgressEvent{Status: domain.StatusFeedback, Message: "Generating feedback"})
	feedbackStart := s.now()
	fb, err := s.cfg.Coach.Evaluate(ctx, feedback.Request{
		UserPrompt:      sub.Prompt,
		ReportText:      reportText,
		ChatHistory:     history,
		AttemptNumber:   n,
		TaskType:        sub.TaskType,
		PreviousContext: previous,
		Technique:       sub.Technique,
		Level:           sub.FeedbackLevel,
		Labels:          labels,
	})
	if err != nil {
		log.Warn("Feedback failed", "error", err)
		return fail(err)
	}
	feedbackMs := s.now().Sub(feedbackStart).Milliseconds()

	onProgress.Emit(domain.ProgressEvent{Status: domain.StatusSaving, Message: "Saving attempt"})
	now := s.now()
	turns := []domain.ChatMessage{{Role: domain.RoleUser, Content: sub.Prompt, Timestamp: now}}
	if fb.Feedback != "" {
		turns = append(turns, domain.ChatMessage{Role: domain.RoleAssistant, Content: fb.Feedback, Timestamp: now})
	}

	a := &domain.Attempt{
		ID:            uuid.NewString(),
		UserID:        sub.UserID,
		AttemptNumber: n,
		Prompt:        sub.Prompt,
		LLMOutput:     reportText,
		Feedback:      fb.Feedback,
		ChatHistory:   turns,
		Predictions:   result.Merged,
		Metrics:       result.Report,
		Meta: domain.AttemptMeta{
			ClassificationUsage: result.Usage,
			FeedbackUsage:       fb.Usage,
			ClassificationMs:    classifyMs,
			FeedbackMs:          feedbackMs,
			Unmatched:           result.Unmatched,
			Provider:            s.cfg.Provider,
			Model:               s.cfg.Model,
		},
		TaskType:      sub.TaskType,
		FeedbackLevel: sub.FeedbackLevel,
		Technique:     sub.Technique,
		Completed:     true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if prev := findAttempt(existing, n); prev != nil {
		a.ID = prev.ID
		a.CreatedAt = prev.CreatedAt
	}

	if err := s.cfg.Store.UpsertAttempt(ctx, a); err != nil {
		log.Error("Failed to save attempt", "error", err)
		return fail(&domain.ServiceError{Op: "save attempt", Err: err})
	}

	log.Info("Attempt processed",
		"accuracy", result.Report.Overall.Accuracy,
		"unmatched", result.Unmatched,
		"tokens", result.Usage.Add(fb.Usage).TotalTokens,
	)
	onProgress.Emit(domain.ProgressEvent{Status: domain.StatusDone, Message: "Attempt saved"})
	return a, nil
}

// ListAttempts returns the user's attempts in ascending attempt order.
func (s *Service) ListAttempts(ctx context.Context, userID string) ([]*domain.Attempt, error) {
	attempts, err := s.cfg.Store.ListAttempts(ctx, userID)
	if err != nil {
		return nil, &domain.ServiceError{Op: "list attempts", Err: err}
	}
	if attempts == nil {
		attempts = []*domain.Attempt{}
	}
	return attempts, nil
}

// ChatHistory returns the turns stored for one attempt slot, or an empty
// history when the slot has not been used.
func (s *Service) ChatHistory(ctx context.Context, userID string, attemptNumber int) ([]domain.ChatMessage, error) {
	if attemptNumber < 1 || attemptNumber > domain.MaxAttempts {
		return nil, domain.NewValidationError("attemptNumber", "must be between 1 and %d", domain.MaxAttempts)
	}
	a, err := s.cfg.Store.GetAttempt(ctx, userID, attemptNumber)
	if err != nil {
		return nil, &domain.ServiceError{Op: "load chat history", Err: err}
	}
	if a == nil || a.ChatHistory == nil {
		return []domain.ChatMessage{}, nil
	}
	return a.ChatHistory, nil
}

// priorHistory concatenates the chat turns of attempts before n in attempt
// order and keeps the most recent limit turns.
func priorHistory(attempts []*domain.Attempt, n, limit int) []domain.ChatMessage {
	var out []domain.ChatMessage
	for _, a := range attempts {
		if a.AttemptNumber < n {
			out = append(out, a.ChatHistory...)
		}
	}
	return feedback.CapHistory(out, limit)
}

func previousContext(attempts []*domain.Attempt, n int) []feedback.PreviousAttempt {
	var out []feedback.PreviousAttempt
	for _, a := range attempts {
		if a.AttemptNumber < n {
			out = append(out, feedback.PreviousAttempt{
				Attempt:     a.AttemptNumber,
				Performance: metrics.Summary(a.Metrics),
			})
		}
	}
	return out
}

func findAttempt(attempts []*domain.Attempt, n int) *domain.Attempt {
	for _, a := range attempts {
		if a.AttemptNumber == n {
			return a
		}
	}
	return nil
}
