// Package feedback produces coaching feedback for a scored attempt.
package feedback

import (
	"context"

	"github.com/ashureev/prompt-labs/internal/domain"
	"github.com/ashureev/prompt-labs/internal/llm"
	"github.com/ashureev/prompt-labs/internal/prompt"
)

// DefaultHistoryLimit caps the chat turns replayed to the coach.
const DefaultHistoryLimit = 10

// Options tunes the coaching model call.
type Options struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	HistoryLimit int
}

// PreviousAttempt summarizes an earlier attempt for comparison.
type PreviousAttempt struct {
	Attempt     int
	Performance string
}

// Request carries everything the coach sees about an attempt.
type Request struct {
	UserPrompt      string
	ReportText      string
	ChatHistory     []domain.ChatMessage
	AttemptNumber   int
	TaskType        string
	PreviousContext []PreviousAttempt
	Technique       string
	Level           string
	// Labels is the dataset vocabulary. Empty means the built-in pair.
	Labels []string
}

// Result is the coach's reply.
type Result struct {
	Feedback string
	Usage    domain.Usage
}

// Orchestrator builds coaching conversations and runs them on a model.
type Orchestrator struct {
	client llm.Client
	opts   Options
}

// New creates an Orchestrator. Zero options select temperature 0.7, 500
// max tokens and a history of DefaultHistoryLimit turns.
func New(client llm.Client, opts Options) *Orchestrator {
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	return &Orchestrator{client: client, opts: opts}
}

// Evaluate returns feedback for req according to req.Level.
func (o *Orchestrator) Evaluate(ctx context.Context, req Request) (*Result, error) {
	switch req.Level {
	case domain.FeedbackLLM:
	case domain.FeedbackFixed:
		return &Result{Feedback: FixedChecklist}, nil
	default:
		return &Result{}, nil
	}

	req.Technique = prompt.ParseTechnique(req.Technique)
	final := req.AttemptNumber >= domain.MaxAttempts

	history := CapHistory(req.ChatHistory, o.opts.HistoryLimit)
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemMessage(req, final)})
	messages = append(messages, llm.FromChat(history)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage(req, final)})

	resp, err := o.client.Complete(llm.WithPurpose(ctx, llm.PurposeFeedback), messages, llm.Params{
		Model:       o.opts.Model,
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
	})
	if err != nil {
		return nil, &domain.ServiceError{Op: "feedback request", Err: err}
	}
	return &Result{Feedback: resp.Text, Usage: resp.Usage}, nil
}

// CapHistory keeps the most recent limit turns.
func CapHistory(history []domain.ChatMessage, limit int) []domain.ChatMessage {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
