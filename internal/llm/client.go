// Package llm provides chat-completion clients for the supported model
// providers and a demo client used when no credential is configured.
package llm

import (
	"context"

	"github.com/ashureev/prompt-labs/internal/domain"
)

// Client sends an ordered conversation to a model and returns its reply.
// Implementations are safe for concurrent use.
type Client interface {
	// Complete runs one chat completion. Failures are returned as
	// *ErrRateLimit, *ErrProviderUnavailable or *ErrInvalidResponse.
	Complete(ctx context.Context, messages []Message, params Params) (*Completion, error)

	// Name identifies the provider ("openai", "anthropic", "gemini", "demo", "mock").
	Name() string

	// ModelID returns the model used when Params.Model is empty.
	ModelID() string
}

// Role is the message sender role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Params tunes a completion. Zero Model selects the client's default.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Completion is a model reply.
type Completion struct {
	Text  string
	Usage domain.Usage
	Model string
}

// FromChat converts stored chat turns into model messages.
func FromChat(history []domain.ChatMessage) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		role := RoleUser
		switch m.Role {
		case domain.RoleAssistant:
			role = RoleAssistant
		case domain.RoleSystem:
			role = RoleSystem
		}
		out = append(out, Message{Role: role, Content: m.Content})
	}
	return out
}

// splitSystem separates system turns from the conversation for providers
// that take the system prompt as a separate field.
func splitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

func pickModel(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}

func domainUsage(prompt, completion, total int) domain.Usage {
	if total == 0 {
		total = prompt + completion
	}
	return domain.Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}
