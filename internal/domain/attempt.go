package domain

import "time"

// MaxAttempts is the number of attempt slots per user. Higher attempt
// numbers recycle into these slots.
const MaxAttempts = 3

// Feedback levels.
const (
	FeedbackLLM   = "llm"
	FeedbackFixed = "fixed"
)

// Chat roles stored in attempt history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one turn of an attempt's conversation.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Usage counts model tokens.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the field-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// AttemptMeta records cost and timing of one attempt run.
type AttemptMeta struct {
	ClassificationUsage Usage  `json:"classificationUsage"`
	FeedbackUsage       Usage  `json:"feedbackUsage"`
	ClassificationMs    int64  `json:"classificationMs"`
	FeedbackMs          int64  `json:"feedbackMs"`
	Unmatched           int    `json:"unmatched"`
	Provider            string `json:"provider"`
	Model               string `json:"model"`
}

// Attempt is the stored result of one submission. (UserID, AttemptNumber)
// is unique; a later submission for the same slot replaces the record.
type Attempt struct {
	ID            string         `json:"id"`
	UserID        string         `json:"userId"`
	AttemptNumber int            `json:"attempt"`
	Prompt        string         `json:"prompt"`
	LLMOutput     string         `json:"llmOutput"`
	Feedback      string         `json:"feedback"`
	ChatHistory   []ChatMessage  `json:"chatHistory"`
	Predictions   []MergedRecord `json:"predictions"`
	Metrics       *Report        `json:"metrics"`
	Meta          AttemptMeta    `json:"meta"`
	TaskType      string         `json:"taskType"`
	FeedbackLevel string         `json:"feedbackLevel"`
	Technique     string         `json:"technique,omitempty"`
	Completed     bool           `json:"completed"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}
