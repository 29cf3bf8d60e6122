package attempt

import (
	"strings"
	"unicode/utf8"

	"github.com/ashureev/prompt-labs/internal/domain"
)

// Input limits.
const (
	MaxUserIDLength = 100
	MinPromptLength = 10
	MaxPromptLength = 2000
)

// Submission is a learner's request to run a prompt.
type Submission struct {
	UserID        string
	Prompt        string
	AttemptNumber int
	TaskType      string
	FeedbackLevel string
	Technique     string
}

// WithDefaults fills in the task type and feedback level when unset.
func (s Submission) WithDefaults() Submission {
	s.UserID = strings.TrimSpace(s.UserID)
	if s.TaskType == "" {
		s.TaskType = domain.TaskBinary
	}
	if s.FeedbackLevel == "" {
		s.FeedbackLevel = domain.FeedbackLLM
	}
	return s
}

// Validate checks the submission before any external call is made.
func (s Submission) Validate() error {
	if n := utf8.RuneCountInString(s.UserID); n < 1 || n > MaxUserIDLength {
		return domain.NewValidationError("userId", "must be between 1 and %d characters", MaxUserIDLength)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(s.Prompt)); n < MinPromptLength || n > MaxPromptLength {
		return domain.NewValidationError("prompt", "must be between %d and %d characters", MinPromptLength, MaxPromptLength)
	}
	if s.AttemptNumber < 1 {
		return domain.NewValidationError("attemptNumber", "must be a positive integer")
	}
	switch s.TaskType {
	case domain.TaskBinary, domain.TaskMulticlass, domain.TaskMultilabel:
	default:
		return domain.NewValidationError("taskType", "must be one of binary, multiclass, multilabel")
	}
	return nil
}

// NormalizeAttemptNumber maps any attempt number onto the slots 1..3, so
// attempt 4 reuses slot 1.
func NormalizeAttemptNumber(raw int) int {
	if raw < 1 {
		return 1
	}
	return (raw-1)%domain.MaxAttempts + 1
}
