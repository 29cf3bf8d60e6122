package feedback

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/prompt-labs/internal/domain"
	"github.com/ashureev/prompt-labs/internal/llm"
)

func baseRequest() Request {
	return Request{
		UserPrompt:    "Label tweets about relief as humanitarian.",
		ReportText:    "Accuracy: 75.0% (8 samples)",
		AttemptNumber: 1,
		TaskType:      domain.TaskBinary,
		Technique:     "few-shot",
		Level:         domain.FeedbackLLM,
	}
}

func TestEvaluateStructuredCritique(t *testing.T) {
	t.Parallel()

	mock := llm.NewMockClient(llm.MockResponse{Text: "good work", Usage: domain.Usage{TotalTokens: 9}})
	res, err := New(mock, Options{}).Evaluate(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, "good work", res.Feedback)
	assert.Equal(t, 9, res.Usage.TotalTokens)

	call := mock.Calls()[0]
	assert.Equal(t, llm.PurposeFeedback, call.Purpose)
	assert.InDelta(t, 0.7, call.Params.Temperature, 1e-9)
	assert.Equal(t, 500, call.Params.MaxTokens)

	require.Len(t, call.Messages, 2)
	system, user := call.Messages[0].Content, call.Messages[1].Content
	assert.Contains(t, system, "Few-Shot Learning")
	assert.Contains(t, system, "BINARY CLASSIFICATION PRINCIPLES")
	assert.Contains(t, user, "CURRENT ATTEMPT: 1 of 3")
	assert.Contains(t, user, "### Improved Prompt")
	assert.Contains(t, user, "**Why Performance Is X%**")
	assert.NotContains(t, user, "PREVIOUS ATTEMPTS")
}

func TestEvaluateFinalAttemptAsksForSummary(t *testing.T) {
	t.Parallel()

	mock := llm.NewMockClient(llm.MockResponse{Text: "summary"})
	req := baseRequest()
	req.AttemptNumber = 3
	req.PreviousContext = []PreviousAttempt{
		{Attempt: 1, Performance: "accuracy 50.0%, macro F1 0.500"},
		{Attempt: 2, Performance: "accuracy 62.5%, macro F1 0.600"},
	}

	_, err := New(mock, Options{}).Evaluate(context.Background(), req)
	require.NoError(t, err)

	call := mock.Calls()[0]
	system, user := call.Messages[0].Content, call.Messages[len(call.Messages)-1].Content
	assert.Contains(t, system, "FINAL ATTEMPT")
	assert.NotContains(t, system, "PRINCIPLES")
	assert.Contains(t, user, "comprehensive learning summary")
	assert.NotContains(t, user, "### Improved Prompt")
	assert.Contains(t, user, "Attempt 1: accuracy 50.0%")
	assert.Contains(t, user, "Compare current performance with previous attempts.")
}

func TestEvaluateCapsHistory(t *testing.T) {
	t.Parallel()

	var history []domain.ChatMessage
	for i := range 14 {
		history = append(history, domain.ChatMessage{Role: domain.RoleUser, Content: fmt.Sprintf("turn %d", i)})
	}
	mock := llm.NewMockClient(llm.MockResponse{Text: "ok"})
	req := baseRequest()
	req.ChatHistory = history

	_, err := New(mock, Options{}).Evaluate(context.Background(), req)
	require.NoError(t, err)

	msgs := mock.Calls()[0].Messages
	require.Len(t, msgs, 12)
	assert.Equal(t, "turn 4", msgs[1].Content)
	assert.Equal(t, "turn 13", msgs[10].Content)
}

func TestEvaluateLevels(t *testing.T) {
	t.Parallel()

	mock := llm.NewMockClient()
	o := New(mock, Options{})

	req := baseRequest()
	req.Level = domain.FeedbackFixed
	res, err := o.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, FixedChecklist, res.Feedback)

	req.Level = "none"
	res, err = o.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, res.Feedback)

	assert.Zero(t, mock.CallCount())
}

func TestEvaluateModelFailure(t *testing.T) {
	t.Parallel()

	mock := llm.NewMockClient(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}})
	_, err := New(mock, Options{}).Evaluate(context.Background(), baseRequest())

	var svcErr *domain.ServiceError
	require.ErrorAs(t, err, &svcErr)
}

func TestEvaluateDemoClientNeverEmpty(t *testing.T) {
	t.Parallel()

	req := baseRequest()
	req.AttemptNumber = 2
	res, err := New(llm.NewDemoClient(), Options{}).Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Demo feedback for attempt 2. Focus on clear task definition and structured output format.", res.Feedback)
}

func TestEvaluateCustomVocabularyContext(t *testing.T) {
	t.Parallel()

	mock := llm.NewMockClient(llm.MockResponse{Text: "ok"})
	req := baseRequest()
	req.TaskType = domain.TaskMulticlass
	req.Labels = []string{"damage", "donation", "other"}
	req.Technique = "unknown-technique"

	_, err := New(mock, Options{}).Evaluate(context.Background(), req)
	require.NoError(t, err)

	system := mock.Calls()[0].Messages[0].Content
	assert.Contains(t, system, `"damage", "donation", "other"`)
	assert.Contains(t, system, "Zero-Shot prompting")
	assert.NotContains(t, system, "Hurricane Irma")
}
