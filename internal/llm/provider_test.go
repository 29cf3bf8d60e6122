package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAIClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"
	return &OpenAIClient{client: openai.NewClientWithConfig(config), model: "gpt-4o-mini"}
}

func newTestAnthropicClient(t *testing.T, handler http.HandlerFunc) *AnthropicClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := anthropic.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(server.URL),
		option.WithMaxRetries(0),
	)
	return &AnthropicClient{client: &client, model: "claude-haiku-4-5-20251001"}
}

func TestOpenAIClientHappyPath(t *testing.T) {
	var got map[string]any
	c := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1234567890,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": `[{"id": 1, "pred": "humanitarian"}]`},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
		})
	})

	resp, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "classify"},
		{Role: RoleUser, Content: "go"},
	}, Params{Temperature: 0})
	require.NoError(t, err)

	assert.Equal(t, `[{"id": 1, "pred": "humanitarian"}]`, resp.Text)
	assert.Equal(t, 65, resp.Usage.TotalTokens)
	assert.Equal(t, "gpt-4o-mini", got["model"])
	msgs := got["messages"].([]any)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	// Zero temperature must still be sent explicitly.
	assert.Contains(t, got, "temperature")
}

func TestOpenAIClientRateLimit(t *testing.T) {
	c := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "tokens", "message": "Rate limit exceeded", "code": "rate_limit_exceeded"},
		})
	})

	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, Params{})
	var rl *ErrRateLimit
	require.ErrorAs(t, err, &rl)
}

func TestOpenAIClientServerError(t *testing.T) {
	c := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "upstream"}})
	})

	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, Params{})
	var pu *ErrProviderUnavailable
	require.ErrorAs(t, err, &pu)
}

func TestAnthropicClientSystemAndUsage(t *testing.T) {
	var got map[string]any
	c := newTestAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": "feedback text"}},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 50, "output_tokens": 30},
		})
	})

	resp, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a coach."},
		{Role: RoleUser, Content: "prior prompt"},
		{Role: RoleAssistant, Content: "prior feedback"},
		{Role: RoleUser, Content: "current"},
	}, Params{Temperature: 0.7, MaxTokens: 500})
	require.NoError(t, err)

	assert.Equal(t, "feedback text", resp.Text)
	assert.Equal(t, 80, resp.Usage.TotalTokens)
	assert.EqualValues(t, 500, got["max_tokens"])
	assert.Len(t, got["messages"], 3)
	assert.NotNil(t, got["system"])
}

func TestAnthropicClientRateLimit(t *testing.T) {
	c := newTestAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "rate_limit_error", "message": "slow down"},
		})
	})

	_, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, Params{})
	var rl *ErrRateLimit
	require.ErrorAs(t, err, &rl)
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		input    string
		models   map[string]string
		expected string
	}{
		{"gemini-flash", geminiModels, "gemini-2.0-flash"},
		{"gemini-2.5-pro", geminiModels, "gemini-2.5-pro"},
		{"claude-haiku", anthropicModels, "claude-haiku-4-5-20251001"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, resolveModel(tt.input, tt.models))
	}
}

func TestBuildGeminiContentsRoles(t *testing.T) {
	contents := buildGeminiContents([]Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "b"},
	})
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		{Role: RoleSystem, Content: "one"},
		{Role: RoleUser, Content: "u"},
		{Role: RoleSystem, Content: "two"},
	})
	assert.Equal(t, "one\n\ntwo", system)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "u"}}, rest)
}

func TestConfigResolveOrder(t *testing.T) {
	assert.Equal(t, "demo", Config{}.Resolve())
	assert.Equal(t, "anthropic", Config{Anthropic: AnthropicConfig{APIKey: "a"}, Gemini: GeminiConfig{APIKey: "g"}}.Resolve())
	assert.Equal(t, "openai", Config{OpenAI: OpenAIConfig{APIKey: "o"}, Anthropic: AnthropicConfig{APIKey: "a"}}.Resolve())
	assert.Equal(t, "gemini", Config{Provider: " Gemini ", OpenAI: OpenAIConfig{APIKey: "o"}}.Resolve())

	assert.Error(t, Config{Provider: "openai"}.Validate())
	assert.Error(t, Config{Provider: "bard"}.Validate())
	assert.NoError(t, Config{}.Validate())
}

func TestNewFallsBackToDemo(t *testing.T) {
	c, err := New(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "demo", c.Name())
}

type recorderFunc func(ctx context.Context, ex Exchange)

func (f recorderFunc) RecordExchange(ctx context.Context, ex Exchange) { f(ctx, ex) }

func TestWithLoggingRecordsExchange(t *testing.T) {
	var mu sync.Mutex
	var got []Exchange
	rec := recorderFunc(func(_ context.Context, ex Exchange) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ex)
	})

	mock := NewMockClient(MockResponse{Text: "ok"}, MockResponse{Err: &ErrProviderUnavailable{}})
	c := WithLogging(mock, rec)
	ctx := WithUser(WithPurpose(context.Background(), PurposeFeedback), "anon_1")

	_, err := c.Complete(ctx, []Message{{Role: RoleUser, Content: "hi"}}, Params{})
	require.NoError(t, err)
	_, err = c.Complete(ctx, []Message{{Role: RoleUser, Content: "again"}}, Params{})
	require.Error(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, PurposeFeedback, got[0].Purpose)
	assert.Equal(t, "anon_1", got[0].UserID)
	assert.Equal(t, "ok", got[0].Response)
	assert.Contains(t, got[0].Request, "[user]\nhi")
	assert.NotEmpty(t, got[1].Err)
}
