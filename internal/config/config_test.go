package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("CORS_ORIGINS", "*")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 5*time.Minute, cfg.Attempt.Timeout)
	assert.Equal(t, int64(5*1024*1024), cfg.Dataset.MaxUploadBytes)
	assert.InDelta(t, 0.7, cfg.LLM.FeedbackTemperature, 1e-9)
	assert.Equal(t, 4096, cfg.LLM.ClassifyMaxTokens)
	assert.Equal(t, 1000, cfg.ConversationLog.QueueSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("ATTEMPT_TIMEOUT", "90")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("LLM_FEEDBACK_TEMPERATURE", "0.2")
	t.Setenv("CONVERSATION_LOG_QUEUE_SIZE", "-5")
	t.Setenv("CONVERSATION_LOG_ENABLED", "off")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, 90*time.Second, cfg.Attempt.Timeout)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.WindowDuration)
	assert.InDelta(t, 0.2, cfg.LLM.FeedbackTemperature, 1e-9)
	assert.Equal(t, 1000, cfg.ConversationLog.QueueSize)
	assert.False(t, cfg.ConversationLog.Enabled)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("LLM_FEEDBACK_TEMPERATURE", "3")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_FEEDBACK_TEMPERATURE")

	t.Setenv("LLM_FEEDBACK_TEMPERATURE", "0.7")
	t.Setenv("PORT", "")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestIsDevelopment(t *testing.T) {
	t.Parallel()

	assert.True(t, (&Config{}).IsDevelopment())
	assert.True(t, (&Config{FrontendURL: "http://localhost:5173"}).IsDevelopment())
	assert.False(t, (&Config{FrontendURL: "https://labs.example.com"}).IsDevelopment())
}
