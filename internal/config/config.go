// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	CORSOrigins    []string
	DBPath         string
	GRPCHealthAddr string
	UserRetention  time.Duration

	LLM             LLMConfig
	Attempt         AttemptConfig
	Dataset         DatasetConfig
	RateLimit       RateLimitConfig
	SSE             SSEConfig
	Timeout         TimeoutConfig
	Retry           RetryConfig
	ConversationLog ConversationLogConfig
}

// LLMConfig selects the model provider and tunes the two model calls.
type LLMConfig struct {
	Provider string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	AnthropicAPIKey string
	AnthropicModel  string

	GeminiAPIKey string
	GeminiModel  string

	ClassifyMaxTokens   int
	FeedbackMaxTokens   int
	FeedbackTemperature float64
}

// AttemptConfig bounds attempt processing.
type AttemptConfig struct {
	// Timeout caps a whole submission, including both model stages.
	Timeout time.Duration
	// ChatHistoryLimit caps prior turns replayed to the models.
	ChatHistoryLimit int
}

// DatasetConfig bounds dataset uploads.
type DatasetConfig struct {
	MaxUploadBytes int64
}

// RateLimitConfig limits submissions per user.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// SSEConfig tunes progress streams.
type SSEConfig struct {
	MaxRequestBodySize int64
	RetryDelay         time.Duration
	KeepaliveInterval  time.Duration
}

// TimeoutConfig holds auxiliary timeouts.
type TimeoutConfig struct {
	HealthCheck time.Duration
}

// RetryConfig controls SQLite busy retries.
type RetryConfig struct {
	DatabaseMaxRetries     int
	DatabaseRetryBaseDelay time.Duration
}

// ConversationLogConfig controls JSON transcript logging of model exchanges.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
		DBPath:         getEnv("DB_PATH", "./data/prompt-labs.db"),
		GRPCHealthAddr: getEnv("GRPC_HEALTH_ADDR", ""),
		UserRetention:  getEnvDuration("USER_RETENTION", 30*24*time.Hour),
		LLM: LLMConfig{
			Provider:            getEnv("LLM_PROVIDER", ""),
			OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:         getEnv("OPENAI_MODEL", ""),
			OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
			AnthropicAPIKey:     getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel:      getEnv("ANTHROPIC_MODEL", ""),
			GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
			GeminiModel:         getEnv("GEMINI_MODEL", ""),
			ClassifyMaxTokens:   getEnvInt("LLM_CLASSIFY_MAX_TOKENS", 4096),
			FeedbackMaxTokens:   getEnvInt("LLM_FEEDBACK_MAX_TOKENS", 500),
			FeedbackTemperature: getEnvFloat("LLM_FEEDBACK_TEMPERATURE", 0.7),
		},
		Attempt: AttemptConfig{
			Timeout:          getEnvDuration("ATTEMPT_TIMEOUT", 5*time.Minute),
			ChatHistoryLimit: getEnvInt("CHAT_HISTORY_LIMIT", 10),
		},
		Dataset: DatasetConfig{
			MaxUploadBytes: int64(getEnvInt("DATASET_MAX_UPLOAD_BYTES", 5*1024*1024)),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		SSE: SSEConfig{
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 64*1024)),
			RetryDelay:         getEnvDuration("SSE_RETRY_DELAY", 5*time.Second),
			KeepaliveInterval:  getEnvDuration("SSE_KEEPALIVE_INTERVAL", 10*time.Second),
		},
		Timeout: TimeoutConfig{
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
		},
		Retry: RetryConfig{
			DatabaseMaxRetries:     getEnvInt("DB_MAX_RETRIES", 3),
			DatabaseRetryBaseDelay: getEnvDuration("DB_RETRY_BASE_DELAY", 100*time.Millisecond),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.LLM.ClassifyMaxTokens <= 0 {
		return fmt.Errorf("LLM_CLASSIFY_MAX_TOKENS must be > 0")
	}
	if c.LLM.FeedbackMaxTokens <= 0 {
		return fmt.Errorf("LLM_FEEDBACK_MAX_TOKENS must be > 0")
	}
	if c.LLM.FeedbackTemperature < 0 || c.LLM.FeedbackTemperature > 2 {
		return fmt.Errorf("LLM_FEEDBACK_TEMPERATURE must be between 0 and 2")
	}
	if c.Attempt.Timeout <= 0 {
		return fmt.Errorf("ATTEMPT_TIMEOUT must be > 0")
	}
	if c.Attempt.ChatHistoryLimit <= 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be > 0")
	}
	if c.Dataset.MaxUploadBytes <= 0 {
		return fmt.Errorf("DATASET_MAX_UPLOAD_BYTES must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.SSE.KeepaliveInterval <= 0 {
		return fmt.Errorf("SSE_KEEPALIVE_INTERVAL must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// getEnvDuration accepts Go duration strings ("90s", "5m") or plain seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
