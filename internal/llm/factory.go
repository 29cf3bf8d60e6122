package llm

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures the model provider.
type Config struct {
	// Provider is "openai", "anthropic", "gemini", "demo" or empty. Empty
	// picks the first provider with a key, in the order OpenAI, Anthropic,
	// Gemini, and falls back to demo mode.
	Provider string

	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Gemini    GeminiConfig
}

// Resolve returns the provider that New will build for cfg.
func (c Config) Resolve() string {
	if p := strings.ToLower(strings.TrimSpace(c.Provider)); p != "" {
		return p
	}
	switch {
	case c.OpenAI.APIKey != "":
		return "openai"
	case c.Anthropic.APIKey != "":
		return "anthropic"
	case c.Gemini.APIKey != "":
		return "gemini"
	}
	return "demo"
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Resolve() {
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
	case "demo":
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}

// New builds the configured client wrapped with logging.
func New(ctx context.Context, cfg Config, recorder Recorder) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var base Client
	var err error
	provider := cfg.Resolve()
	switch provider {
	case "openai":
		base, err = NewOpenAIClient(cfg.OpenAI)
	case "anthropic":
		base, err = NewAnthropicClient(cfg.Anthropic)
	case "gemini":
		base, err = NewGeminiClient(ctx, cfg.Gemini)
	default:
		base = NewDemoClient()
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", provider, err)
	}

	return WithLogging(base, recorder), nil
}
