package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/prompt-labs/internal/domain"
)

// Exchange is one recorded model round trip.
type Exchange struct {
	Provider  string
	Model     string
	Purpose   string
	UserID    string
	LatencyMs int64
	Usage     domain.Usage
	Request   string
	Response  string
	Err       string
}

// Recorder persists exchanges, for example to a transcript file.
type Recorder interface {
	RecordExchange(ctx context.Context, ex Exchange)
}

// LoggingClient is a decorator that logs every completion and hands it to
// an optional Recorder.
type LoggingClient struct {
	inner    Client
	recorder Recorder
}

// WithLogging wraps a Client with structured logging. recorder may be nil.
func WithLogging(c Client, recorder Recorder) Client {
	return &LoggingClient{inner: c, recorder: recorder}
}

func (l *LoggingClient) Complete(ctx context.Context, messages []Message, params Params) (*Completion, error) {
	start := time.Now()
	resp, err := l.inner.Complete(ctx, messages, params)
	latency := time.Since(start)

	ex := Exchange{
		Provider:  l.inner.Name(),
		Model:     pickModel(params.Model, l.inner.ModelID()),
		Purpose:   PurposeFrom(ctx),
		UserID:    UserFrom(ctx),
		LatencyMs: latency.Milliseconds(),
		Request:   serializeMessages(messages),
	}
	if resp != nil {
		ex.Usage = resp.Usage
		ex.Response = resp.Text
		if resp.Model != "" {
			ex.Model = resp.Model
		}
	}

	if err != nil {
		ex.Err = err.Error()
		slog.Warn("LLM request failed",
			"provider", ex.Provider,
			"purpose", ex.Purpose,
			"user_id", ex.UserID,
			"latency_ms", ex.LatencyMs,
			"error", err,
		)
	} else {
		slog.Debug("LLM request completed",
			"provider", ex.Provider,
			"model", ex.Model,
			"purpose", ex.Purpose,
			"latency_ms", ex.LatencyMs,
			"total_tokens", ex.Usage.TotalTokens,
		)
	}

	if l.recorder != nil {
		l.recorder.RecordExchange(ctx, ex)
	}
	return resp, err
}

func (l *LoggingClient) Name() string    { return l.inner.Name() }
func (l *LoggingClient) ModelID() string { return l.inner.ModelID() }

func serializeMessages(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role, m.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
