package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/prompt-labs/internal/domain"
)

// Stream message types.
const (
	streamConnected = "connected"
	streamProgress  = "progress"
	streamComplete  = "complete"
	streamError     = "error"
	streamClose     = "close"
)

// streamMessage is the JSON payload of every SSE data line and WebSocket
// frame.
type streamMessage struct {
	Type         string          `json:"type"`
	ConnectionID string          `json:"connectionId,omitempty"`
	Status       string          `json:"status,omitempty"`
	Message      string          `json:"message,omitempty"`
	Current      int             `json:"current,omitempty"`
	Total        int             `json:"total,omitempty"`
	Data         *domain.Attempt `json:"data,omitempty"`
}

func progressMessage(ev domain.ProgressEvent) streamMessage {
	msg := ev.Message
	if msg == "" {
		msg = "Processing..."
	}
	return streamMessage{
		Type:    streamProgress,
		Status:  ev.Status,
		Message: msg,
		Current: ev.Current,
		Total:   ev.Total,
	}
}

// sseWriter serializes writes from the pipeline and the keepalive ticker.
type sseWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	closed  bool
}

func (s *sseWriter) send(m streamMessage) {
	b, err := json.Marshal(m)
	if err != nil {
		slog.Warn("Failed to encode SSE message", "error", err)
		return
	}
	s.write(fmt.Sprintf("data: %s\n\n", b))
}

func (s *sseWriter) write(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, err := io.WriteString(s.w, frame); err != nil {
		// The client is gone; the attempt still completes and is stored.
		s.closed = true
		slog.Debug("SSE client disconnected", "error", err)
		return
	}
	s.flusher.Flush()
}

// stop makes later writes no-ops once the handler has returned.
func (s *sseWriter) stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// SubmitAttemptStream runs a submission and streams progress as
// server-sent events.
func (h *Handler) SubmitAttemptStream(w http.ResponseWriter, r *http.Request) {
	sub, err := h.decodeSubmission(w, r)
	if err != nil {
		WriteError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	out := &sseWriter{w: w, flusher: flusher}
	out.write(fmt.Sprintf("retry: %d\n\n", h.Config.SSE.RetryDelay.Milliseconds()))

	connID := uuid.NewString()
	out.send(streamMessage{Type: streamConnected, ConnectionID: connID})
	slog.Info("SSE attempt stream opened", "user_id", sub.UserID, "conn_id", connID, "attempt", sub.AttemptNumber)

	ctx, cancel := h.attemptContext(r)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	defer out.stop()
	go func() {
		keepalive := time.NewTicker(h.Config.SSE.KeepaliveInterval)
		defer keepalive.Stop()
		for {
			select {
			case <-done:
				return
			case <-keepalive.C:
				out.write(": keepalive\n\n")
			}
		}
	}()

	a, err := h.Attempts.Process(ctx, sub, func(ev domain.ProgressEvent) {
		if ev.Status == domain.StatusError {
			return
		}
		out.send(progressMessage(ev))
	})
	if err != nil {
		slog.Warn("SSE attempt failed", "user_id", sub.UserID, "conn_id", connID, "error", err)
		out.send(streamMessage{Type: streamError, Message: err.Error()})
	} else {
		out.send(streamMessage{Type: streamComplete, Data: a})
	}
	out.send(streamMessage{Type: streamClose})
	slog.Info("SSE attempt stream closed", "user_id", sub.UserID, "conn_id", connID)
}
